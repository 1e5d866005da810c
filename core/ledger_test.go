package core

import "testing"

func TestNewLedgerGenesisShape(t *testing.T) {
	l := NewLedger(nil)
	if l.Len() != 1 {
		t.Fatalf("expected genesis-only chain of length 1, got %d", l.Len())
	}
	g := l.Head()
	if g.ID != 0 || g.Difficulty != 0 || g.Data.DataType != DataRootNode {
		t.Fatalf("unexpected genesis block: %+v", g)
	}
	if !hasLeadingZeroHex(g.Hash, g.Difficulty) {
		t.Fatalf("genesis hash %q does not satisfy its own difficulty", g.Hash)
	}
}

func mineAndAppend(t *testing.T, l *Ledger, keys *KeyPair, validatorEdgeCount int, from, to string, weight int64) *Block {
	t.Helper()
	candidate, err := l.PrepareEdgeBlock(validatorEdgeCount, from, to, weight)
	if err != nil {
		t.Fatalf("PrepareEdgeBlock: %v", err)
	}
	job := StartMining(candidate, keys)
	sealed, ok := job.Run(keys)
	if !ok {
		t.Fatal("mining was cancelled unexpectedly")
	}
	l.Append(sealed)
	return sealed
}

func TestLedgerEdgeCountRuleViolation(t *testing.T) {
	l := NewLedger(nil)
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	// genesis floor is -1, so edge_count 0 clears it...
	if _, err := l.PrepareEdgeBlock(0, "a", "b", 1); err != nil {
		t.Fatalf("expected edge_count 0 to clear the genesis floor, got %v", err)
	}
	// ...but a non-positive edge_count relative to a prior block's
	// difficulty must be rejected once that block has been appended.
	mineAndAppend(t, l, keys, 0, "a", "b", 1)
	if _, err := l.PrepareEdgeBlock(0, "a", "c", 1); err == nil {
		t.Fatal("expected EdgeCountRuleViolation for a non-increasing edge count")
	} else if _, ok := err.(*EdgeCountRuleViolation); !ok {
		t.Fatalf("expected *EdgeCountRuleViolation, got %T (%v)", err, err)
	}
}

func TestLedgerReceiveSequenceAndHashChain(t *testing.T) {
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "User", Attributes: []AttributeDef{{Name: "role"}}, Agent: AgentPredicate{"role": "validator"}}); err != nil {
		t.Fatalf("define User: %v", err)
	}
	g := NewGraph(schema)
	from, err := g.InsertNode("User", map[string]string{"role": "validator"})
	if err != nil {
		t.Fatalf("InsertNode from: %v", err)
	}
	to, err := g.InsertNode("User", map[string]string{"role": "validator"})
	if err != nil {
		t.Fatalf("InsertNode to: %v", err)
	}

	l := NewLedger(nil)
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	candidate, err := l.PrepareEdgeBlock(1, from, to, 5)
	if err != nil {
		t.Fatalf("PrepareEdgeBlock: %v", err)
	}
	job := StartMining(candidate, keys)
	sealed, ok := job.Run(keys)
	if !ok {
		t.Fatal("mining cancelled")
	}

	// register the validator with the ledger as Receive would expect:
	// normally done via a ValidatorData block, but Receive only consults
	// l.validators, so seed it directly for this unit test.
	l.validators[keys.PublicHex()] = from
	// Receive recomputes edge_count from the graph at the validator's
	// node; InsertEdge on the graph to make the invariant hold.
	if err := g.InsertEdge(from, to, 5); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	if err := l.Receive(sealed, g); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("expected chain length 2 after receive, got %d", l.Len())
	}
	if l.Head().PreviousHash != "" && l.Blocks()[1].PreviousHash != l.Blocks()[0].Hash {
		t.Fatal("expected received block's previous_hash to link to genesis hash")
	}
}

func TestLedgerReceiveIdempotentOnHeadCollision(t *testing.T) {
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "User", Attributes: []AttributeDef{{Name: "role"}}, Agent: AgentPredicate{"role": "validator"}}); err != nil {
		t.Fatalf("define User: %v", err)
	}
	g := NewGraph(schema)
	from, _ := g.InsertNode("User", map[string]string{"role": "validator"})
	to, _ := g.InsertNode("User", map[string]string{"role": "validator"})

	l := NewLedger(nil)
	keys, _ := GenerateKeyPair()
	l.validators[keys.PublicHex()] = from
	if err := g.InsertEdge(from, to, 5); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	candidate, err := l.PrepareEdgeBlock(1, from, to, 5)
	if err != nil {
		t.Fatalf("PrepareEdgeBlock: %v", err)
	}
	job := StartMining(candidate, keys)
	sealed, _ := job.Run(keys)

	if err := l.Receive(sealed, g); err != nil {
		t.Fatalf("first Receive: %v", err)
	}
	lenAfterFirst := l.Len()

	// re-deliver the same block id (it now equals head.id): must be a no-op.
	dup := *sealed
	if err := l.Receive(&dup, g); err != nil {
		t.Fatalf("re-delivering a block at head.id should be a no-op, got error: %v", err)
	}
	if l.Len() != lenAfterFirst {
		t.Fatalf("expected chain length unchanged after re-delivery, got %d want %d", l.Len(), lenAfterFirst)
	}
}

func TestLedgerReceiveRejectsBadHash(t *testing.T) {
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "User", Attributes: []AttributeDef{{Name: "role"}}, Agent: AgentPredicate{"role": "validator"}}); err != nil {
		t.Fatalf("define User: %v", err)
	}
	g := NewGraph(schema)
	from, _ := g.InsertNode("User", map[string]string{"role": "validator"})
	to, _ := g.InsertNode("User", map[string]string{"role": "validator"})

	l := NewLedger(nil)
	keys, _ := GenerateKeyPair()
	l.validators[keys.PublicHex()] = from
	if err := g.InsertEdge(from, to, 5); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	candidate, err := l.PrepareEdgeBlock(1, from, to, 5)
	if err != nil {
		t.Fatalf("PrepareEdgeBlock: %v", err)
	}
	job := StartMining(candidate, keys)
	sealed, _ := job.Run(keys)

	tampered := *sealed
	tampered.Hash = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"

	lenBefore := l.Len()
	err = l.Receive(&tampered, g)
	if _, ok := err.(*BadHash); !ok {
		t.Fatalf("expected *BadHash, got %T (%v)", err, err)
	}
	if l.Len() != lenBefore {
		t.Fatalf("expected chain unchanged after a rejected block, got length %d want %d", l.Len(), lenBefore)
	}
}

func TestLedgerReceiveRejectsWrongPreviousHash(t *testing.T) {
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "User", Attributes: []AttributeDef{{Name: "role"}}, Agent: AgentPredicate{"role": "validator"}}); err != nil {
		t.Fatalf("define User: %v", err)
	}
	g := NewGraph(schema)
	from, _ := g.InsertNode("User", map[string]string{"role": "validator"})
	to, _ := g.InsertNode("User", map[string]string{"role": "validator"})

	l := NewLedger(nil)
	keys, _ := GenerateKeyPair()
	l.validators[keys.PublicHex()] = from
	if err := g.InsertEdge(from, to, 5); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	candidate, err := l.PrepareEdgeBlock(0, from, to, 5)
	if err != nil {
		t.Fatalf("PrepareEdgeBlock: %v", err)
	}
	candidate.PreviousHash = "not-the-genesis-hash"
	job := StartMining(candidate, keys)
	sealed, _ := job.Run(keys)

	err = l.Receive(sealed, g)
	if _, ok := err.(*BadPreviousHash); !ok {
		t.Fatalf("expected *BadPreviousHash, got %T (%v)", err, err)
	}
}

func TestMiningJobCancel(t *testing.T) {
	keys, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	// an unreasonably high difficulty means the search could never finish
	// on its own; cancelling before Run stops it at its first check.
	block := &Block{ID: 1, Difficulty: 64}
	job := StartMining(block, keys)
	job.Cancel()
	_, ok := job.Run(keys)
	if ok {
		t.Fatal("expected Run to report cancellation")
	}
}
