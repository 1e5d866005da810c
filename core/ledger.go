package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Ledger is the hash-chained sequence of signed blocks: an ordered,
// append-only sequence the caller mutates under a single lock. There is
// no WAL/snapshot/UTXO/contract-state machinery — this system has no
// durable storage and no smart contracts (Non-goals).
//
// Callers are expected to hold Engine's composite lock for the duration
// of any Ledger call that mutates state: Ledger itself does not
// re-acquire a lock.
type Ledger struct {
	blocks []*Block

	// validators maps a hex public key to the node id most recently
	// associated with it by a ValidatorData block.
	validators map[string]string

	log *logrus.Logger
}

// NewLedger returns a ledger seeded with a freshly mined genesis block:
// block 0, data=RootNode, empty validator/signature, difficulty 0.
func NewLedger(log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Ledger{validators: make(map[string]string), log: log}
	genesis := &Block{
		ID:         0,
		Timestamp:  nowFunc().Unix(),
		Difficulty: 0,
		Data:       BlockData{DataType: DataRootNode},
	}
	genesis.Nonce, genesis.Hash = mineNonce(genesis, nil)
	l.blocks = []*Block{genesis}
	return l
}

// Head returns the current chain tip.
func (l *Ledger) Head() *Block { return l.blocks[len(l.blocks)-1] }

// Len returns the number of blocks in the chain, genesis included.
func (l *Ledger) Len() int { return len(l.blocks) }

// Blocks returns the chain in append order. The returned slice must not
// be mutated by the caller.
func (l *Ledger) Blocks() []*Block { return l.blocks }

// prevEdgeCountFloor returns the edge-count floor the next validator must
// exceed: the previous block's stored difficulty (difficulty is defined
// as the validator's edge count at append time), except the genesis,
// whose validator is treated as having edge_count -1 (a design decision
// resolving the "1 edge more" ambiguity at chain start, see DESIGN.md).
func (l *Ledger) prevEdgeCountFloor() int {
	prev := l.Head()
	if prev.ID == 0 {
		return -1
	}
	return prev.Difficulty
}

// PrepareEdgeBlock builds (but does not mine, sign, or append) the next
// candidate block carrying an EdgeData payload, snapshotting everything
// the mining loop needs under the caller's lock: the candidate-block
// skeleton is snapshotted under the lock, mining itself iterates lock-free.
func (l *Ledger) PrepareEdgeBlock(validatorEdgeCount int, from, to string, weight int64) (*Block, error) {
	if validatorEdgeCount <= l.prevEdgeCountFloor() {
		return nil, &EdgeCountRuleViolation{Detail: "validator does not have strictly more edges than the previous block's validator"}
	}
	prev := l.Head()
	return &Block{
		ID:           prev.ID + 1,
		Timestamp:    nowFunc().Unix(),
		PreviousHash: prev.Hash,
		Difficulty:   validatorEdgeCount,
		Data:         BlockData{DataType: DataEdge, Edge: &EdgeData{FromID: from, ToID: to, Weight: weight}},
	}, nil
}

// PrepareValidatorBlock builds the next candidate block carrying
// ValidatorData, used to bootstrap/announce a new validator identity.
func (l *Ledger) PrepareValidatorBlock(validatorEdgeCount int, pubHex, accountID string) (*Block, error) {
	if validatorEdgeCount <= l.prevEdgeCountFloor() {
		return nil, &EdgeCountRuleViolation{Detail: "validator does not have strictly more edges than the previous block's validator"}
	}
	prev := l.Head()
	return &Block{
		ID:           prev.ID + 1,
		Timestamp:    nowFunc().Unix(),
		PreviousHash: prev.Hash,
		Difficulty:   validatorEdgeCount,
		Data:         BlockData{DataType: DataValidator, Validator: &ValidatorData{PublicKey: pubHex, AccountID: accountID}},
	}, nil
}

// MiningJob is a cancellable nonce search against a prepared block
// skeleton: mining is exposed as a cooperative loop with a cancellation
// token, not a fire-and-forget goroutine.
type MiningJob struct {
	block  *Block
	cancel chan struct{}
	once   sync.Once
}

// StartMining prepares a nonce search for block, which must already carry
// everything but Nonce/Hash/Validator/Signature; the search itself runs
// in Run. The block's Validator
// field is set before mining since the public key is part of the
// canonical bytes being hashed.
func StartMining(block *Block, keys *KeyPair) *MiningJob {
	block.Validator = keys.PublicHex()
	job := &MiningJob{block: block, cancel: make(chan struct{})}
	return job
}

// Cancel aborts an in-flight mining attempt. Safe to call more than once.
func (j *MiningJob) Cancel() {
	j.once.Do(func() { close(j.cancel) })
}

// Run performs the nonce search and, on success, signs the sealed block
// and returns it. Returns (nil, false) if cancelled first.
func (j *MiningJob) Run(keys *KeyPair) (*Block, bool) {
	nonce, hash := mineNonceCancellable(j.block, j.cancel)
	if hash == "" {
		return nil, false
	}
	j.block.Nonce = nonce
	j.block.Hash = hash
	j.block.Signature = keys.Sign(signingBytes(j.block))
	return j.block, true
}

// mineNonce runs an uncancellable nonce search, used for the genesis
// block which has no validator and cannot be cancelled.
func mineNonce(b *Block, cancel chan struct{}) (uint64, string) {
	nonce, hash := mineNonceCancellable(b, cancel)
	return nonce, hash
}

// mineNonceCancellable increments b.Nonce from 0 until the resulting hash
// has at least b.Difficulty leading hex zeros, checking cancel between
// attempts — this loop is mining's cooperative-yield point.
func mineNonceCancellable(b *Block, cancel chan struct{}) (uint64, string) {
	trial := *b
	for nonce := uint64(0); ; nonce++ {
		select {
		case <-cancel:
			return 0, ""
		default:
		}
		trial.Nonce = nonce
		hash := ComputeHash(&trial)
		if hasLeadingZeroHex(hash, trial.Difficulty) {
			return nonce, hash
		}
	}
}

// Append commits a locally-mined, already-signed block to the chain
// without re-running receive-side validation (the caller just finished
// mining and signing it under its own lock).
func (l *Ledger) Append(b *Block) {
	l.blocks = append(l.blocks, b)
	if b.Data.DataType == DataValidator && b.Data.Validator != nil {
		l.validators[b.Data.Validator.PublicKey] = b.Data.Validator.AccountID
	}
}

// Receive validates and, on success, applies and appends an inbound
// block. The caller must hold Engine's composite lock; g is consulted
// (and, for EdgeData blocks, mutated) as part of applying the block's
// payload.
func (l *Ledger) Receive(b *Block, g *Graph) error {
	head := l.Head()

	// Fork policy: first-wins per peer, no fork-choice. A sequence-id
	// collision with the current head means we already have (or already
	// decided) block b.ID; the newcomer is silently dropped, this being a
	// known limitation rather than an error to surface.
	if b.ID == head.ID {
		return nil
	}
	if b.ID != head.ID+1 {
		return &BadPreviousHash{Detail: "block id is not head.id+1"}
	}
	if b.PreviousHash != head.Hash {
		return &BadPreviousHash{Detail: "previous_hash does not match chain tip"}
	}

	if b.ID > 0 {
		vNodeID, known := l.validators[b.Validator]
		if !known {
			return &NotAValidator{Detail: "validator public key is not registered to any node"}
		}
		edgeCount, exists := g.EdgeCount(vNodeID)
		if !exists {
			return &NotAValidator{Detail: "validator's node no longer exists"}
		}
		if edgeCount != b.Difficulty {
			return &DifficultyMismatch{Detail: "declared difficulty does not equal validator's edge count"}
		}
		if edgeCount <= l.prevEdgeCountFloor() {
			return &EdgeCountRuleViolation{Detail: "validator does not have strictly more edges than the previous block's validator"}
		}
		if !VerifySignature(b.Validator, b.Signature, signingBytes(b)) {
			return &BadSignature{Detail: "signature does not verify against validator"}
		}
	}

	recomputed := ComputeHash(b)
	if recomputed != b.Hash {
		return &BadHash{Detail: "hash does not match recomputation"}
	}
	if !hasLeadingZeroHex(b.Hash, b.Difficulty) {
		return &BadHash{Detail: "hash does not satisfy declared difficulty"}
	}

	if b.Data.DataType == DataEdge && b.Data.Edge != nil {
		ed := b.Data.Edge
		if !g.HasNode(ed.FromID) {
			return &UnknownNode{ID: ed.FromID}
		}
		if !g.HasNode(ed.ToID) {
			return &UnknownNode{ID: ed.ToID}
		}
		if err := g.ApplyEdgeData(ed.FromID, ed.ToID, ed.Weight, b.ID); err != nil {
			return err
		}
	}

	l.Append(b)
	return nil
}
