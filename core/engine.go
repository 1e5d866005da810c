package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Engine is the single process-wide composite of schema + graph + ledger,
// guarded by one mutex and presented as an explicit context/handle passed
// to each command executor, not as an ambient global. Every collaborator
// gets an *Engine passed in explicitly rather than reaching for a
// package-level singleton.
type Engine struct {
	mu sync.Mutex

	Schema *Schema
	Graph  *Graph
	Ledger *Ledger

	log *logrus.Logger

	// localKeys holds the Ed25519 identities this process can sign with,
	// keyed by account id, as bootstrapped by the (out-of-scope) startup
	// flag parser's username<k>/key<k> pairs.
	localKeys map[string]*KeyPair

	// publish is the dispatcher's outbound hook; nil publish means no
	// transport is wired (e.g. in unit tests exercising the engine alone).
	publish func(*Block)

	// announce is the dispatcher's optional NODE_ANNOUNCE hook.
	announce func(nodeID, typeName string)
}

// NewEngine returns a ready-to-use Engine with a fresh schema, graph, and
// genesis-seeded ledger.
func NewEngine(log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	schema := NewSchema()
	return &Engine{
		Schema:    schema,
		Graph:     NewGraph(schema),
		Ledger:    NewLedger(log),
		log:       log,
		localKeys: make(map[string]*KeyPair),
	}
}

// SetPublisher wires the dispatcher's broadcast hook. Called once by
// dispatcher.New when the dispatcher is constructed.
func (e *Engine) SetPublisher(publish func(*Block)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publish = publish
}

// SetAnnouncer wires the dispatcher's optional NODE_ANNOUNCE hook.
func (e *Engine) SetAnnouncer(announce func(nodeID, typeName string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.announce = announce
}

// RegisterLocalIdentity records a local Ed25519 identity under accountID
// so later connection commands can mine and sign blocks with it, per the
// startup-flag surface (username<k>=accountID, key<k>=hex secret).
func (e *Engine) RegisterLocalIdentity(accountID string, keys *KeyPair) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localKeys[accountID] = keys
}

// ExecuteQuery parses and runs one line of query-language source,
// returning its result rows or a single error row — parse errors and
// execution errors share the same top-level propagation policy.
func (e *Engine) ExecuteQuery(src string) []*Row {
	cmd, err := ParseCommand(src)
	if err != nil {
		return errorRow(err)
	}
	return e.Execute(cmd)
}

// Execute runs one parsed command under the engine's lock and returns its
// result rows, or a single error row per the top-level propagation policy.
func (e *Engine) Execute(cmd Command) []*Row {
	e.mu.Lock()
	defer e.mu.Unlock()

	rows, err := e.dispatch(cmd)
	if err != nil {
		e.log.WithError(err).Warn("command failed")
		return errorRow(err)
	}
	return rows
}

func (e *Engine) dispatch(cmd Command) ([]*Row, error) {
	switch c := cmd.(type) {
	case DefineCmd:
		return e.execDefine(c)
	case AddNodeCmd:
		return e.execAddNode(c)
	case AddConnCmd:
		return e.execAddConn(c)
	case UpdConnCmd:
		return e.execUpdConn(c)
	case FetchNodeCmd:
		return e.execFetchNode(c)
	case FetchChainCmd:
		return e.execFetchChain()
	default:
		return nil, &ParseError{Message: "unrecognized command"}
	}
}

func (e *Engine) execDefine(c DefineCmd) ([]*Row, error) {
	nt := NodeType{Name: c.TypeName, Agent: c.Agent}
	for _, a := range c.Attrs {
		nt.Attributes = append(nt.Attributes, AttributeDef{Name: a.Name, Indexed: a.Indexed})
	}
	if err := e.Schema.Define(nt); err != nil {
		return nil, err
	}
	e.Graph.EnsureIndex(nt.Name)
	return []*Row{e.Schema.DefineResponseRow(nt)}, nil
}

func (e *Engine) execAddNode(c AddNodeCmd) ([]*Row, error) {
	attrs := make(map[string]string, len(c.Assigns))
	for _, a := range c.Assigns {
		attrs[a.Name] = a.Value
	}
	if err := e.Schema.Validate(c.TypeName, attrs); err != nil {
		return nil, err
	}
	id, err := e.Graph.InsertNode(c.TypeName, attrs)
	if err != nil {
		return nil, err
	}
	if e.announce != nil {
		e.announce(id, c.TypeName)
	}
	return []*Row{e.nodeRow(c.TypeName, id, "")}, nil
}

// resolveSelector narrows a type's nodes down to exactly one node id.
func (e *Engine) resolveSelector(typeName string, sel Selector) (string, error) {
	if sel.ByID {
		n, err := e.Graph.Node(sel.ID)
		if err != nil {
			return "", err
		}
		if n.Type != typeName {
			return "", &UnknownNode{ID: sel.ID}
		}
		return n.ID, nil
	}

	candidates := e.Graph.AllNodesOfType(typeName)
	for _, comp := range sel.Attrs {
		var kept []string
		for _, id := range candidates {
			n, err := e.Graph.Node(id)
			if err != nil {
				continue
			}
			if matchComparison(n.Attrs[comp.Attr], comp.Op, comp.Value) {
				kept = append(kept, id)
			}
		}
		candidates = kept
	}
	if len(candidates) == 0 {
		return "", &UnknownNode{ID: "<no node matched selector>"}
	}
	return candidates[0], nil
}

func matchComparison(attrValue string, op CompareOp, want string) bool {
	an, aok := parseInt64(attrValue)
	wn, wok := parseInt64(want)
	if aok && wok {
		switch op {
		case OpEq:
			return an == wn
		case OpLt:
			return an < wn
		case OpLe:
			return an <= wn
		case OpGt:
			return an > wn
		case OpGe:
			return an >= wn
		}
		return false
	}
	switch op {
	case OpEq:
		return attrValue == want
	case OpLt:
		return attrValue < want
	case OpLe:
		return attrValue <= want
	case OpGt:
		return attrValue > want
	case OpGe:
		return attrValue >= want
	}
	return false
}

func (e *Engine) execAddConn(c AddConnCmd) ([]*Row, error) {
	from, err := e.resolveSelector(c.FromType, c.FromSel)
	if err != nil {
		return nil, err
	}
	to, err := e.resolveSelector(c.ToType, c.ToSel)
	if err != nil {
		return nil, err
	}
	if err := e.Graph.InsertEdge(from, to, c.Weight); err != nil {
		return nil, err
	}
	b, err := e.mineAndAppendEdgeBlock(from, to, c.Weight)
	if err != nil {
		// The edge was written to the store but never anchored in a
		// block: undo it rather than leave a connection with no backing
		// ledger entry (every edge mutation must trace to an append).
		e.Graph.RemoveEdge(from, to)
		return nil, err
	}
	// Record the anchoring block on the edge, as the receive path does.
	if err := e.Graph.UpdateEdge(from, to, c.Weight, b.ID); err != nil {
		return nil, err
	}
	row := NewRow()
	row.Set("from_id", from)
	row.Set("to_id", to)
	row.Set("weight", itoa64(c.Weight))
	row.Set("block_id", itoa64(int64(b.ID)))
	return []*Row{row}, nil
}

func (e *Engine) execUpdConn(c UpdConnCmd) ([]*Row, error) {
	from, err := e.resolveSelector(c.FromType, c.FromSel)
	if err != nil {
		return nil, err
	}
	to, err := e.resolveSelector(c.ToType, c.ToSel)
	if err != nil {
		return nil, err
	}
	// Confirm the connection exists before mining anything: a failed
	// update must never leave a block on the chain that the store itself
	// rejects, which would otherwise let peers materialize an edge this
	// process never actually had.
	if _, ok := e.Graph.Edge(from, to); !ok {
		return nil, &NoSuchEdge{From: from, To: to}
	}
	b, err := e.mineAndAppendEdgeBlock(from, to, c.Weight)
	if err != nil {
		return nil, err
	}
	if err := e.Graph.UpdateEdge(from, to, c.Weight, b.ID); err != nil {
		return nil, err
	}
	row := NewRow()
	row.Set("from_id", from)
	row.Set("to_id", to)
	row.Set("weight", itoa64(c.Weight))
	row.Set("block_id", itoa64(int64(b.ID)))
	return []*Row{row}, nil
}

// mineAndAppendEdgeBlock finds a registered local identity eligible to
// validate, mines the next EdgeData block, appends it, and publishes it.
// The nonce search takes no lock of its own, but it runs while the caller
// holds the engine lock.
func (e *Engine) mineAndAppendEdgeBlock(from, to string, weight int64) (*Block, error) {
	keys, edgeCount, err := e.eligibleLocalValidator()
	if err != nil {
		return nil, err
	}
	candidate, err := e.Ledger.PrepareEdgeBlock(edgeCount, from, to, weight)
	if err != nil {
		return nil, err
	}
	job := StartMining(candidate, keys)
	sealed, ok := job.Run(keys)
	if !ok {
		return nil, &TransportError{Detail: "mining cancelled"}
	}
	// Re-verify the invariants mining assumed still hold now that the
	// lock has been held continuously: a straight-line between
	// suspensions means this engine never actually drops the lock mid
	// mine, but the re-check documents the intended boundary for a
	// future implementation that parallelizes mining.
	if sealed.PreviousHash != e.Ledger.Head().Hash {
		return nil, &BadPreviousHash{Detail: "chain advanced during mining"}
	}
	e.Ledger.Append(sealed)
	if e.publish != nil {
		e.publish(sealed)
	}
	return sealed, nil
}

// eligibleLocalValidator returns a locally-held identity whose associated
// graph node satisfies its type's agent predicate and the "1 edge more"
// rule. Identities are scanned in map order, so which one is returned is
// not defined when several qualify.
func (e *Engine) eligibleLocalValidator() (*KeyPair, int, error) {
	floor := e.Ledger.prevEdgeCountFloor()
	for accountID, keys := range e.localKeys {
		n, err := e.Graph.Node(accountID)
		if err != nil {
			continue
		}
		ok, err := e.Schema.IsValidatorCandidate(n.Type, n.Attrs)
		if err != nil || !ok {
			continue
		}
		if n.EdgeCount > floor {
			return keys, n.EdgeCount, nil
		}
	}
	return nil, 0, &NotAValidator{Detail: "no locally-held identity currently satisfies the agent predicate and edge-count rule"}
}

// AnnounceValidator mines and appends a ValidatorData block associating
// keys' public key with accountID, for use by the (out-of-scope) startup
// bootstrap when it injects initial validator accounts.
func (e *Engine) AnnounceValidator(accountID string, keys *KeyPair) (*Block, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.Graph.Node(accountID)
	if err != nil {
		return nil, err
	}
	edgeCount := n.EdgeCount
	candidate, err := e.Ledger.PrepareValidatorBlock(edgeCount, keys.PublicHex(), accountID)
	if err != nil {
		return nil, err
	}
	job := StartMining(candidate, keys)
	sealed, ok := job.Run(keys)
	if !ok {
		return nil, &TransportError{Detail: "mining cancelled"}
	}
	e.Ledger.Append(sealed)
	if e.publish != nil {
		e.publish(sealed)
	}
	return sealed, nil
}

// ReceiveBlock applies an inbound gossip block under the engine's lock:
// inbound messages are handed synchronously to the ledger and graph
// rather than queued for later processing.
func (e *Engine) ReceiveBlock(b *Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Ledger.Receive(b, e.Graph)
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
