package core

import (
	"fmt"
	"sort"
	"sync"
)

// Graph is the weighted-graph store: nodes keyed by id, at most one
// directed edge per ordered (from, to) pair, and one secondary index per
// node type, filled only for types that declare an indexed attribute.
type Graph struct {
	mu sync.RWMutex

	schema *Schema

	nodes map[string]*Node
	// edges[from][to] = *Edge
	edges map[string]map[string]*Edge

	// indexes[typeName] exists for every type EnsureIndex was called on;
	// entries are inserted only for types that declare an indexed
	// attribute (at most one indexed attribute per type).
	indexes map[string]*Index
}

// NewGraph returns an empty graph bound to the given schema registry.
func NewGraph(schema *Schema) *Graph {
	return &Graph{
		schema:  schema,
		nodes:   make(map[string]*Node),
		edges:   make(map[string]map[string]*Edge),
		indexes: make(map[string]*Index),
	}
}

// EnsureIndex lazily creates the secondary index backing typeName's
// indexed attribute, called once when the type is defined.
func (g *Graph) EnsureIndex(typeName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.indexes[typeName]; !ok {
		g.indexes[typeName] = NewIndex()
	}
}

// InsertNode creates a new node of typeName with the given attributes,
// already validated against the schema by the caller. Returns the
// generated node id.
func (g *Graph) InsertNode(typeName string, attrs map[string]string) (string, error) {
	nt, err := g.schema.Lookup(typeName)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Collisions are not retried at call sites — the store rejects
	// duplicates and propagates an error.
	id := NewID()
	if _, taken := g.nodes[id]; taken {
		return "", &DuplicateId{ID: id}
	}

	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	g.nodes[id] = &Node{ID: id, Type: typeName, Attrs: copied}

	if idxAttr := nt.IndexedAttr(); idxAttr != "" {
		ix, ok := g.indexes[typeName]
		if !ok {
			ix = NewIndex()
			g.indexes[typeName] = ix
		}
		ix.Insert(copied[idxAttr], id)
	}

	return id, nil
}

// Node returns the node stored under id.
func (g *Graph) Node(id string) (*Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, &UnknownNode{ID: id}
	}
	return n, nil
}

// InsertEdge adds a new directed, weighted edge from -> to. Rejects a
// second edge for the same ordered pair (at most one edge per ordered
// pair) and bumps both endpoints' edge_count.
func (g *Graph) InsertEdge(from, to string, weight int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromNode, ok := g.nodes[from]
	if !ok {
		return &UnknownNode{ID: from}
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return &UnknownNode{ID: to}
	}

	if row, ok := g.edges[from]; ok {
		if _, dup := row[to]; dup {
			return &DuplicateEdge{From: from, To: to}
		}
	} else {
		g.edges[from] = make(map[string]*Edge)
	}

	g.edges[from][to] = &Edge{
		FromID:   from,
		ToID:     to,
		FromType: fromNode.Type,
		ToType:   toNode.Type,
		Weight:   weight,
	}
	fromNode.EdgeCount++
	toNode.EdgeCount++
	return nil
}

// RemoveEdge undoes an InsertEdge that has no anchoring block: a rollback
// for the case where the connection was added to the store but the
// ledger append that was meant to follow it failed. It is a no-op if no
// such edge exists.
func (g *Graph) RemoveEdge(from, to string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, ok := g.edges[from]
	if !ok {
		return
	}
	if _, ok := row[to]; !ok {
		return
	}
	delete(row, to)
	if fromNode, ok := g.nodes[from]; ok {
		fromNode.EdgeCount--
	}
	if toNode, ok := g.nodes[to]; ok {
		toNode.EdgeCount--
	}
}

// UpdateEdge changes the weight of an existing edge, recording the block
// id that set it: every edge mutation is anchored to a ledger block.
func (g *Graph) UpdateEdge(from, to string, weight int64, blockID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	row, ok := g.edges[from]
	if !ok {
		return &NoSuchEdge{From: from, To: to}
	}
	e, ok := row[to]
	if !ok {
		return &NoSuchEdge{From: from, To: to}
	}
	e.Weight = weight
	e.LastBlock = blockID
	e.HasBlock = true
	return nil
}

// Edge returns the edge from -> to, if any. Used to check an edge's
// existence ahead of an update (or a rollback) without mutating it.
func (g *Graph) Edge(from, to string) (*Edge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	row, ok := g.edges[from]
	if !ok {
		return nil, false
	}
	e, ok := row[to]
	return e, ok
}

// LookupByIndex returns the ids of typeName nodes whose indexed attribute
// satisfies op against value: the fetch-by-index path.
func (g *Graph) LookupByIndex(typeName string, op CompareOp, value string) ([]string, error) {
	nt, err := g.schema.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if nt.IndexedAttr() == "" {
		return nil, &IndexViolation{Detail: fmt.Sprintf("type %q has no indexed attribute", typeName)}
	}

	g.mu.RLock()
	ix, ok := g.indexes[typeName]
	g.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return ix.Query(op, value), nil
}

// ApplyEdgeData idempotently inserts-or-updates the edge described by an
// inbound EdgeData block: on receive, an EdgeData block always resolves
// to an insert-or-update of that edge, never a rejection on conflict.
func (g *Graph) ApplyEdgeData(from, to string, weight int64, blockID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fromNode, ok := g.nodes[from]
	if !ok {
		return &UnknownNode{ID: from}
	}
	toNode, ok := g.nodes[to]
	if !ok {
		return &UnknownNode{ID: to}
	}

	row, ok := g.edges[from]
	if !ok {
		row = make(map[string]*Edge)
		g.edges[from] = row
	}
	if e, exists := row[to]; exists {
		e.Weight = weight
		e.LastBlock = blockID
		e.HasBlock = true
		return nil
	}
	row[to] = &Edge{
		FromID: from, ToID: to,
		FromType: fromNode.Type, ToType: toNode.Type,
		Weight: weight, LastBlock: blockID, HasBlock: true,
	}
	fromNode.EdgeCount++
	toNode.EdgeCount++
	return nil
}

// HasNode reports whether id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// EdgeCount returns node id's edge_count and whether the node exists.
func (g *Graph) EdgeCount(id string) (int, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.EdgeCount, true
}

// JoinPair is one matched (source, target) pair from Join.
type JoinPair struct {
	Source string
	Target string
}

// Join returns, for every source id in sourceIDs, every outgoing edge
// whose target is of targetType and whose weight satisfies pred. Pairs
// are ordered ascending by Source, ties broken by Target.
func (g *Graph) Join(sourceIDs []string, targetType string, pred WeightPredicate) []JoinPair {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []JoinPair
	for _, src := range sourceIDs {
		for to, e := range g.edges[src] {
			if e.ToType != targetType {
				continue
			}
			if !pred.Match(e.Weight) {
				continue
			}
			out = append(out, JoinPair{Source: src, Target: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// AllNodesOfType returns every node id currently stored under typeName,
// used when a fetch has no index predicate to narrow the scan.
func (g *Graph) AllNodesOfType(typeName string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for id, n := range g.nodes {
		if n.Type == typeName {
			out = append(out, id)
		}
	}
	return out
}
