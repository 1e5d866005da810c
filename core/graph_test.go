package core

import "testing"

func newTestGraph(t *testing.T) (*Graph, *Schema) {
	t.Helper()
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "User", Attributes: []AttributeDef{{Name: "name", Indexed: true}}}); err != nil {
		t.Fatalf("define User: %v", err)
	}
	if err := schema.Define(NodeType{Name: "Playlist", Attributes: []AttributeDef{{Name: "name"}}}); err != nil {
		t.Fatalf("define Playlist: %v", err)
	}
	g := NewGraph(schema)
	g.EnsureIndex("User")
	g.EnsureIndex("Playlist")
	return g, schema
}

func TestGraphInsertNodeAndEdgeCount(t *testing.T) {
	g, _ := newTestGraph(t)
	u, err := g.InsertNode("User", map[string]string{"name": "John"})
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	p, err := g.InsertNode("Playlist", map[string]string{"name": "Party mix"})
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if err := g.InsertEdge(u, p, 70); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	n, err := g.Node(u)
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if n.EdgeCount != 1 {
		t.Fatalf("expected edge_count 1, got %d", n.EdgeCount)
	}
	n2, err := g.Node(p)
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if n2.EdgeCount != 1 {
		t.Fatalf("expected edge_count 1, got %d", n2.EdgeCount)
	}
}

func TestGraphSelfLoopCountsTwice(t *testing.T) {
	g, _ := newTestGraph(t)
	u, err := g.InsertNode("User", map[string]string{"name": "Solo"})
	if err != nil {
		t.Fatalf("InsertNode: %v", err)
	}
	if err := g.InsertEdge(u, u, 1); err != nil {
		t.Fatalf("InsertEdge self-loop: %v", err)
	}
	n, err := g.Node(u)
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if n.EdgeCount != 2 {
		t.Fatalf("expected self-loop to add 2 to edge_count, got %d", n.EdgeCount)
	}
}

func TestGraphDuplicateEdgeRejected(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p, _ := g.InsertNode("Playlist", map[string]string{"name": "P1"})
	if err := g.InsertEdge(u, p, 1); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}
	err := g.InsertEdge(u, p, 2)
	if _, ok := err.(*DuplicateEdge); !ok {
		t.Fatalf("expected *DuplicateEdge, got %T (%v)", err, err)
	}
}

func TestGraphUpdateEdgeNoSuchEdge(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p, _ := g.InsertNode("Playlist", map[string]string{"name": "P1"})
	err := g.UpdateEdge(u, p, 5, 1)
	if _, ok := err.(*NoSuchEdge); !ok {
		t.Fatalf("expected *NoSuchEdge, got %T (%v)", err, err)
	}
}

func TestGraphUpdateEdgeOverwritesWeightWithoutChangingEdgeCount(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p, _ := g.InsertNode("Playlist", map[string]string{"name": "P1"})
	if err := g.InsertEdge(u, p, 70); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}
	if err := g.UpdateEdge(u, p, 30, 7); err != nil {
		t.Fatalf("UpdateEdge: %v", err)
	}
	e, ok := g.Edge(u, p)
	if !ok {
		t.Fatal("expected edge to exist")
	}
	if e.Weight != 30 || e.LastBlock != 7 {
		t.Fatalf("unexpected edge state: %+v", e)
	}
	n, _ := g.Node(u)
	if n.EdgeCount != 1 {
		t.Fatalf("expected edge_count unchanged at 1, got %d", n.EdgeCount)
	}
}

func TestGraphRemoveEdgeUndoesInsert(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p, _ := g.InsertNode("Playlist", map[string]string{"name": "P1"})
	if err := g.InsertEdge(u, p, 70); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	g.RemoveEdge(u, p)

	if _, ok := g.Edge(u, p); ok {
		t.Fatal("expected edge to be gone after RemoveEdge")
	}
	un, _ := g.Node(u)
	pn, _ := g.Node(p)
	if un.EdgeCount != 0 || pn.EdgeCount != 0 {
		t.Fatalf("expected both endpoints' edge_count back to 0, got %d and %d", un.EdgeCount, pn.EdgeCount)
	}

	// Removing again, or removing an edge that never existed, is a no-op.
	g.RemoveEdge(u, p)
	g.RemoveEdge("nonexistent", "alsononexistent")
}

func TestGraphLookupByIndexBoundaries(t *testing.T) {
	schema := NewSchema()
	if err := schema.Define(NodeType{Name: "Item", Attributes: []AttributeDef{{Name: "price", Indexed: true}}}); err != nil {
		t.Fatalf("define Item: %v", err)
	}
	g2 := NewGraph(schema)
	g2.EnsureIndex("Item")

	ids := make(map[int]string)
	for _, price := range []int{10, 20, 30} {
		id, err := g2.InsertNode("Item", map[string]string{"price": itoa64(int64(price))})
		if err != nil {
			t.Fatalf("InsertNode: %v", err)
		}
		ids[price] = id
	}

	got, err := g2.LookupByIndex("Item", OpLe, "20")
	if err != nil {
		t.Fatalf("LookupByIndex: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results for <=20, got %d: %v", len(got), got)
	}

	got, err = g2.LookupByIndex("Item", OpGe, "20")
	if err != nil {
		t.Fatalf("LookupByIndex: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results for >=20, got %d: %v", len(got), got)
	}

	got, err = g2.LookupByIndex("Item", OpEq, "20")
	if err != nil {
		t.Fatalf("LookupByIndex: %v", err)
	}
	if len(got) != 1 || got[0] != ids[20] {
		t.Fatalf("expected exactly the id for price 20, got %v", got)
	}
}

func TestGraphJoinOrdering(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p1, _ := g.InsertNode("Playlist", map[string]string{"name": "Z"})
	p2, _ := g.InsertNode("Playlist", map[string]string{"name": "A"})
	if err := g.InsertEdge(u, p1, 60); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}
	if err := g.InsertEdge(u, p2, 60); err != nil {
		t.Fatalf("InsertEdge: %v", err)
	}

	pairs := g.Join([]string{u}, "Playlist", WeightPredicate{Kind: PredGt, Value: 50})
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Target >= pairs[1].Target {
		t.Fatalf("expected ascending target order, got %q then %q", pairs[0].Target, pairs[1].Target)
	}
}

func TestGraphApplyEdgeDataIsIdempotent(t *testing.T) {
	g, _ := newTestGraph(t)
	u, _ := g.InsertNode("User", map[string]string{"name": "John"})
	p, _ := g.InsertNode("Playlist", map[string]string{"name": "P1"})

	if err := g.ApplyEdgeData(u, p, 10, 1); err != nil {
		t.Fatalf("ApplyEdgeData first: %v", err)
	}
	if err := g.ApplyEdgeData(u, p, 20, 2); err != nil {
		t.Fatalf("ApplyEdgeData second: %v", err)
	}
	e, ok := g.Edge(u, p)
	if !ok {
		t.Fatal("expected edge to exist")
	}
	if e.Weight != 20 || e.LastBlock != 2 {
		t.Fatalf("unexpected edge state after idempotent apply: %+v", e)
	}
	n, _ := g.Node(u)
	if n.EdgeCount != 1 {
		t.Fatalf("expected edge_count still 1 after reapplying same edge, got %d", n.EdgeCount)
	}
}
