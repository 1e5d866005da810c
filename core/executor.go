package core

import "encoding/json"

// Query executor: binds parsed commands to store operations, runs the
// left-deep join plan for `fetch node`, and materializes result rows.

// nodeRow renders one node's fields under the join-depth prefix (empty
// for the root, "<Type>." for a joined node — a one-segment prefix naming
// only the current step's type, not an accumulating "T1.T2.key" chain;
// see DESIGN.md for why).
func (e *Engine) nodeRow(typeName, id, prefix string) *Row {
	row := NewRow()
	n, err := e.Graph.Node(id)
	if err != nil {
		row.Set(prefix+"$name", typeName)
		row.Set(prefix+"$id", id)
		return row
	}
	row.Set(prefix+"$name", typeName)
	row.Set(prefix+"$id", id)
	row.Set(prefix+"$edges", itoa64(int64(n.EdgeCount)))
	nt, err := e.Schema.Lookup(typeName)
	if err == nil {
		for _, a := range nt.Attributes {
			row.Set(prefix+a.Name, n.Attrs[a.Name])
		}
	}
	return row
}

func joinPrefix(typeName string) string { return typeName + "." }

// resolveCandidates narrows typeName's nodes to the ids matching sel,
// using the secondary index when available, falling back to an id lookup
// or a full scan when neither applies.
func (e *Engine) resolveCandidates(typeName string, sel Selector) ([]string, error) {
	if sel.ByID {
		n, err := e.Graph.Node(sel.ID)
		if err != nil {
			return nil, nil
		}
		if n.Type != typeName {
			return nil, nil
		}
		return []string{n.ID}, nil
	}

	nt, err := e.Schema.Lookup(typeName)
	if err != nil {
		return nil, err
	}

	var candidates []string
	rest := sel.Attrs
	if idxAttr := nt.IndexedAttr(); idxAttr != "" {
		for i, comp := range sel.Attrs {
			if comp.Attr == idxAttr {
				ids, err := e.Graph.LookupByIndex(typeName, comp.Op, comp.Value)
				if err != nil {
					return nil, err
				}
				candidates = ids
				rest = append(append([]Comparison{}, sel.Attrs[:i]...), sel.Attrs[i+1:]...)
				break
			}
		}
	}
	if candidates == nil {
		candidates = e.Graph.AllNodesOfType(typeName)
	}

	for _, comp := range rest {
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
	return candidates, nil
}

// pathState is one in-progress path through the left-deep join plan: the
// current frontier node id and the row built from every node visited so
// far.
type pathState struct {
	currentID string
	row       *Row
}

func (e *Engine) execFetchNode(c FetchNodeCmd) ([]*Row, error) {
	roots, err := e.resolveCandidates(c.TypeName, c.Sel)
	if err != nil {
		return nil, err
	}

	paths := make([]pathState, 0, len(roots))
	for _, id := range roots {
		paths = append(paths, pathState{currentID: id, row: e.nodeRow(c.TypeName, id, "")})
	}

	for _, step := range c.Joins {
		var next []pathState
		for _, p := range paths {
			pairs := e.Graph.Join([]string{p.currentID}, step.TypeName, step.Pred)
			for _, pair := range pairs {
				row := p.row.Clone()
				joined := e.nodeRow(step.TypeName, pair.Target, joinPrefix(step.TypeName))
				for _, k := range joined.Keys() {
					v, _ := joined.Get(k)
					row.Set(k, v)
				}
				next = append(next, pathState{currentID: pair.Target, row: row})
			}
			// a path that fails any join produces no row — paths with zero
			// matching pairs are simply not carried forward.
		}
		paths = next
	}

	out := make([]*Row, 0, len(paths))
	for _, p := range paths {
		out = append(out, p.row)
	}
	return out, nil
}

// execFetchChain renders every ledger block in append order for
// `fetch connection chain`: keys signature, difficulty, validator, id,
// data, timestamp, previous_hash, hash, every value a string, with data
// embedded as an escaped JSON string.
func (e *Engine) execFetchChain() ([]*Row, error) {
	blocks := e.Ledger.Blocks()
	out := make([]*Row, 0, len(blocks))
	for _, b := range blocks {
		dataJSON, err := json.Marshal(b.Data)
		if err != nil {
			return nil, err
		}
		row := NewRow()
		row.Set("signature", b.Signature)
		row.Set("difficulty", itoa64(int64(b.Difficulty)))
		row.Set("validator", b.Validator)
		row.Set("id", itoa64(int64(b.ID)))
		row.Set("data", string(dataJSON))
		row.Set("timestamp", itoa64(b.Timestamp))
		row.Set("previous_hash", b.PreviousHash)
		row.Set("hash", b.Hash)
		out = append(out, row)
	}
	return out, nil
}
