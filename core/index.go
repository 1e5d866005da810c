package core

import (
	"sync"

	"github.com/google/btree"
)

// Secondary index over one type's indexed attribute. Grounded on
// github.com/google/btree's v1 API (btree.New(degree) plus
// AscendGreaterOrEqual range scans) rather than a hand-rolled tree.
//
// Attribute values are strings but the index orders them as signed
// integers when the value parses as one, falling back to lexicographic
// byte order otherwise — fetch predicates over an indexed attribute are
// always one of `=, <, <=, >, >=`, which only have a sensible total order
// once numeric values are compared numerically rather than as strings
// ("10" < "9" lexicographically but not numerically).

const indexDegree = 32

// indexItem is one (value, node id) pair stored in the btree. Multiple
// nodes may share the same attribute value, so the node id is part of
// the ordering key to keep every item distinct.
type indexItem struct {
	key    indexKey
	nodeID string
}

func (a indexItem) Less(than btree.Item) bool {
	b := than.(indexItem)
	if c := a.key.compare(b.key); c != 0 {
		return c < 0
	}
	return a.nodeID < b.nodeID
}

// indexKey normalises an attribute's string value into a comparable key:
// numeric values compare as int64, everything else compares as string.
type indexKey struct {
	isNum bool
	num   int64
	str   string
}

func newIndexKey(value string) indexKey {
	if n, ok := parseInt64(value); ok {
		return indexKey{isNum: true, num: n}
	}
	return indexKey{str: value}
}

func (k indexKey) compare(o indexKey) int {
	if k.isNum && o.isNum {
		switch {
		case k.num < o.num:
			return -1
		case k.num > o.num:
			return 1
		default:
			return 0
		}
	}
	// numeric values sort before non-numeric ones so the two attribute
	// families never interleave unpredictably within one index.
	if k.isNum != o.isNum {
		if k.isNum {
			return -1
		}
		return 1
	}
	switch {
	case k.str < o.str:
		return -1
	case k.str > o.str:
		return 1
	default:
		return 0
	}
}

func parseInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	neg := false
	i := 0
	if s[0] == '-' || s[0] == '+' {
		neg = s[0] == '-'
		i = 1
	}
	if i == len(s) {
		return 0, false
	}
	var n int64
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// Index is a mutex-guarded btree mapping one node type's indexed
// attribute values to the set of node ids holding them.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewIndex returns an empty secondary index.
func NewIndex() *Index {
	return &Index{tree: btree.New(indexDegree)}
}

// Insert adds node id under the given attribute value.
func (ix *Index) Insert(value, nodeID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.tree.ReplaceOrInsert(indexItem{key: newIndexKey(value), nodeID: nodeID})
}

// Query returns, in ascending key order, the node ids whose indexed
// attribute value satisfies op against value.
func (ix *Index) Query(op CompareOp, value string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	target := newIndexKey(value)
	var out []string

	switch op {
	case OpEq:
		ix.tree.AscendGreaterOrEqual(indexItem{key: target}, func(it btree.Item) bool {
			cur := it.(indexItem)
			if cur.key.compare(target) != 0 {
				return false
			}
			out = append(out, cur.nodeID)
			return true
		})
	case OpGe:
		ix.tree.AscendGreaterOrEqual(indexItem{key: target}, func(it btree.Item) bool {
			out = append(out, it.(indexItem).nodeID)
			return true
		})
	case OpGt:
		ix.tree.AscendGreaterOrEqual(indexItem{key: target}, func(it btree.Item) bool {
			cur := it.(indexItem)
			if cur.key.compare(target) == 0 {
				return true
			}
			out = append(out, cur.nodeID)
			return true
		})
	case OpLe:
		ix.tree.AscendLessThan(indexItem{key: target, nodeID: "\xff"}, func(it btree.Item) bool {
			out = append(out, it.(indexItem).nodeID)
			return true
		})
	case OpLt:
		ix.tree.AscendLessThan(indexItem{key: target}, func(it btree.Item) bool {
			out = append(out, it.(indexItem).nodeID)
			return true
		})
	}
	return out
}
