// Package core implements the weighted-graph database: schema registry,
// graph store, query language, executor, ledger and the p2p wire shapes
// that tie them together. Domain data structures live in one file to
// avoid cyclic imports between the files that operate on them.
package core

import (
	"time"
)

// AttributeDef is one declared attribute of a node type.
type AttributeDef struct {
	Name    string
	Indexed bool
}

// AgentPredicate is a conjunction of (attribute = literal) constraints that
// a node must satisfy to be an eligible validator.
type AgentPredicate map[string]string

// NodeType is a named, ordered attribute schema with at most one indexed
// attribute and an optional agent predicate.
type NodeType struct {
	Name       string
	Attributes []AttributeDef
	Agent      AgentPredicate // nil if this type never carries validators
}

// AttrNames returns the declared attribute names in schema order.
func (t NodeType) AttrNames() []string {
	out := make([]string, len(t.Attributes))
	for i, a := range t.Attributes {
		out[i] = a.Name
	}
	return out
}

// IndexedAttr returns the name of the type's indexed attribute, or "" if
// none is declared.
func (t NodeType) IndexedAttr() string {
	for _, a := range t.Attributes {
		if a.Indexed {
			return a.Name
		}
	}
	return ""
}

// Node is a vertex with a typed attribute record.
type Node struct {
	ID        string
	Type      string
	Attrs     map[string]string
	EdgeCount int
}

// Edge is a directed, weighted link between two nodes.
// At most one edge exists per ordered (FromID, ToID) pair.
type Edge struct {
	FromID     string
	ToID       string
	FromType   string
	ToType     string
	Weight     int64
	LastBlock  uint64 // id of the block that most recently set Weight
	HasBlock   bool
}

// PredKind enumerates the shapes a weight predicate can take: a tagged
// variant dispatched by match rather than by inheritance.
type PredKind uint8

const (
	PredEq PredKind = iota
	PredLt
	PredLe
	PredGt
	PredGe
)

// WeightPredicate is the tagged `{Eq,Lt,Le,Gt,Ge}(i64)` comparison variant
// a connection join or fetch predicate is built from.
type WeightPredicate struct {
	Kind  PredKind
	Value int64
}

// Match reports whether w satisfies the predicate.
func (p WeightPredicate) Match(w int64) bool {
	switch p.Kind {
	case PredEq:
		return w == p.Value
	case PredLt:
		return w < p.Value
	case PredLe:
		return w <= p.Value
	case PredGt:
		return w > p.Value
	case PredGe:
		return w >= p.Value
	default:
		return false
	}
}

// CompareOp is the comparison operator family shared by index lookups and
// weight predicates (`=, <, <=, >, >=`).
type CompareOp string

const (
	OpEq CompareOp = "="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

//---------------------------------------------------------------------
// Ledger / block structures
//---------------------------------------------------------------------

// BlockDataType discriminates the tagged union carried by a Block.
type BlockDataType string

const (
	DataRootNode     BlockDataType = "RootNode"
	DataValidator    BlockDataType = "ValidatorData"
	DataEdge         BlockDataType = "EdgeData"
)

// ValidatorData is the ValidatorData block payload variant.
type ValidatorData struct {
	AccountID string `json:"account_id"`
	PublicKey string `json:"public_key"`
}

// EdgeData is the EdgeData block payload variant.
type EdgeData struct {
	FromID string `json:"from_id"`
	ToID   string `json:"to_id"`
	Weight int64  `json:"weight"`
}

// BlockData is the three-variant tagged union carried by every block. Only
// one field is non-nil at a time; canonical JSON always emits a
// `data_type` discriminator and `null` for the unused slots. Field order
// is alphabetical by JSON key (data_type, edge_data, validator_data) so
// the struct's natural encoding order already matches the canonical
// signing/hashing rendering's "keys sorted alphabetically" requirement.
type BlockData struct {
	DataType  BlockDataType  `json:"data_type"`
	Edge      *EdgeData      `json:"edge_data"`
	Validator *ValidatorData `json:"validator_data"`
}

// Block is one entry of the hash-chained ledger.
type Block struct {
	ID           uint64    `json:"id"`
	Timestamp    int64     `json:"timestamp"`
	PreviousHash string    `json:"previous_hash"`
	Hash         string    `json:"hash"`
	Nonce        uint64    `json:"nonce"`
	Difficulty   int       `json:"difficulty"`
	Validator    string    `json:"validator"` // hex public key; empty for genesis
	Signature    string    `json:"signature"` // hex signature; empty for genesis
	Data         BlockData `json:"data"`
}

// Row is one result row: an ordered sequence of key/value string pairs.
// A plain map cannot be used because rendered results must preserve the
// order attributes were declared or selected in.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow returns an empty, ready-to-use row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// Set appends key=value, overwriting value in place if key was already set.
func (r *Row) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string { return r.keys }

// Get returns the value for key and whether it was present.
func (r *Row) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Clone returns an independent copy of r.
func (r *Row) Clone() *Row {
	out := NewRow()
	for _, k := range r.keys {
		out.Set(k, r.values[k])
	}
	return out
}

// nowFunc abstracts time.Now so tests can hold it steady while leaving
// the default behavior (real wall-clock time) untouched for production
// use on the mining/append path.
var nowFunc = func() time.Time { return time.Now() }
