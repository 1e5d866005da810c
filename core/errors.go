package core

import "fmt"

// Error kinds, each surfaced as a single-line human-readable message with
// a stable prefix. The executor's top-level error path renders any
// returned error as `[{"error":"<kind>: <message>"}]`. Each kind below is
// a small typed leaf error so callers can still errors.As/errors.Is;
// internal/utils.Wrap adds context at call boundaries that need it, while
// this file keeps a stable single-line message at the top.

// ParseError reports a query that did not match the grammar.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ParseError: %s at offset %d", e.Message, e.Offset)
}

// UnknownType reports a reference to an undeclared node type.
type UnknownType struct{ Type string }

func (e *UnknownType) Error() string { return fmt.Sprintf("UnknownType: %s", e.Type) }

// DuplicateType reports a define node for an already-registered type.
type DuplicateType struct{ Type string }

func (e *DuplicateType) Error() string { return fmt.Sprintf("DuplicateType: %s", e.Type) }

// SchemaMismatch reports an attribute set that does not match a type's schema.
type SchemaMismatch struct{ Detail string }

func (e *SchemaMismatch) Error() string { return fmt.Sprintf("SchemaMismatch: %s", e.Detail) }

// UnknownNode reports a reference to a node id that does not exist.
type UnknownNode struct{ ID string }

func (e *UnknownNode) Error() string { return fmt.Sprintf("UnknownNode: %s", e.ID) }

// DuplicateEdge reports an attempt to add a second edge for an ordered pair.
type DuplicateEdge struct{ From, To string }

func (e *DuplicateEdge) Error() string {
	return fmt.Sprintf("DuplicateEdge: %s -> %s", e.From, e.To)
}

// NoSuchEdge reports an update_connection against a pair with no edge yet.
type NoSuchEdge struct{ From, To string }

func (e *NoSuchEdge) Error() string {
	return fmt.Sprintf("NoSuchEdge: %s -> %s", e.From, e.To)
}

// DuplicateId reports an id collision on node insertion.
type DuplicateId struct{ ID string }

func (e *DuplicateId) Error() string { return fmt.Sprintf("DuplicateId: %s", e.ID) }

// NotAValidator reports a block whose validator is not a node matching
// its type's agent predicate.
type NotAValidator struct{ Detail string }

func (e *NotAValidator) Error() string { return fmt.Sprintf("NotAValidator: %s", e.Detail) }

// EdgeCountRuleViolation reports a "1 edge more" Proof-of-Interaction
// admission failure.
type EdgeCountRuleViolation struct{ Detail string }

func (e *EdgeCountRuleViolation) Error() string {
	return fmt.Sprintf("EdgeCountRuleViolation: %s", e.Detail)
}

// DifficultyMismatch reports a block whose stated difficulty does not
// equal its validator's edge count at append time.
type DifficultyMismatch struct{ Detail string }

func (e *DifficultyMismatch) Error() string {
	return fmt.Sprintf("DifficultyMismatch: %s", e.Detail)
}

// BadSignature reports a block whose signature does not verify against
// its validator public key.
type BadSignature struct{ Detail string }

func (e *BadSignature) Error() string { return fmt.Sprintf("BadSignature: %s", e.Detail) }

// BadPreviousHash reports a block whose previous_hash does not match the
// current chain tip.
type BadPreviousHash struct{ Detail string }

func (e *BadPreviousHash) Error() string { return fmt.Sprintf("BadPreviousHash: %s", e.Detail) }

// BadHash reports a block whose hash does not match a recomputation, or
// does not meet its declared difficulty.
type BadHash struct{ Detail string }

func (e *BadHash) Error() string { return fmt.Sprintf("BadHash: %s", e.Detail) }

// TransportError reports a p2p publish/receive failure.
type TransportError struct{ Detail string }

func (e *TransportError) Error() string { return fmt.Sprintf("TransportError: %s", e.Detail) }

// IndexViolation reports a type declaring more than one indexed attribute.
type IndexViolation struct{ Detail string }

func (e *IndexViolation) Error() string { return fmt.Sprintf("IndexViolation: %s", e.Detail) }

// errorRow renders err as the single-row `[{"error": "..."}]` shape
// required at the top of the executor.
func errorRow(err error) []*Row {
	r := NewRow()
	r.Set("error", err.Error())
	return []*Row{r}
}
