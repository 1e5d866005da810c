package core

import (
	"fmt"
	"strings"
	"sync"
)

// Schema is the registry of declared node types: a named-registry-plus-
// mutex, the same shape as a map[string]*BinaryTree behind a sync.RWMutex,
// here holding NodeType definitions instead of trees.
type Schema struct {
	mu    sync.RWMutex
	types map[string]NodeType
}

// NewSchema returns an empty schema registry.
func NewSchema() *Schema {
	return &Schema{types: make(map[string]NodeType)}
}

// Define registers a new node type. Redefining an existing type name is
// rejected: schemas are append-only for the lifetime of the process.
func (s *Schema) Define(nt NodeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.types[nt.Name]; exists {
		return &DuplicateType{Type: nt.Name}
	}

	indexed := 0
	seen := make(map[string]struct{}, len(nt.Attributes))
	for _, a := range nt.Attributes {
		if strings.HasPrefix(a.Name, "$") {
			return &SchemaMismatch{Detail: fmt.Sprintf("attribute name %q is reserved", a.Name)}
		}
		if _, dup := seen[a.Name]; dup {
			return &SchemaMismatch{Detail: fmt.Sprintf("duplicate attribute %q", a.Name)}
		}
		seen[a.Name] = struct{}{}
		if a.Indexed {
			indexed++
		}
	}
	if indexed > 1 {
		return &IndexViolation{Detail: fmt.Sprintf("type %q declares %d indexed attributes, at most one allowed", nt.Name, indexed)}
	}

	s.types[nt.Name] = nt
	return nil
}

// Lookup returns the NodeType registered under name.
func (s *Schema) Lookup(name string) (NodeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nt, ok := s.types[name]
	if !ok {
		return NodeType{}, &UnknownType{Type: name}
	}
	return nt, nil
}

// Validate checks that attrs exactly matches the declared attribute set
// of the named type (every declared attribute present, no extras).
func (s *Schema) Validate(typeName string, attrs map[string]string) error {
	nt, err := s.Lookup(typeName)
	if err != nil {
		return err
	}
	declared := make(map[string]struct{}, len(nt.Attributes))
	for _, a := range nt.Attributes {
		declared[a.Name] = struct{}{}
		if _, ok := attrs[a.Name]; !ok {
			return &SchemaMismatch{Detail: fmt.Sprintf("missing attribute %q for type %q", a.Name, typeName)}
		}
	}
	for k := range attrs {
		if _, ok := declared[k]; !ok {
			return &SchemaMismatch{Detail: fmt.Sprintf("unexpected attribute %q for type %q", k, typeName)}
		}
	}
	return nil
}

// IsValidatorCandidate reports whether a node of the given type and
// attribute set satisfies that type's agent predicate: the predicate
// that marks a node eligible to become a ledger validator.
func (s *Schema) IsValidatorCandidate(typeName string, attrs map[string]string) (bool, error) {
	nt, err := s.Lookup(typeName)
	if err != nil {
		return false, err
	}
	if nt.Agent == nil {
		return false, nil
	}
	for k, want := range nt.Agent {
		if got, ok := attrs[k]; !ok || got != want {
			return false, nil
		}
	}
	return true, nil
}

// DefineResponseRow renders the response to a `define node` command: one
// row with a key for every declared attribute, each value the literal
// string "*" — an intentionally surfaced, documented output shape, not a
// bug to silently "fix" (see DESIGN.md).
func (s *Schema) DefineResponseRow(nt NodeType) *Row {
	row := NewRow()
	for _, a := range nt.Attributes {
		row.Set(a.Name, "*")
	}
	return row
}
