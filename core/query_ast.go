package core

// Abstract syntax for the query grammar's command forms. Each concrete
// command type implements Command purely as a marker — the executor
// switches on the concrete type rather than dispatching through method
// sets, the same tagged-variant style used for the weight-predicate type.

// Command is implemented by every parsed query.
type Command interface{ isCommand() }

// AttrSpec is one attribute declaration inside a `define node` command.
type AttrSpec struct {
	Name    string
	Indexed bool
}

// DefineCmd is `define node T(a1, …) [with agent (k=v, …)]`.
type DefineCmd struct {
	TypeName string
	Attrs    []AttrSpec
	Agent    AgentPredicate // nil if no `with agent` clause
}

func (DefineCmd) isCommand() {}

// Assign is one `name = value` pair inside an `add node` attribute list.
type Assign struct {
	Name  string
	Value string
}

// AddNodeCmd is `add node T(a1=v1, …)`.
type AddNodeCmd struct {
	TypeName string
	Assigns  []Assign
}

func (AddNodeCmd) isCommand() {}

// Comparison is one `attr op value` term inside a selector.
type Comparison struct {
	Attr  string
	Op    CompareOp
	Value string
}

// Selector narrows a type's nodes to a subset, either by `$id = "..."` or
// by a conjunction of attribute comparisons.
type Selector struct {
	ByID  bool
	ID    string
	Attrs []Comparison
}

// AddConnCmd is `add connection from T(sel) to T(sel) with weight N`.
type AddConnCmd struct {
	FromType string
	FromSel  Selector
	ToType   string
	ToSel    Selector
	Weight   int64
}

func (AddConnCmd) isCommand() {}

// UpdConnCmd is `update connection from T(sel) to T(sel) with weight N`.
type UpdConnCmd struct {
	FromType string
	FromSel  Selector
	ToType   string
	ToSel    Selector
	Weight   int64
}

func (UpdConnCmd) isCommand() {}

// JoinStep is one `join T(weightPred)` clause of a fetch.
type JoinStep struct {
	TypeName string
	Pred     WeightPredicate
}

// FetchNodeCmd is `fetch T(sel) (join T(weightPred))*`.
type FetchNodeCmd struct {
	TypeName string
	Sel      Selector
	Joins    []JoinStep
}

func (FetchNodeCmd) isCommand() {}

// FetchChainCmd is `fetch connection chain`.
type FetchChainCmd struct{}

func (FetchChainCmd) isCommand() {}
