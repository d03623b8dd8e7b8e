// Package algebra defines the external, JSON-shaped algebra tree that an
// outside parser hands to the Plan Builder (spec.md section 6). The
// parser itself is out of scope; this package only fixes the shape the
// plan builder walks.
package algebra

import "github.com/minieraf/sparql-engine/term"

// QueryType discriminates the four SPARQL query forms.
type QueryType string

const (
	Select    QueryType = "SELECT"
	Construct QueryType = "CONSTRUCT"
	Ask       QueryType = "ASK"
	Describe  QueryType = "DESCRIBE"
)

// GroupType discriminates WHERE-clause group node shapes.
type GroupType string

const (
	GroupBGP      GroupType = "bgp"
	GroupGeneric  GroupType = "group"
	GroupOptional GroupType = "optional"
	GroupUnion    GroupType = "union"
	GroupMinus    GroupType = "minus"
	GroupGraph    GroupType = "graph"
	GroupService  GroupType = "service"
	GroupFilter   GroupType = "filter"
	GroupBind     GroupType = "bind"
	GroupValues   GroupType = "values"
)

// Group is one WHERE-clause node. Exactly the fields relevant to its Type
// are populated; this mirrors the loosely-typed JSON shape a parser
// produces rather than one Go type per node kind, since the plan builder
// dispatches purely on Type.
type Group struct {
	Type GroupType

	// GroupBGP
	Triples []term.Triple

	// GroupGeneric / GroupOptional / GroupMinus: nested patterns.
	Patterns []Group

	// GroupUnion: branches.
	Branches []Group

	// GroupGraph / GroupService: target (IRI or Variable). The body is the
	// single element of Patterns.
	Target term.Term
	// silent (SERVICE SILENT)
	Silent bool

	// GroupFilter / GroupBind
	Expr Expr
	// GroupBind target variable
	Variable term.Variable

	// GroupValues
	ValuesVars []term.Variable
	ValuesRows [][]term.Term // nil entry means UNDEF for that row/var
}

// ExprKind discriminates expression-tree node shapes (C4).
type ExprKind string

const (
	ExprVariable  ExprKind = "variable"
	ExprTerm      ExprKind = "term"
	ExprList      ExprKind = "list"
	ExprOperation ExprKind = "operation"
	ExprAggregate ExprKind = "aggregate"
	ExprFunction  ExprKind = "function"
)

// Expr is one node of an expression tree used by FILTER/BIND/HAVING and by
// ORDER BY / expression-bound SELECT projections.
type Expr struct {
	Kind ExprKind

	// ExprVariable
	Variable term.Variable
	// ExprTerm
	Term term.Term
	// ExprList
	List []Expr

	// ExprOperation: operator name (e.g. "+", "&&", "=", "!", "isIRI") and
	// its operands, evaluated left to right.
	Operator string
	Args     []Expr

	// ExprAggregate: aggregate name (SUM/COUNT/AVG/MIN/MAX/GROUP_CONCAT/
	// SAMPLE), the expression it aggregates (often a bare variable),
	// whether DISTINCT applies, and GROUP_CONCAT's separator.
	Aggregate string
	Distinct  bool
	Separator string

	// ExprFunction: the resolved function IRI and its argument expressions.
	FunctionIRI string

	// Alias/HasAlias mark a SELECT projection computed via AS (e.g.
	// `(SUM(?x) AS ?total)`); HasAlias false means a bare `?var` projection
	// that needs no BIND, just a name to project.
	Alias    term.Variable
	HasAlias bool
}

// IsAggregateExpr reports whether e is, or transitively contains, an
// aggregate — used to decide whether a SELECT/HAVING/ORDER BY expression
// needs GROUP BY bucketing to be in scope.
func (e Expr) IsAggregateExpr() bool {
	if e.Kind == ExprAggregate {
		return true
	}
	for _, a := range e.Args {
		if a.IsAggregateExpr() {
			return true
		}
	}
	for _, a := range e.List {
		if a.IsAggregateExpr() {
			return true
		}
	}
	return false
}

// Query is the root algebra node for SELECT/CONSTRUCT/ASK/DESCRIBE.
type Query struct {
	Type       QueryType
	Variables  []Expr // plain Variable exprs or expression-bound (AS) exprs
	Where      []Group
	GroupBy    []Expr
	Having     []Expr
	OrderBy    []OrderTerm
	Distinct   bool
	Reduced    bool
	Offset     int
	Limit      int
	HasLimit   bool
	HasOffset  bool
	From       []term.IRI // FROM graphs
	FromNamed  []term.IRI // FROM NAMED graphs
	Template   []term.Triple // CONSTRUCT template
	DescribeOf []term.Term   // DESCRIBE resources (IRI or Variable)
}

// OrderTerm is one ORDER BY key.
type OrderTerm struct {
	Expr       Expr
	Descending bool
}

// UpdateOp discriminates update-request operations (C10).
type UpdateOp string

const (
	OpInsert UpdateOp = "insert"
	OpDelete UpdateOp = "delete"
	OpLoad   UpdateOp = "load"
	OpCreate UpdateOp = "create"
	OpDrop   UpdateOp = "drop"
	OpClear  UpdateOp = "clear"
	OpCopy   UpdateOp = "copy"
	OpMove   UpdateOp = "move"
	OpAdd    UpdateOp = "add"
)

// Update is one update operation in a request.
type Update struct {
	Op UpdateOp

	// OpInsert / OpDelete: quad data, plus optional WHERE for
	// INSERT/DELETE ... WHERE (delete patterns may contain variables
	// bound by evaluating Where first).
	Quads []term.Quad
	Where []Group

	// OpLoad
	Source term.IRI
	Into    term.IRI
	HasInto bool

	// OpCreate / OpDrop / OpClear: which graph(s) the operation targets.
	Graph    term.IRI
	HasGraph bool
	Default  bool // DEFAULT graph
	Named    bool // all NAMED graphs
	All      bool // every graph (DEFAULT + all NAMED)

	// OpCopy / OpMove / OpAdd: source and destination graphs; *IsDefault
	// marks that side as DEFAULT instead of the corresponding IRI field.
	Source2       term.IRI
	SourceDefault bool
	Destination   term.IRI
	DestDefault   bool

	Silent bool
}

// UpdateRequest is a sequence of updates executed in order.
type UpdateRequest struct {
	Updates []Update
}
