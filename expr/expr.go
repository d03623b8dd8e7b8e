// Package expr implements the SPARQL expression evaluator (C4): compiling
// an algebra.Expr tree into a closure over a mapping.Solution, built-in
// operators, aggregates, and custom function/aggregate resolution (spec.md
// section 4.4).
package expr

import (
	"context"
	"fmt"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

// Value is the result of evaluating an expression: a single term, a list
// of terms (IN/NOT IN operands), or nil to mean "evaluation failed". Each
// consumer applies its own error policy on nil (spec.md section 4.4's
// error-to-unbound rule).
type Value struct {
	Term term.Term
	List []term.Term
}

// single builds a one-term Value.
func single(t term.Term) Value { return Value{Term: t} }

// IsNil reports a failed evaluation (neither Term nor List set).
func (v Value) IsNil() bool { return v.Term == nil && v.List == nil }

// Func is a compiled expression: evaluate against one solution, returning
// a Value (IsNil() on failure) or an error for conditions the caller must
// treat as fatal rather than converted to Unbound (AggregationOutsideGroup
// is raised here, when an aggregate runs without an __aggregate bag;
// UnknownFunction is raised at Compile time).
type Func func(ctx context.Context, mu mapping.Solution) (Value, error)

// Operator implements one built-in operator over already-evaluated
// operand values.
type Operator func(args []Value) (Value, error)

// Aggregator implements one aggregate function over a (possibly
// DISTINCT-deduplicated) list of terms.
type Aggregator func(terms []term.Term, separator string) (term.Term, error)

// CustomFunction is a user-supplied function resolved by IRI.
type CustomFunction func(ctx context.Context, args []Value) (Value, error)

// Registry holds built-in and user-registered operators, functions, and
// aggregates. A Registry is safe for concurrent Compile calls once built;
// registration should happen before first use.
type Registry struct {
	operators  map[string]Operator
	aggregates map[string]Aggregator
	functions  map[string]CustomFunction
	customAggs map[string]CustomFunction
}

// NewRegistry builds a Registry pre-populated with the standard SPARQL
// built-in operators and aggregates.
func NewRegistry() *Registry {
	r := &Registry{
		operators:  make(map[string]Operator),
		aggregates: make(map[string]Aggregator),
		functions:  make(map[string]CustomFunction),
		customAggs: make(map[string]CustomFunction),
	}
	registerBuiltinOperators(r)
	registerBuiltinAggregates(r)
	return r
}

// RegisterFunction adds a user-supplied function under functionIRI.
func (r *Registry) RegisterFunction(iri string, fn CustomFunction) {
	r.functions[iri] = fn
}

// RegisterAggregate adds a user-supplied custom aggregate under its IRI;
// custom aggregates are searched before built-ins (spec.md section 4.4).
func (r *Registry) RegisterAggregate(iri string, fn CustomFunction) {
	r.customAggs[iri] = fn
}

// Compile turns an algebra.Expr into a Func. It returns a *sparqlerr.Error
// for conditions that must fail the query at compile time rather than be
// converted to Unbound: UnknownFunction. AggregationOutsideGroup is
// returned by the compiled Func when it is evaluated.
func (r *Registry) Compile(e algebra.Expr) (Func, error) {
	switch e.Kind {
	case algebra.ExprVariable:
		v := e.Variable
		return func(ctx context.Context, mu mapping.Solution) (Value, error) {
			t, ok := mu.Get(v)
			if !ok {
				return Value{}, nil
			}
			return single(t), nil
		}, nil

	case algebra.ExprTerm:
		t := e.Term
		return func(ctx context.Context, mu mapping.Solution) (Value, error) {
			return single(t), nil
		}, nil

	case algebra.ExprList:
		compiled := make([]Func, len(e.List))
		for i, sub := range e.List {
			f, err := r.Compile(sub)
			if err != nil {
				return nil, err
			}
			compiled[i] = f
		}
		return func(ctx context.Context, mu mapping.Solution) (Value, error) {
			terms := make([]term.Term, 0, len(compiled))
			for _, f := range compiled {
				v, err := f(ctx, mu)
				if err != nil {
					return Value{}, err
				}
				if v.IsNil() {
					return Value{}, nil
				}
				terms = append(terms, v.Term)
			}
			return Value{List: terms}, nil
		}, nil

	case algebra.ExprOperation:
		if e.Operator == "&&" || e.Operator == "||" {
			return r.compileLogical(e)
		}
		op, ok := r.operators[e.Operator]
		if !ok {
			return nil, sparqlerr.UnknownFunction("unknown operator: %s", e.Operator)
		}
		compiled := make([]Func, len(e.Args))
		for i, a := range e.Args {
			f, err := r.Compile(a)
			if err != nil {
				return nil, err
			}
			compiled[i] = f
		}
		return func(ctx context.Context, mu mapping.Solution) (Value, error) {
			args := make([]Value, len(compiled))
			for i, f := range compiled {
				v, err := f(ctx, mu)
				if err != nil {
					return Value{}, err
				}
				args[i] = v
			}
			return op(args)
		}, nil

	case algebra.ExprAggregate:
		return r.compileAggregate(e)

	case algebra.ExprFunction:
		return r.compileFunction(e)

	default:
		return nil, sparqlerr.UnknownFunction("unrecognized expression kind: %s", e.Kind)
	}
}

// compileLogical compiles && and || with left-to-right short-circuiting:
// an operand that already determines the result (false for &&, true for
// ||) stops evaluation of every operand after it, so a later operand's
// error (e.g. division by zero) never surfaces once the outcome is fixed.
// An error or non-boolean from an operand that does NOT yet determine the
// result is deferred; it only surfaces if no later operand determines the
// outcome either.
func (r *Registry) compileLogical(e algebra.Expr) (Func, error) {
	compiled := make([]Func, len(e.Args))
	for i, a := range e.Args {
		f, err := r.Compile(a)
		if err != nil {
			return nil, err
		}
		compiled[i] = f
	}
	isAnd := e.Operator == "&&"
	return func(ctx context.Context, mu mapping.Solution) (Value, error) {
		deferredErr := false
		for _, f := range compiled {
			v, err := f(ctx, mu)
			if err != nil || v.IsNil() || v.Term == nil {
				deferredErr = true
				continue
			}
			b, ok := termBool(v.Term)
			if !ok {
				deferredErr = true
				continue
			}
			if isAnd && !b {
				return single(boolLit(false)), nil
			}
			if !isAnd && b {
				return single(boolLit(true)), nil
			}
		}
		if deferredErr {
			return Value{}, fmt.Errorf("%s operand error", e.Operator)
		}
		return single(boolLit(isAnd)), nil
	}, nil
}

// compileAggregate reads __aggregate from the property bag at evaluation
// time and applies the named aggregate with DISTINCT dedup (by canonical
// form) when requested.
func (r *Registry) compileAggregate(e algebra.Expr) (Func, error) {
	argFn, err := r.Compile(firstOrVar(e.Args))
	if err != nil {
		return nil, err
	}
	agg, builtin := r.aggregates[e.Aggregate]
	custom, isCustom := r.customAggs[e.Aggregate]
	if !builtin && !isCustom {
		return nil, sparqlerr.UnknownFunction("unknown aggregate: %s", e.Aggregate)
	}
	distinct := e.Distinct
	separator := e.Separator

	return func(ctx context.Context, mu mapping.Solution) (Value, error) {
		raw, ok := mu.Bag(mapping.AggregateBagKey)
		if !ok {
			return Value{}, sparqlerr.AggregationOutsideGroup("aggregate %s used without GROUP BY context", e.Aggregate)
		}
		group, ok := raw.(map[string][]mapping.Solution)
		if !ok {
			return Value{}, sparqlerr.AggregationOutsideGroup("malformed aggregate bag for %s", e.Aggregate)
		}
		key := AggregateArgKey(e.Args)
		rows := group[key]

		var terms []term.Term
		for _, row := range rows {
			v, err := argFn(ctx, row)
			if err != nil || v.IsNil() {
				continue
			}
			terms = append(terms, v.Term)
		}
		if distinct {
			terms = dedupTerms(terms)
		}
		var result term.Term
		if isCustom {
			cv, cerr := custom(ctx, []Value{{List: terms}})
			if cerr != nil {
				return Value{}, nil
			}
			result = cv.Term
		} else {
			rv, rerr := agg(terms, separator)
			if rerr != nil {
				return Value{}, nil
			}
			result = rv
		}
		return single(result), nil
	}, nil
}

// AggregateArgKey identifies which grouped-row bucket an aggregate reads;
// the plan builder keys __aggregate by a canonical rendering of the
// aggregated expression so distinct aggregate expressions over the same
// group don't collide.
func AggregateArgKey(args []algebra.Expr) string {
	if len(args) == 0 {
		return "*"
	}
	return fmt.Sprintf("%+v", args[0])
}

func firstOrVar(args []algebra.Expr) algebra.Expr {
	if len(args) == 0 {
		return algebra.Expr{Kind: algebra.ExprTerm, Term: nil}
	}
	return args[0]
}

func dedupTerms(terms []term.Term) []term.Term {
	seen := make(map[string]bool, len(terms))
	var out []term.Term
	for _, t := range terms {
		k := term.Canonical(t)
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	return out
}

// compileFunction resolves e.FunctionIRI: custom aggregates first (for
// aggregate-shaped function calls), then user functions, then built-ins
// exposed as functions; unresolved IRIs fail at compile time.
func (r *Registry) compileFunction(e algebra.Expr) (Func, error) {
	iri := e.FunctionIRI
	compiled := make([]Func, len(e.Args))
	for i, a := range e.Args {
		f, err := r.Compile(a)
		if err != nil {
			return nil, err
		}
		compiled[i] = f
	}

	if fn, ok := r.customAggs[iri]; ok {
		return wrapCustom(compiled, fn), nil
	}
	if fn, ok := r.functions[iri]; ok {
		return wrapCustom(compiled, fn), nil
	}
	if op, ok := r.operators[iri]; ok {
		return func(ctx context.Context, mu mapping.Solution) (Value, error) {
			args := make([]Value, len(compiled))
			for i, f := range compiled {
				v, err := f(ctx, mu)
				if err != nil {
					return Value{}, err
				}
				args[i] = v
			}
			return op(args)
		}, nil
	}
	return nil, sparqlerr.UnknownFunction("unresolved function IRI: %s", iri)
}

func wrapCustom(compiled []Func, fn CustomFunction) Func {
	return func(ctx context.Context, mu mapping.Solution) (Value, error) {
		args := make([]Value, len(compiled))
		for i, f := range compiled {
			v, err := f(ctx, mu)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		v, err := fn(ctx, args)
		if err != nil {
			// A custom function throwing is an ExpressionEvaluationError;
			// per spec.md section 4.4 the evaluator itself returns nil
			// (no error) so the consumer applies BIND/FILTER/HAVING policy.
			return Value{}, nil
		}
		return v, nil
	}
}

// EvalBind evaluates e against mu for a BIND: on success returns mu
// extended with v; on failure returns mu extended with v = Unbound (the
// error-to-unbound rule), never an error — BIND always emits its input.
func EvalBind(ctx context.Context, f Func, v term.Variable, mu mapping.Solution) mapping.Solution {
	val, err := f(ctx, mu)
	if err != nil || val.IsNil() || val.Term == nil {
		return mu.With(v, term.Unbound)
	}
	return mu.With(v, val.Term)
}

// EvalFilter evaluates e against mu for a FILTER: an effective boolean
// value of true keeps the solution; false, evaluation failure, or a result
// with no effective boolean value (e.g. an IRI) drops it.
func EvalFilter(ctx context.Context, f Func, mu mapping.Solution) bool {
	val, err := f(ctx, mu)
	if err != nil || val.IsNil() || val.Term == nil {
		return false
	}
	b, ok := termBool(val.Term)
	return ok && b
}

func termBool(t term.Term) (bool, bool) {
	lit, ok := t.(term.Literal)
	if !ok {
		return false, false
	}
	switch lit.Datatype {
	case term.XSDBoolean:
		return lit.Lexical == "true" || lit.Lexical == "1", true
	case term.XSDString:
		return lit.Lexical != "", true
	}
	if f, ok := numericFloat(lit); ok {
		return f != 0, true
	}
	return false, false
}

func numericFloat(l term.Literal) (float64, bool) {
	switch l.Datatype {
	case term.XSDInteger, term.XSDFloat, term.XSDDouble:
	default:
		return 0, false
	}
	var f float64
	if _, err := fmt.Sscanf(l.Lexical, "%g", &f); err != nil {
		return 0, false
	}
	return f, true
}

// OrderComparator builds a total-order comparator over compiled ORDER BY
// keys, for use by the order-by stage (exec package): -1/0/1, descending
// keys negate their term.Compare result.
func OrderComparator(fns []Func, descs []bool) func(ctx context.Context, a, b mapping.Solution) int {
	return func(ctx context.Context, a, b mapping.Solution) int {
		for i, f := range fns {
			va, _ := f(ctx, a)
			vb, _ := f(ctx, b)
			at, bt := term.Unbound, term.Unbound
			if !va.IsNil() {
				at = va.Term
			}
			if !vb.IsNil() {
				bt = vb.Term
			}
			c := term.Compare(at, bt)
			if descs[i] {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}
