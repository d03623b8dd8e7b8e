package expr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/term"
)

func mustCompile(t *testing.T, r *Registry, e algebra.Expr) Func {
	t.Helper()
	f, err := r.Compile(e)
	require.NoError(t, err)
	return f
}

func TestCompileVariableAndTerm(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	v := term.Variable{Name: "x"}
	mu := mapping.New().With(v, term.NewTypedLiteral("5", term.XSDInteger))

	f := mustCompile(t, r, algebra.Expr{Kind: algebra.ExprVariable, Variable: v})
	got, err := f(ctx, mu)
	require.NoError(t, err)
	require.False(t, got.IsNil())
	assert.True(t, got.Term.Equal(term.NewTypedLiteral("5", term.XSDInteger)))

	f = mustCompile(t, r, algebra.Expr{Kind: algebra.ExprTerm, Term: term.NewPlainLiteral("hi")})
	got, err = f(ctx, mapping.New())
	require.NoError(t, err)
	assert.True(t, got.Term.Equal(term.NewPlainLiteral("hi")))
}

func TestArithmeticAndComparison(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	mu := mapping.New()

	addExpr := algebra.Expr{
		Kind:     algebra.ExprOperation,
		Operator: "+",
		Args: []algebra.Expr{
			{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("2", term.XSDInteger)},
			{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("3", term.XSDInteger)},
		},
	}
	f := mustCompile(t, r, addExpr)
	got, err := f(ctx, mu)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Term.(term.Literal).Lexical, "2+3")

	gtExpr := algebra.Expr{
		Kind:     algebra.ExprOperation,
		Operator: ">",
		Args: []algebra.Expr{
			{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("10", term.XSDInteger)},
			{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("3", term.XSDInteger)},
		},
	}
	f = mustCompile(t, r, gtExpr)
	got, err = f(ctx, mu)
	require.NoError(t, err)
	assert.Equal(t, "true", got.Term.(term.Literal).Lexical, "10 > 3")
}

func TestLogicalOrShortCircuitsDivisionByZero(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	va := term.Variable{Name: "a"}
	mu := mapping.New().With(va, term.NewTypedLiteral("0", term.XSDInteger))

	// ?a = 0 || 1/?a > 0 — the left operand is true, so the right operand
	// (which divides by zero) must never be evaluated.
	e := algebra.Expr{
		Kind:     algebra.ExprOperation,
		Operator: "||",
		Args: []algebra.Expr{
			{
				Kind: algebra.ExprOperation, Operator: "=",
				Args: []algebra.Expr{
					{Kind: algebra.ExprVariable, Variable: va},
					{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("0", term.XSDInteger)},
				},
			},
			{
				Kind: algebra.ExprOperation, Operator: ">",
				Args: []algebra.Expr{
					{
						Kind: algebra.ExprOperation, Operator: "/",
						Args: []algebra.Expr{
							{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("1", term.XSDInteger)},
							{Kind: algebra.ExprVariable, Variable: va},
						},
					},
					{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("0", term.XSDInteger)},
				},
			},
		},
	}
	f := mustCompile(t, r, e)
	_, err := f(ctx, mu)
	require.NoError(t, err, "the determining left operand must short-circuit past the division error")
	assert.True(t, EvalFilter(ctx, f, mu), "expected FILTER to keep the solution")
}

func TestLogicalAndShortCircuitsOnFalseLeft(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	va := term.Variable{Name: "a"}
	mu := mapping.New().With(va, term.NewTypedLiteral("0", term.XSDInteger))

	// ?a != 0 && 1/?a > 0 — the left operand is false, so the division on
	// the right must never run.
	e := algebra.Expr{
		Kind:     algebra.ExprOperation,
		Operator: "&&",
		Args: []algebra.Expr{
			{
				Kind: algebra.ExprOperation, Operator: "!=",
				Args: []algebra.Expr{
					{Kind: algebra.ExprVariable, Variable: va},
					{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("0", term.XSDInteger)},
				},
			},
			{
				Kind: algebra.ExprOperation, Operator: ">",
				Args: []algebra.Expr{
					{
						Kind: algebra.ExprOperation, Operator: "/",
						Args: []algebra.Expr{
							{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("1", term.XSDInteger)},
							{Kind: algebra.ExprVariable, Variable: va},
						},
					},
					{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("0", term.XSDInteger)},
				},
			},
		},
	}
	f := mustCompile(t, r, e)
	got, err := f(ctx, mu)
	require.NoError(t, err, "the false left operand must short-circuit past the division error")
	b, _ := termBool(got.Term)
	assert.False(t, b, "?a != 0 && ... should be false")
}

func TestUnknownOperatorFailsAtCompile(t *testing.T) {
	r := NewRegistry()
	_, err := r.Compile(algebra.Expr{Kind: algebra.ExprOperation, Operator: "nope"})
	assert.Error(t, err, "expected an unknown operator to fail at Compile time")
}

func TestEvalBindUnboundOnFailure(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	v := term.Variable{Name: "missing"}
	f := mustCompile(t, r, algebra.Expr{Kind: algebra.ExprVariable, Variable: v})
	out := EvalBind(ctx, f, term.Variable{Name: "bound"}, mapping.New())
	got, ok := out.Get(term.Variable{Name: "bound"})
	require.True(t, ok)
	assert.True(t, term.IsUnbound(got), "expected BIND of an unbound expression to produce Unbound")
}

func TestEvalFilterDropsOnNonBoolean(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	f := mustCompile(t, r, algebra.Expr{Kind: algebra.ExprTerm, Term: term.IRI{Value: "http://example.org/not-a-bool"}})
	assert.False(t, EvalFilter(ctx, f, mapping.New()), "expected FILTER on a term with no boolean value to drop the solution")
}

func TestAggregateOutsideGroupFails(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	v := term.Variable{Name: "x"}
	f := mustCompile(t, r, algebra.Expr{
		Kind:      algebra.ExprAggregate,
		Aggregate: "COUNT",
		Args:      []algebra.Expr{{Kind: algebra.ExprVariable, Variable: v}},
	})
	_, err := f(ctx, mapping.New())
	assert.Error(t, err, "expected COUNT without a GROUP BY bag to error")
}

func TestAggregateSum(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	v := term.Variable{Name: "x"}
	rows := []mapping.Solution{
		mapping.New().With(v, term.NewTypedLiteral("2", term.XSDInteger)),
		mapping.New().With(v, term.NewTypedLiteral("3", term.XSDInteger)),
	}
	e := algebra.Expr{Kind: algebra.ExprAggregate, Aggregate: "SUM", Args: []algebra.Expr{{Kind: algebra.ExprVariable, Variable: v}}}
	bag := map[string][]mapping.Solution{AggregateArgKey(e.Args): rows}
	mu := mapping.New().WithBag(mapping.AggregateBagKey, bag)

	f := mustCompile(t, r, e)
	got, err := f(ctx, mu)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Term.(term.Literal).Lexical, "SUM(2,3)")
}
