package plan

import (
	"context"
	"testing"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/graph/memory"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

func ex(local string) term.IRI { return term.IRI{Value: "http://example.org/" + local} }

func newTestBuilder(t *testing.T) (*Builder, *graph.Dataset) {
	t.Helper()
	factory := func(iri term.IRI) graph.Graph { return memory.New(iri) }
	ds := graph.NewDataset(memory.New(ex("default")), factory, true)
	g := ds.Default()
	ctx := context.Background()
	_ = g.Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("name"), Object: term.NewPlainLiteral("Alice")})
	_ = g.Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("age"), Object: term.NewTypedLiteral("30", term.XSDInteger)})
	_ = g.Insert(ctx, term.Triple{Subject: ex("bob"), Predicate: ex("name"), Object: term.NewPlainLiteral("Bob")})
	_ = g.Insert(ctx, term.Triple{Subject: ex("bob"), Predicate: ex("age"), Object: term.NewTypedLiteral("25", term.XSDInteger)})
	_ = g.Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")})
	return New(ds, nil, Options{}), ds
}

func TestSelectBasicBGP(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t)
	vs, vname := term.Variable{Name: "s"}, term.Variable{Name: "name"}
	q := &algebra.Query{
		Type:      algebra.Select,
		Variables: []algebra.Expr{{Kind: algebra.ExprVariable, Variable: vs}, {Kind: algebra.ExprVariable, Variable: vname}},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("name"), Object: vname}}},
		},
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, err := pipeline.Collect(ctx, result.Solutions)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 solutions, got %d", len(rows))
	}
}

func TestAskQuery(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t)
	q := &algebra.Query{
		Type: algebra.Ask,
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")}}},
		},
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !result.Ask {
		t.Error("expected ASK to be true for an existing triple")
	}

	q2 := &algebra.Query{
		Type: algebra.Ask,
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: ex("bob"), Predicate: ex("knows"), Object: ex("alice")}}},
		},
	}
	result2, err := b.Build(ctx, q2)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result2.Ask {
		t.Error("expected ASK to be false for a nonexistent triple")
	}
}

func TestFilterAndOrderBy(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t)
	vs, vage := term.Variable{Name: "s"}, term.Variable{Name: "age"}
	q := &algebra.Query{
		Type:      algebra.Select,
		Variables: []algebra.Expr{{Kind: algebra.ExprVariable, Variable: vage}},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("age"), Object: vage}}},
			{Type: algebra.GroupFilter, Expr: algebra.Expr{
				Kind:     algebra.ExprOperation,
				Operator: ">",
				Args: []algebra.Expr{
					{Kind: algebra.ExprVariable, Variable: vage},
					{Kind: algebra.ExprTerm, Term: term.NewTypedLiteral("26", term.XSDInteger)},
				},
			}},
		},
		OrderBy: []algebra.OrderTerm{{Expr: algebra.Expr{Kind: algebra.ExprVariable, Variable: vage}}},
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, err := pipeline.Collect(ctx, result.Solutions)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row over age 26 (only Alice's 30), got %d", len(rows))
	}
}

func TestConstructQuery(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t)
	vs, vo := term.Variable{Name: "s"}, term.Variable{Name: "o"}
	q := &algebra.Query{
		Type:     algebra.Construct,
		Template: []term.Triple{{Subject: vs, Predicate: ex("friendOf"), Object: vo}},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("knows"), Object: vo}}},
		},
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	triples, err := pipeline.Collect(ctx, result.Triples)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("expected one CONSTRUCTed triple, got %d", len(triples))
	}
}

func TestConstructLimitBoundsTriplesNotSolutions(t *testing.T) {
	ctx := context.Background()
	b, ds := newTestBuilder(t)
	// A second knows-edge gives two solutions, each expanding to two
	// template triples; LIMIT 1 must bound the final triple stream to one
	// triple, not pass one whole solution (and both its triples) through.
	g := ds.Default()
	_ = g.Insert(ctx, term.Triple{Subject: ex("bob"), Predicate: ex("knows"), Object: ex("alice")})

	vs, vo := term.Variable{Name: "s"}, term.Variable{Name: "o"}
	q := &algebra.Query{
		Type: algebra.Construct,
		Template: []term.Triple{
			{Subject: vs, Predicate: ex("p1"), Object: vo},
			{Subject: vs, Predicate: ex("p2"), Object: vo},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("knows"), Object: vo}}},
		},
		HasLimit: true,
		Limit:    1,
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	triples, err := pipeline.Collect(ctx, result.Triples)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(triples) != 1 {
		t.Fatalf("LIMIT 1 on a CONSTRUCT must bound the triple stream to 1 triple, got %d", len(triples))
	}
}

func TestOptionalLeavesUnboundWhenAbsent(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBuilder(t)
	vs, vname, vcity := term.Variable{Name: "s"}, term.Variable{Name: "name"}, term.Variable{Name: "city"}
	q := &algebra.Query{
		Type:      algebra.Select,
		Variables: []algebra.Expr{{Kind: algebra.ExprVariable, Variable: vname}, {Kind: algebra.ExprVariable, Variable: vcity}},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("name"), Object: vname}}},
			{Type: algebra.GroupOptional, Patterns: []algebra.Group{
				{Type: algebra.GroupBGP, Triples: []term.Triple{{Subject: vs, Predicate: ex("city"), Object: vcity}}},
			}},
		},
	}
	result, err := b.Build(ctx, q)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows, err := pipeline.Collect(ctx, result.Solutions)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 solutions (both people, neither has a city), got %d", len(rows))
	}
	for _, mu := range rows {
		if _, ok := mu.Get(vcity); ok {
			t.Error("expected vcity to be absent from solutions when OPTIONAL has no match")
		}
	}
}
