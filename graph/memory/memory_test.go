package memory

import (
	"context"
	"testing"

	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

func ex(local string) term.IRI { return term.IRI{Value: "http://example.org/" + local} }

func TestInsertFindDelete(t *testing.T) {
	ctx := context.Background()
	g := New(ex("g"))

	tr := term.Triple{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")}
	if err := g.Insert(ctx, tr); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// inserting the same triple twice must not duplicate it.
	if err := g.Insert(ctx, tr); err != nil {
		t.Fatalf("Insert (dup): %v", err)
	}

	wildcard := term.Triple{Subject: term.Variable{Name: "s"}, Predicate: term.Variable{Name: "p"}, Object: term.Variable{Name: "o"}}
	rows, err := pipeline.Collect(ctx, g.Find(ctx, wildcard))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one triple after a duplicate insert, got %d", len(rows))
	}

	if err := g.Delete(ctx, tr); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	rows, err = pipeline.Collect(ctx, g.Find(ctx, wildcard))
	if err != nil {
		t.Fatalf("Find after delete: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no triples after delete, got %d", len(rows))
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	g := New(ex("g"))
	_ = g.Insert(ctx, term.Triple{Subject: ex("a"), Predicate: ex("p"), Object: ex("b")})
	if err := g.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := g.EstimateCardinality(ctx, term.Triple{
		Subject: term.Variable{Name: "s"}, Predicate: term.Variable{Name: "p"}, Object: term.Variable{Name: "o"},
	})
	if err != nil {
		t.Fatalf("EstimateCardinality: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 triples after Clear, got %d", n)
	}
}

func TestEvalBGPJoinsAcrossPatterns(t *testing.T) {
	ctx := context.Background()
	g := New(ex("g"))
	_ = g.Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("name"), Object: term.NewPlainLiteral("Alice")})
	_ = g.Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("age"), Object: term.NewTypedLiteral("30", term.XSDInteger)})
	_ = g.Insert(ctx, term.Triple{Subject: ex("bob"), Predicate: ex("name"), Object: term.NewPlainLiteral("Bob")})

	vs, vname, vage := term.Variable{Name: "s"}, term.Variable{Name: "name"}, term.Variable{Name: "age"}
	bgp := pattern.BGP{Patterns: []term.Triple{
		{Subject: vs, Predicate: ex("name"), Object: vname},
		{Subject: vs, Predicate: ex("age"), Object: vage},
	}}

	rows, err := pipeline.Collect(ctx, g.EvalBGP(ctx, bgp, mapping.New()))
	if err != nil {
		t.Fatalf("EvalBGP: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one joined solution (only alice has both name and age), got %d", len(rows))
	}
	name, _ := rows[0].Get(vname)
	if !name.Equal(term.NewPlainLiteral("Alice")) {
		t.Errorf("expected joined name Alice, got %v", name)
	}
}

func TestCapabilities(t *testing.T) {
	g := New(ex("g"))
	caps := g.Capabilities()
	if !caps.Has(graph.CapUnion) {
		t.Error("expected memory.Graph to advertise CapUnion")
	}
	if !caps.Has(graph.CapFullTextSearch) {
		t.Error("expected memory.Graph to advertise CapFullTextSearch")
	}
}

func TestFullTextSearch(t *testing.T) {
	ctx := context.Background()
	g := New(ex("g"))
	_ = g.Insert(ctx, term.Triple{Subject: ex("doc1"), Predicate: ex("body"), Object: term.NewPlainLiteral("the quick brown fox")})
	_ = g.Insert(ctx, term.Triple{Subject: ex("doc2"), Predicate: ex("body"), Object: term.NewPlainLiteral("lazy dog")})

	vs, vo := term.Variable{Name: "s"}, term.Variable{Name: "o"}
	q := graph.FTSQuery{
		Pattern:  term.Triple{Subject: vs, Predicate: ex("body"), Object: vo},
		Keywords: []string{"fox"},
	}
	pipe, ok := g.FullTextSearch(ctx, q, mapping.New())
	if !ok {
		t.Fatal("expected FullTextSearch to report support")
	}
	rows, err := pipeline.Collect(ctx, pipe)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one matching document, got %d", len(rows))
	}
}
