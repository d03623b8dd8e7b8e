package update

import (
	"context"
	"testing"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/graph/memory"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/plan"
	"github.com/minieraf/sparql-engine/term"
)

func ex(local string) term.IRI { return term.IRI{Value: "http://example.org/" + local} }

func newTestEngine() (*Engine, *graph.Dataset) {
	factory := func(iri term.IRI) graph.Graph { return memory.New(iri) }
	ds := graph.NewDataset(memory.New(ex("default")), factory, true)
	builder := plan.New(ds, nil, plan.Options{})
	return New(ds, builder, nil), ds
}

func countTriples(t *testing.T, ctx context.Context, g graph.Graph) int {
	t.Helper()
	wildcard := term.Triple{Subject: term.Variable{Name: "s"}, Predicate: term.Variable{Name: "p"}, Object: term.Variable{Name: "o"}}
	rows, err := pipeline.Collect(ctx, g.Find(ctx, wildcard))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	return len(rows)
}

func TestInsertData(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpInsert, Quads: []term.Quad{
			{S: ex("alice"), P: ex("knows"), O: ex("bob")},
		}},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n := countTriples(t, ctx, ds.Default()); n != 1 {
		t.Fatalf("expected 1 triple in default graph, got %d", n)
	}
}

func TestDeleteData(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	_ = ds.Default().Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")})

	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpDelete, Quads: []term.Quad{
			{S: ex("alice"), P: ex("knows"), O: ex("bob")},
		}},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n := countTriples(t, ctx, ds.Default()); n != 0 {
		t.Fatalf("expected 0 triples after delete, got %d", n)
	}
}

func TestInsertWhere(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	_ = ds.Default().Insert(ctx, term.Triple{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")})

	vs, vo := term.Variable{Name: "s"}, term.Variable{Name: "o"}
	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{
			Op:    algebra.OpInsert,
			Quads: []term.Quad{{S: vs, P: ex("friendOf"), O: vo}},
			Where: []algebra.Group{
				{Type: algebra.GroupBGP, Triples: []term.Triple{
					{Subject: vs, Predicate: ex("knows"), Object: vo},
				}},
			},
		},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n := countTriples(t, ctx, ds.Default()); n != 2 {
		t.Fatalf("expected original triple plus the derived friendOf triple, got %d", n)
	}
}

func TestCreateAndDropGraph(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()

	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpCreate, Graph: ex("g1")},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("CREATE: %v", err)
	}
	if !ds.Has(ex("g1")) {
		t.Fatal("expected graph g1 to exist after CREATE")
	}

	req = &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpDrop, Graph: ex("g1")},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("DROP: %v", err)
	}
	if ds.Has(ex("g1")) {
		t.Fatal("expected graph g1 to be gone after DROP")
	}
}

func TestClearDefaultDoesNotRemoveIt(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	_ = ds.Default().Insert(ctx, term.Triple{Subject: ex("a"), Predicate: ex("p"), Object: ex("b")})

	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpClear, Default: true},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("CLEAR DEFAULT: %v", err)
	}
	if ds.Default() == nil {
		t.Fatal("expected the default graph to still exist after CLEAR DEFAULT")
	}
	if n := countTriples(t, ctx, ds.Default()); n != 0 {
		t.Fatalf("expected default graph emptied, got %d triples", n)
	}
}

func TestCopyGraph(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	_, err := ds.Create(ex("src"))
	if err != nil {
		t.Fatalf("Create src: %v", err)
	}
	g, _ := ds.Get(ex("src"))
	_ = g.Insert(ctx, term.Triple{Subject: ex("a"), Predicate: ex("p"), Object: ex("b")})

	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpCopy, Source2: ex("src"), Destination: ex("dst")},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("COPY: %v", err)
	}
	dst, ok := ds.Get(ex("dst"))
	if !ok {
		t.Fatal("expected destination graph to be created by COPY")
	}
	if n := countTriples(t, ctx, dst); n != 1 {
		t.Fatalf("expected destination to hold the copied triple, got %d", n)
	}
	if n := countTriples(t, ctx, g); n != 1 {
		t.Fatalf("expected source graph to still hold its triple after COPY, got %d", n)
	}
}

func TestMoveGraphDropsSource(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	_, _ = ds.Create(ex("src"))
	g, _ := ds.Get(ex("src"))
	_ = g.Insert(ctx, term.Triple{Subject: ex("a"), Predicate: ex("p"), Object: ex("b")})

	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpMove, Source2: ex("src"), Destination: ex("dst")},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("MOVE: %v", err)
	}
	if ds.Has(ex("src")) {
		t.Fatal("expected source graph to be dropped after MOVE")
	}
	dst, ok := ds.Get(ex("dst"))
	if !ok || countTriples(t, ctx, dst) != 1 {
		t.Fatal("expected destination graph to hold the moved triple")
	}
}

func TestLoadWithoutConfiguredLoaderFails(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()
	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpLoad, Source: ex("remote.ttl")},
	}}
	if err := e.Execute(ctx, req); err == nil {
		t.Fatal("expected LOAD with no configured loader to fail")
	}
}

func TestLoadSilentSwallowsMissingLoader(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine()
	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpLoad, Source: ex("remote.ttl"), Silent: true},
	}}
	if err := e.Execute(ctx, req); err != nil {
		t.Fatalf("expected SILENT LOAD with no loader to succeed as a no-op, got %v", err)
	}
}

func TestExecuteAbortsOnFirstFailure(t *testing.T) {
	ctx := context.Background()
	e, ds := newTestEngine()
	req := &algebra.UpdateRequest{Updates: []algebra.Update{
		{Op: algebra.OpDrop, Graph: ex("nonexistent")},
		{Op: algebra.OpCreate, Graph: ex("g1")},
	}}
	if err := e.Execute(ctx, req); err == nil {
		t.Fatal("expected the request to fail on the first DROP of a nonexistent graph")
	}
	if ds.Has(ex("g1")) {
		t.Fatal("expected the second update never to run after the first failed")
	}
}
