package mapping

import (
	"testing"

	"github.com/minieraf/sparql-engine/term"
)

var (
	vs = term.Variable{Name: "s"}
	vo = term.Variable{Name: "o"}
	a  = term.IRI{Value: "http://example.org/a"}
	b  = term.IRI{Value: "http://example.org/b"}
)

func TestWithAndGet(t *testing.T) {
	mu := New().With(vs, a)
	got, ok := mu.Get(vs)
	if !ok || !got.Equal(a) {
		t.Fatalf("Get(vs) = %v, %v; want %v, true", got, ok, a)
	}
	if _, ok := mu.Get(vo); ok {
		t.Error("expected vo to be unbound")
	}
}

func TestCompatibleAndUnion(t *testing.T) {
	mu1 := New().With(vs, a)
	mu2 := New().With(vs, a).With(vo, b)
	if !mu1.Compatible(mu2) {
		t.Error("expected mu1 and mu2 to be compatible (agree on vs)")
	}
	merged := Union(mu1, mu2)
	if merged.Len() != 2 {
		t.Errorf("Union length = %d, want 2", merged.Len())
	}

	mu3 := New().With(vs, b)
	if mu1.Compatible(mu3) {
		t.Error("expected mu1 and mu3 to be incompatible (disagree on vs)")
	}
}

func TestUnionConflictPrefersRightOperand(t *testing.T) {
	mu1 := New().With(vs, a)
	mu2 := New().With(vs, b)
	merged := Union(mu1, mu2)
	got, _ := merged.Get(vs)
	if !got.Equal(b) {
		t.Errorf("Union should let the right operand win on conflict, got %v", got)
	}
}

func TestEqualsAndIsSubset(t *testing.T) {
	mu1 := New().With(vs, a)
	mu2 := New().With(vs, a)
	if !Equals(mu1, mu2) {
		t.Error("expected identical single-binding mappings to be Equals")
	}
	mu3 := New().With(vs, a).With(vo, b)
	if !IsSubset(mu1, mu3) {
		t.Error("expected mu1 to be a subset of mu3")
	}
	if IsSubset(mu3, mu1) {
		t.Error("expected mu3 not to be a subset of mu1")
	}
}

func TestIntersectionAndDifference(t *testing.T) {
	mu1 := New().With(vs, a).With(vo, b)
	mu2 := New().With(vs, a)
	inter := Intersection(mu1, mu2)
	if inter.Len() != 1 {
		t.Fatalf("Intersection length = %d, want 1", inter.Len())
	}
	diff := Difference(mu1, mu2)
	if diff.Len() != 1 {
		t.Fatalf("Difference length = %d, want 1", diff.Len())
	}
	if _, ok := diff.Get(vo); !ok {
		t.Error("expected vo to remain in the difference")
	}
}

func TestProjectAndWithout(t *testing.T) {
	mu := New().With(vs, a).With(vo, b)
	proj := mu.Project([]term.Variable{vs})
	if proj.Len() != 1 {
		t.Fatalf("Project length = %d, want 1", proj.Len())
	}
	without := mu.Without([]term.Variable{vs})
	if without.Len() != 1 {
		t.Fatalf("Without length = %d, want 1", without.Len())
	}
	if _, ok := without.Get(vs); ok {
		t.Error("expected vs to be removed by Without")
	}
}

func TestBoundSubstitutesVariables(t *testing.T) {
	mu := New().With(vs, a)
	tr := term.Triple{Subject: vs, Predicate: term.IRI{Value: "http://example.org/p"}, Object: vo}
	bound := Bound(mu, tr)
	if !bound.Subject.Equal(a) {
		t.Errorf("expected subject substituted to %v, got %v", a, bound.Subject)
	}
	if !bound.Object.Equal(vo) {
		t.Error("expected object to remain unbound since vo isn't in mu's domain")
	}
}

func TestBagRoundTrip(t *testing.T) {
	mu := New().WithBag(AggregateBagKey, []term.Term{a, b})
	v, ok := mu.Bag(AggregateBagKey)
	if !ok {
		t.Fatal("expected bag value present after WithBag")
	}
	terms, ok := v.([]term.Term)
	if !ok || len(terms) != 2 {
		t.Fatalf("unexpected bag contents: %#v", v)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	mu := New().With(vs, a)
	clone := mu.With(vo, b)
	if _, ok := clone.Get(vo); !ok {
		t.Error("expected the extended clone to hold the new binding")
	}
	if _, ok := mu.Get(vo); ok {
		t.Error("mutating a clone must not affect the original Solution")
	}
}
