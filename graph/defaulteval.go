package graph

import (
	"context"

	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// DefaultEvalBGP implements the fallback evalBGP strategy of spec.md
// section 4.2 purely in terms of a backend's Find method: iterate the
// leftmost pattern, for each match extend the input mapping, recurse on
// the rest. Any backend can call this from its own EvalBGP instead of
// re-implementing the join.
func DefaultEvalBGP(ctx context.Context, g Graph, patterns []term.Triple, input mapping.Solution) MappingPipe {
	if len(patterns) == 0 {
		return pipeline.Of(input)
	}
	head, rest := patterns[0], patterns[1:]
	bound := mapping.Bound(input, head)
	found := g.Find(ctx, bound)
	return pipeline.FlatMap(found, func(t term.Triple) MappingPipe {
		extended, ok := ExtendSolution(input, head, t)
		if !ok {
			return pipeline.Empty[mapping.Solution]()
		}
		return DefaultEvalBGP(ctx, g, rest, extended)
	})
}

// ExtendSolution unifies pattern p against a matched triple t, extending
// mu with any new variable bindings; ok is false on a binding conflict
// (the same variable already bound to a different term).
func ExtendSolution(mu mapping.Solution, p term.Triple, t term.Triple) (mapping.Solution, bool) {
	out := mu
	unify := func(side term.Term, val term.Term) bool {
		v, ok := side.(term.Variable)
		if !ok {
			return true
		}
		if existing, has := out.Get(v); has {
			return existing.Equal(val)
		}
		out = out.With(v, val)
		return true
	}
	if !unify(p.Subject, t.Subject) {
		return mu, false
	}
	if !unify(p.Object, t.Object) {
		return mu, false
	}
	return out, true
}
