package exec

import (
	"context"
	"time"

	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
	"github.com/minieraf/sparql-engine/trace"
)

// BuildPathStage compiles a SPARQL 1.1 property-path triple (spec.md
// section 4.6) into a Stage. Evaluation alternates NFA-style state
// advancement (stepForward/stepBackwardThroughInner below, one call per path
// subexpression) with single-step Find lookups at the graph, the same
// computational shape as walking a Glushkov automaton one transition at a
// time; transitive operators carry a per-source visited set so cycles in
// the data terminate traversal instead of looping forever.
func BuildPathStage(subject term.Term, path term.PropertyPath, object term.Term, resolveGraphs GraphTargetFn, explicitGraph term.Term) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.FlatMap(input, func(mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
			graphs, err := resolveGraphs(ec, explicitGraph, mu)
			if err != nil {
				return errorPipe(err)
			}
			start := time.Now()
			var pipes []pipeline.Pipe[mapping.Solution]
			for _, g := range graphs {
				pipes = append(pipes, evalPath(ctx, g, subject, path, object, mu))
			}
			ec.Trace.Timing(trace.PropertyPathRun, start, map[string]interface{}{"graphs": len(graphs)})
			if len(pipes) == 0 {
				return pipeline.Empty[mapping.Solution]()
			}
			return pipeline.Merge(pipes...)
		})
	}
}

// evalPath evaluates one (subject, path, object) triple against g for a
// single input row, producing one output row per matched endpoint pair.
func evalPath(ctx context.Context, g graph.Graph, subject term.Term, path term.PropertyPath, object term.Term, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	boundSubject := resolveSide(mu, subject)
	boundObject := resolveSide(mu, object)

	var starts []term.Term
	if boundSubject != nil {
		starts = []term.Term{boundSubject}
	} else {
		starts = allNodes(ctx, g)
	}

	var out []mapping.Solution
	for _, s := range starts {
		ends := stepForward(ctx, g, path, s, make(map[string]bool))
		for _, e := range ends {
			if boundObject != nil && !boundObject.Equal(e) {
				continue
			}
			row := mu
			if sv, ok := subject.(term.Variable); ok && boundSubject == nil {
				row = row.With(sv, s)
			}
			if ov, ok := object.(term.Variable); ok && boundObject == nil {
				row = row.With(ov, e)
			}
			out = append(out, row)
		}
	}
	return pipeline.From(out)
}

func resolveSide(mu mapping.Solution, t term.Term) term.Term {
	if v, ok := t.(term.Variable); ok {
		if bound, has := mu.Get(v); has {
			return bound
		}
		return nil
	}
	return t
}

// allNodes enumerates distinct subjects appearing in g, used when a
// property path's subject is unbound and must be discovered rather than
// looked up directly. Expensive for large graphs; acceptable for the
// reference and demonstration backends this engine ships with.
func allNodes(ctx context.Context, g graph.Graph) []term.Term {
	wildcard := term.Triple{Subject: term.Variable{Name: "_s"}, Predicate: term.Variable{Name: "_p"}, Object: term.Variable{Name: "_o"}}
	seen := make(map[string]bool)
	var out []term.Term
	found := g.Find(ctx, wildcard)
	_ = pipeline.ForEach(ctx, found, func(t term.Triple) (bool, error) {
		k := term.Canonical(t.Subject)
		if !seen[k] {
			seen[k] = true
			out = append(out, t.Subject)
		}
		return true, nil
	})
	return out
}

// stepForward returns every node reachable from start along path, in the
// forward direction, deduplicated.
func stepForward(ctx context.Context, g graph.Graph, path term.PropertyPath, start term.Term, visited map[string]bool) []term.Term {
	switch p := path.(type) {
	case term.PathPredicate:
		return oneHop(ctx, g, start, p.Value, false)

	case term.PathInverse:
		return stepBackwardThroughInner(ctx, g, p.Path, start, visited)

	case term.PathSequence:
		mids := stepForward(ctx, g, p.Left, start, visited)
		var out []term.Term
		seen := make(map[string]bool)
		for _, mid := range mids {
			for _, end := range stepForward(ctx, g, p.Right, mid, visited) {
				k := term.Canonical(end)
				if !seen[k] {
					seen[k] = true
					out = append(out, end)
				}
			}
		}
		return out

	case term.PathAlternative:
		l := stepForward(ctx, g, p.Left, start, visited)
		r := stepForward(ctx, g, p.Right, start, visited)
		return dedupTermsExec(append(l, r...))

	case term.PathZeroOrOne:
		out := []term.Term{start}
		return dedupTermsExec(append(out, stepForward(ctx, g, p.Path, start, visited)...))

	case term.PathZeroOrMore:
		return closure(ctx, g, p.Path, start, true)

	case term.PathOneOrMore:
		return closure(ctx, g, p.Path, start, false)

	case term.PathNegatedPropertySet:
		return negatedHop(ctx, g, start, p.Members, false)

	default:
		return nil
	}
}

// stepBackwardThroughInner handles ^path: walk path backwards, i.e. treat
// start as the object side of an ordinary forward step.
func stepBackwardThroughInner(ctx context.Context, g graph.Graph, path term.PropertyPath, start term.Term, visited map[string]bool) []term.Term {
	switch p := path.(type) {
	case term.PathPredicate:
		return oneHop(ctx, g, start, p.Value, true)
	case term.PathInverse:
		return stepForward(ctx, g, p.Path, start, visited)
	case term.PathSequence:
		// ^(A/B) = ^B/^A
		mids := stepBackwardThroughInner(ctx, g, p.Right, start, visited)
		var out []term.Term
		seen := make(map[string]bool)
		for _, mid := range mids {
			for _, end := range stepBackwardThroughInner(ctx, g, p.Left, mid, visited) {
				k := term.Canonical(end)
				if !seen[k] {
					seen[k] = true
					out = append(out, end)
				}
			}
		}
		return out
	case term.PathAlternative:
		l := stepBackwardThroughInner(ctx, g, p.Left, start, visited)
		r := stepBackwardThroughInner(ctx, g, p.Right, start, visited)
		return dedupTermsExec(append(l, r...))
	case term.PathZeroOrOne:
		out := []term.Term{start}
		return dedupTermsExec(append(out, stepBackwardThroughInner(ctx, g, p.Path, start, visited)...))
	case term.PathZeroOrMore:
		return closureInverse(ctx, g, p.Path, start, true)
	case term.PathOneOrMore:
		return closureInverse(ctx, g, p.Path, start, false)
	case term.PathNegatedPropertySet:
		return negatedHop(ctx, g, start, p.Members, true)
	default:
		return nil
	}
}

func oneHop(ctx context.Context, g graph.Graph, start term.Term, predicate term.Term, inverse bool) []term.Term {
	iri, ok := predicate.(term.IRI)
	if !ok {
		if v, isVar := predicate.(term.Variable); isVar {
			// A variable predicate yields no hops (SPARQL doesn't allow
			// predicate variables inside path expressions, so the step
			// matches nothing instead of panicking).
			_ = v
		}
		return nil
	}
	var pattern term.Triple
	if inverse {
		pattern = term.Triple{Subject: term.Variable{Name: "_s"}, Predicate: iri, Object: start}
	} else {
		pattern = term.Triple{Subject: start, Predicate: iri, Object: term.Variable{Name: "_o"}}
	}
	var out []term.Term
	seen := make(map[string]bool)
	found := g.Find(ctx, pattern)
	_ = pipeline.ForEach(ctx, found, func(t term.Triple) (bool, error) {
		var end term.Term
		if inverse {
			end = t.Subject
		} else {
			end = t.Object
		}
		k := term.Canonical(end)
		if !seen[k] {
			seen[k] = true
			out = append(out, end)
		}
		return true, nil
	})
	return out
}

func negatedHop(ctx context.Context, g graph.Graph, start term.Term, members []term.PropertyPath, inverse bool) []term.Term {
	excluded := make(map[string]bool)
	for _, m := range members {
		if pp, ok := m.(term.PathPredicate); ok {
			if iri, ok := pp.Value.(term.IRI); ok {
				excluded[iri.Value] = true
			}
		}
	}
	var pattern term.Triple
	if inverse {
		pattern = term.Triple{Subject: term.Variable{Name: "_s"}, Predicate: term.Variable{Name: "_p"}, Object: start}
	} else {
		pattern = term.Triple{Subject: start, Predicate: term.Variable{Name: "_p"}, Object: term.Variable{Name: "_o"}}
	}
	var out []term.Term
	seen := make(map[string]bool)
	found := g.Find(ctx, pattern)
	_ = pipeline.ForEach(ctx, found, func(t term.Triple) (bool, error) {
		pi, ok := t.Predicate.(term.IRI)
		if !ok || excluded[pi.Value] {
			return true, nil
		}
		var end term.Term
		if inverse {
			end = t.Subject
		} else {
			end = t.Object
		}
		k := term.Canonical(end)
		if !seen[k] {
			seen[k] = true
			out = append(out, end)
		}
		return true, nil
	})
	return out
}

// closure computes path* (includeStart=true) or path+ (includeStart=
// false) forward from start via BFS with cycle detection (a visited set;
// the search depth is not bounded).
func closure(ctx context.Context, g graph.Graph, path term.PropertyPath, start term.Term, includeStart bool) []term.Term {
	visited := make(map[string]bool)
	startKey := term.Canonical(start)
	visited[startKey] = true
	frontier := []term.Term{start}
	var out []term.Term
	if includeStart {
		out = append(out, start)
	}
	for len(frontier) > 0 {
		var next []term.Term
		for _, node := range frontier {
			for _, end := range stepForward(ctx, g, path, node, visited) {
				k := term.Canonical(end)
				if visited[k] {
					continue
				}
				visited[k] = true
				out = append(out, end)
				next = append(next, end)
			}
		}
		frontier = next
	}
	return out
}

func closureInverse(ctx context.Context, g graph.Graph, path term.PropertyPath, start term.Term, includeStart bool) []term.Term {
	visited := make(map[string]bool)
	startKey := term.Canonical(start)
	visited[startKey] = true
	frontier := []term.Term{start}
	var out []term.Term
	if includeStart {
		out = append(out, start)
	}
	for len(frontier) > 0 {
		var next []term.Term
		for _, node := range frontier {
			for _, end := range stepBackwardThroughInner(ctx, g, path, node, visited) {
				k := term.Canonical(end)
				if visited[k] {
					continue
				}
				visited[k] = true
				out = append(out, end)
				next = append(next, end)
			}
		}
		frontier = next
	}
	return out
}

func dedupTermsExec(terms []term.Term) []term.Term {
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
