package update

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// applyQuads handles INSERT (DATA or ... WHERE) and DELETE the same way:
// resolve the quad templates against WHERE's bindings when present, then
// insert or delete each resulting ground quad.
func (e *Engine) applyQuads(ctx context.Context, u algebra.Update, insert bool) error {
	quads := u.Quads
	if len(u.Where) > 0 {
		solutions, err := e.builder.EvaluateWhere(ctx, u.Where)
		if err != nil {
			return err
		}
		quads, err = instantiateQuads(ctx, u.Quads, solutions)
		if err != nil {
			return err
		}
	}

	for _, q := range quads {
		g, present, err := e.resolveTargetGraph(q.G, insert)
		if err != nil {
			return err
		}
		if !present {
			continue
		}
		t := term.Triple{Subject: q.S, Predicate: q.P, Object: q.O}
		if insert {
			err = g.Insert(ctx, t)
		} else {
			err = g.Delete(ctx, t)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// instantiateQuads substitutes each WHERE solution into every quad
// template, the update-statement analogue of plan.instantiateTemplate. A
// quad whose subject, predicate, object, or graph variable comes out
// unbound is dropped; a template with no graph term targets the default
// graph.
func instantiateQuads(ctx context.Context, templates []term.Quad, solutions pipeline.Pipe[mapping.Solution]) ([]term.Quad, error) {
	var out []term.Quad
	err := pipeline.ForEach(ctx, solutions, func(mu mapping.Solution) (bool, error) {
		for _, q := range templates {
			s, ok := substituteBoundTerm(mu, q.S)
			if !ok {
				continue
			}
			p, ok := substituteBoundTerm(mu, q.P)
			if !ok {
				continue
			}
			o, ok := substituteBoundTerm(mu, q.O)
			if !ok {
				continue
			}
			g, ok := substituteGraphTerm(mu, q.G)
			if !ok {
				continue
			}
			out = append(out, term.Quad{S: s, P: p, O: o, G: g})
		}
		return true, nil
	})
	return out, err
}

func substituteBoundTerm(mu mapping.Solution, t term.Term) (term.Term, bool) {
	v, ok := t.(term.Variable)
	if !ok {
		return t, true
	}
	bound, has := mu.Get(v)
	if !has || term.IsUnbound(bound) {
		return nil, false
	}
	return bound, true
}

func substituteGraphTerm(mu mapping.Solution, t term.Term) (term.Term, bool) {
	if t == nil {
		return nil, true
	}
	return substituteBoundTerm(mu, t)
}
