package update

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

func (e *Engine) create(ctx context.Context, u algebra.Update) error {
	_, err := e.dataset.Create(u.Graph)
	if err != nil && u.Silent {
		return nil
	}
	return err
}

func (e *Engine) drop(ctx context.Context, u algebra.Update) error {
	switch {
	case u.All:
		if err := e.clearOrSilent(ctx, e.dataset.Default(), u.Silent); err != nil {
			return err
		}
		for _, iri := range e.dataset.NamedIRIs() {
			if err := e.dataset.Drop(iri); err != nil && !u.Silent {
				return err
			}
		}
		return nil
	case u.Named:
		for _, iri := range e.dataset.NamedIRIs() {
			if err := e.dataset.Drop(iri); err != nil && !u.Silent {
				return err
			}
		}
		return nil
	case u.Default:
		// DROP DEFAULT clears the default graph; it is never a dataset
		// entry, so there is nothing to structurally remove.
		return e.clearOrSilent(ctx, e.dataset.Default(), u.Silent)
	default:
		err := e.dataset.Drop(u.Graph)
		if err != nil && u.Silent {
			return nil
		}
		return err
	}
}

func (e *Engine) clear(ctx context.Context, u algebra.Update) error {
	switch {
	case u.All:
		if err := e.clearOrSilent(ctx, e.dataset.Default(), u.Silent); err != nil {
			return err
		}
		for _, iri := range e.dataset.NamedIRIs() {
			g, _ := e.dataset.Get(iri)
			if err := e.clearOrSilent(ctx, g, u.Silent); err != nil {
				return err
			}
		}
		return nil
	case u.Named:
		for _, iri := range e.dataset.NamedIRIs() {
			g, _ := e.dataset.Get(iri)
			if err := e.clearOrSilent(ctx, g, u.Silent); err != nil {
				return err
			}
		}
		return nil
	case u.Default:
		return e.clearOrSilent(ctx, e.dataset.Default(), u.Silent)
	default:
		g, ok := e.dataset.Get(u.Graph)
		if !ok {
			if u.Silent {
				return nil
			}
			return sparqlerr.GraphBackend(nil, "unknown graph: %s", u.Graph.Value)
		}
		return e.clearOrSilent(ctx, g, u.Silent)
	}
}

func (e *Engine) clearOrSilent(ctx context.Context, g graph.Graph, silent bool) error {
	if g == nil {
		if silent {
			return nil
		}
		return sparqlerr.GraphBackend(nil, "no default graph configured")
	}
	if err := g.Clear(ctx); err != nil && !silent {
		return err
	}
	return nil
}

// resolveSide resolves one side of a COPY/MOVE/ADD operation. createIfMissing
// is true for a destination graph (COPY/MOVE/ADD always materialize their
// target) and false for a source graph (reading from an unknown graph is
// an error, not an implicit create).
func (e *Engine) resolveSide(iri term.IRI, isDefault, createIfMissing bool) (graph.Graph, error) {
	if isDefault {
		def := e.dataset.Default()
		if def == nil {
			return nil, sparqlerr.GraphBackend(nil, "no default graph configured")
		}
		return def, nil
	}
	if createIfMissing {
		return e.dataset.GetOrCreate(iri, true)
	}
	g, ok := e.dataset.Get(iri)
	if !ok {
		return nil, sparqlerr.GraphBackend(nil, "unknown graph: %s", iri.Value)
	}
	return g, nil
}

func copyTriples(ctx context.Context, src, dst graph.Graph) error {
	wildcard := term.Triple{
		Subject:   term.Variable{Name: "s"},
		Predicate: term.Variable{Name: "p"},
		Object:    term.Variable{Name: "o"},
	}
	return pipeline.ForEach(ctx, src.Find(ctx, wildcard), func(t term.Triple) (bool, error) {
		return true, dst.Insert(ctx, t)
	})
}

func (e *Engine) copyGraph(ctx context.Context, u algebra.Update) error {
	src, err := e.resolveSide(u.Source2, u.SourceDefault, false)
	if err != nil {
		if u.Silent {
			return nil
		}
		return err
	}
	dst, err := e.resolveSide(u.Destination, u.DestDefault, true)
	if err != nil {
		if u.Silent {
			return nil
		}
		return err
	}
	if err := dst.Clear(ctx); err != nil {
		return err
	}
	if src == dst {
		return nil
	}
	return copyTriples(ctx, src, dst)
}

func (e *Engine) moveGraph(ctx context.Context, u algebra.Update) error {
	if err := e.copyGraph(ctx, u); err != nil {
		return err
	}
	if u.SourceDefault {
		if def := e.dataset.Default(); def != nil {
			return def.Clear(ctx)
		}
		return nil
	}
	err := e.dataset.Drop(u.Source2)
	if err != nil && u.Silent {
		return nil
	}
	return err
}

func (e *Engine) addGraph(ctx context.Context, u algebra.Update) error {
	src, err := e.resolveSide(u.Source2, u.SourceDefault, false)
	if err != nil {
		if u.Silent {
			return nil
		}
		return err
	}
	dst, err := e.resolveSide(u.Destination, u.DestDefault, true)
	if err != nil {
		if u.Silent {
			return nil
		}
		return err
	}
	if src == dst {
		return nil
	}
	return copyTriples(ctx, src, dst)
}
