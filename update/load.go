package update

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

// load fetches u.Source via the configured Loader and inserts every quad
// into u.Into if given, otherwise into each quad's own graph (or the
// default graph for quads with no graph component).
func (e *Engine) load(ctx context.Context, u algebra.Update) error {
	if e.loader == nil {
		if u.Silent {
			return nil
		}
		return sparqlerr.GraphBackend(nil, "no loader configured for LOAD <%s>", u.Source.Value)
	}

	quads, err := e.loader(ctx, u.Source)
	if err != nil {
		if u.Silent {
			return nil
		}
		return sparqlerr.GraphBackend(err, "loading %s", u.Source.Value)
	}

	var into term.Term
	if u.HasInto {
		into = u.Into
	}

	for _, q := range quads {
		target := q.G
		if into != nil {
			target = into
		}
		g, present, err := e.resolveTargetGraph(target, true)
		if err != nil {
			if u.Silent {
				continue
			}
			return err
		}
		if !present {
			continue
		}
		if err := g.Insert(ctx, term.Triple{Subject: q.S, Predicate: q.P, Object: q.O}); err != nil {
			if u.Silent {
				continue
			}
			return err
		}
	}
	return nil
}
