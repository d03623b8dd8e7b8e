package exec

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
	"github.com/minieraf/sparql-engine/trace"
)

// BoundJoinBatchSize is the design default from spec.md section 4.3.
const BoundJoinBatchSize = 15

var blankCounter uint64

func freshBlankVar() term.Variable {
	n := atomic.AddUint64(&blankCounter, 1)
	return term.Variable{Name: fmt.Sprintf("_bnode%d", n)}
}

// GraphTargetFn resolves which graph(s) a BGP runs against for a given
// input mapping: returns the concrete graphs to union over (len==1 in the
// common case), based on the FROM/FROM NAMED IRIs active in ec and the
// explicit graph (possibly a Variable) named in the BGP's GRAPH clause.
type GraphTargetFn func(ec *execctx.Context, explicit term.Term, input mapping.Solution) ([]graph.Graph, error)

// BuildBGPStage compiles a BGP (already parsed into patterns + an
// explicit graph term, or nil for "apply FROM resolution") into a Stage
// implementing spec.md section 4.3 end to end: hint/FTS extraction,
// blank-node rewriting, graph resolution, bound join vs index join, FTS
// joins, synthetic-variable projection, and the BGP semantic cache.
func BuildBGPStage(rawPatterns []term.Triple, explicitGraph term.Term, resolveGraphs GraphTargetFn) (Stage, error) {
	withoutHints, hints := extractHints(rawPatterns)
	classic, ftsQueries, err := extractSearch(withoutHints)
	if err != nil {
		return nil, err
	}
	rewritten, synthetic := rewriteBlankNodes(classic, freshBlankVar)

	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		for name, val := range hints {
			ec.Hints[name] = val
		}
		batches := pipeline.Batch(input, BoundJoinBatchSize)
		out := pipeline.FlatMap(batches, func(batch []mapping.Solution) pipeline.Pipe[mapping.Solution] {
			return evalBatch(ctx, ec, rewritten, explicitGraph, resolveGraphs, batch)
		})
		for _, q := range ftsQueries {
			q := q
			out = pipeline.FlatMap(out, func(mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
				return joinFTS(ctx, ec, explicitGraph, resolveGraphs, q, mu)
			})
		}
		if len(synthetic) > 0 {
			out = pipeline.Map(out, func(mu mapping.Solution) (mapping.Solution, error) {
				return mu.Without(synthetic), nil
			})
		}
		return out
	}, nil
}

func evalOneRow(ctx context.Context, ec *execctx.Context, patterns []term.Triple, explicitGraph term.Term, resolveGraphs GraphTargetFn, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	graphs, err := resolveGraphs(ec, explicitGraph, mu)
	if err != nil {
		return errorPipe(err)
	}
	if len(graphs) == 0 {
		return pipeline.Empty[mapping.Solution]()
	}
	if len(graphs) == 1 {
		return evalAgainstGraph(ctx, ec, graphs[0], patterns, mu)
	}
	pipes := make([]pipeline.Pipe[mapping.Solution], len(graphs))
	for i, g := range graphs {
		pipes[i] = evalAgainstGraph(ctx, ec, g, patterns, mu)
	}
	return pipeline.Merge(pipes...)
}

// evalBatch is the bound-join entry point of spec.md section 4.3: when
// every row of the batch resolves to the same single graph, that graph
// advertises CapUnion, index-join isn't forced, and the cache is not in
// play (the cache's subset/commit protocol is row-at-a-time and doesn't
// compose with a bulk dispatch), issue one EvalBGPBatch call for the
// whole batch and let the backend demultiplex. Any row that doesn't fit
// that shape falls back to per-row evaluation (index-nested-loop, or the
// cached path).
func evalBatch(ctx context.Context, ec *execctx.Context, patterns []term.Triple, explicitGraph term.Term, resolveGraphs GraphTargetFn, batch []mapping.Solution) pipeline.Pipe[mapping.Solution] {
	start := time.Now()
	g, rows, fallback, err := partitionForBoundJoin(ec, explicitGraph, resolveGraphs, batch)
	if err != nil {
		return errorPipe(err)
	}

	var pipes []pipeline.Pipe[mapping.Solution]
	if g != nil && len(rows) > 0 {
		ec.Trace.Timing(trace.BoundJoinBatch, start, map[string]interface{}{"rows": len(rows), "graph": g.IRI().Value})
		if res, ok := g.EvalBGPBatch(ctx, pattern.BGP{Patterns: patterns, Graph: g.IRI()}, rows); ok {
			pipes = append(pipes, res)
		} else {
			fallback = append(fallback, rows...)
		}
	}
	for _, mu := range fallback {
		pipes = append(pipes, evalOneRow(ctx, ec, patterns, explicitGraph, resolveGraphs, mu))
	}
	if len(pipes) == 0 {
		return pipeline.Empty[mapping.Solution]()
	}
	return pipeline.Merge(pipes...)
}

// partitionForBoundJoin splits batch into the rows eligible for a single
// bulk EvalBGPBatch call (single resolved graph, CapUnion, no forced
// index join, caching disabled for this query) and the rows that must
// fall back to per-row evaluation.
func partitionForBoundJoin(ec *execctx.Context, explicitGraph term.Term, resolveGraphs GraphTargetFn, batch []mapping.Solution) (g graph.Graph, boundJoinRows []mapping.Solution, fallbackRows []mapping.Solution, err error) {
	if ec.CachingEnabled() || ec.HasOption(execctx.OptForceIndexJoin) {
		return nil, nil, batch, nil
	}
	for _, mu := range batch {
		graphs, rerr := resolveGraphs(ec, explicitGraph, mu)
		if rerr != nil {
			return nil, nil, nil, rerr
		}
		if len(graphs) != 1 || !graphs[0].Capabilities().Has(graph.CapUnion) {
			fallbackRows = append(fallbackRows, mu)
			continue
		}
		if g == nil {
			g = graphs[0]
		}
		if g.IRI().Equal(graphs[0].IRI()) {
			boundJoinRows = append(boundJoinRows, mu)
		} else {
			fallbackRows = append(fallbackRows, mu)
		}
	}
	return g, boundJoinRows, fallbackRows, nil
}

func evalAgainstGraph(ctx context.Context, ec *execctx.Context, g graph.Graph, patterns []term.Triple, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	bgp := pattern.BGP{Patterns: substitutePatterns(mu, patterns), Graph: g.IRI()}

	if ec.CachingEnabled() {
		return evalWithCache(ctx, ec, g, bgp, mu)
	}
	return evalDirect(ctx, g, bgp, mu)
}

func substitutePatterns(mu mapping.Solution, patterns []term.Triple) []term.Triple {
	out := make([]term.Triple, len(patterns))
	for i, p := range patterns {
		out[i] = mapping.Bound(mu, p)
	}
	return out
}

// evalDirect is the per-row fallback path; the bound-join decision is made
// one level up, in partitionForBoundJoin/evalBatch, since it requires
// seeing the whole batch at once.
func evalDirect(ctx context.Context, g graph.Graph, bgp pattern.BGP, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	return g.EvalBGP(ctx, bgp, mu)
}

// evalWithCache implements spec.md section 4.5's usage contract: find the
// largest committed subset, join it with evaluation of the missing
// patterns; on a full cache miss, stream every produced mapping into
// Update, then Commit.
func evalWithCache(ctx context.Context, ec *execctx.Context, g graph.Graph, bgp pattern.BGP, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	c := ec.Cache
	subset, missing := c.FindSubset(bgp)
	if subset.Patterns != nil {
		ec.Trace.Add(trace.Event{Name: trace.CacheHit, Start: time.Now(), Data: map[string]interface{}{"missing": len(missing)}})
		cached := c.Mappings(subset)
		return pipeline.FlatMap(pipeline.From(cached), func(row mapping.Solution) pipeline.Pipe[mapping.Solution] {
			if len(missing) == 0 {
				return pipeline.Of(row)
			}
			remainder := pattern.BGP{Patterns: missing, Graph: bgp.Graph}
			return g.EvalBGP(ctx, remainder, row)
		})
	}

	ec.Trace.Add(trace.Event{Name: trace.CacheMiss, Start: time.Now()})
	writerID := fmt.Sprintf("w%p", &bgp)
	full := g.EvalBGP(ctx, bgp, mu)
	return pipeline.FromAsync(func(ctx context.Context) (mapping.Solution, bool, error) {
		row, ok, err := full.Next(ctx)
		if err != nil {
			c.DiscardWriter(bgp, writerID)
			return mapping.Solution{}, false, err
		}
		if !ok {
			c.Commit(bgp, writerID)
			return mapping.Solution{}, false, nil
		}
		c.Update(bgp, row, writerID)
		return row, true, nil
	})
}

func joinFTS(ctx context.Context, ec *execctx.Context, explicitGraph term.Term, resolveGraphs GraphTargetFn, q graph.FTSQuery, mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
	graphs, err := resolveGraphs(ec, explicitGraph, mu)
	if err != nil {
		return errorPipe(err)
	}
	var pipes []pipeline.Pipe[mapping.Solution]
	for _, g := range graphs {
		if res, ok := g.FullTextSearch(ctx, q, mu); ok {
			pipes = append(pipes, res)
		}
	}
	if len(pipes) == 0 {
		return pipeline.Empty[mapping.Solution]()
	}
	return pipeline.Merge(pipes...)
}

func errorPipe(err error) pipeline.Pipe[mapping.Solution] {
	done := false
	return pipeline.FromAsync(func(ctx context.Context) (mapping.Solution, bool, error) {
		if done {
			return mapping.Solution{}, false, nil
		}
		done = true
		return mapping.Solution{}, false, err
	})
}

// DefaultGraphTarget resolves the BGP's target graph per spec.md section
// 4.3: the explicit GRAPH term if given (resolving a variable per input
// mapping, auto-creating only when ec allows it); otherwise FROM's single
// graph, the dataset default, or a synthetic union over all FROM graphs.
func DefaultGraphTarget(ec *execctx.Context, explicit term.Term, input mapping.Solution) ([]graph.Graph, error) {
	if explicit != nil {
		return resolveExplicitGraph(ec, explicit, input)
	}
	switch len(ec.DefaultGraphs) {
	case 0:
		return []graph.Graph{ec.Dataset.Default()}, nil
	case 1:
		g, ok := ec.Dataset.Get(ec.DefaultGraphs[0])
		if !ok {
			return nil, sparqlerr.GraphBackend(nil, "unknown FROM graph: %s", ec.DefaultGraphs[0].Value)
		}
		return []graph.Graph{g}, nil
	default:
		graphs := make([]graph.Graph, 0, len(ec.DefaultGraphs))
		for _, iri := range ec.DefaultGraphs {
			g, ok := ec.Dataset.Get(iri)
			if !ok {
				return nil, sparqlerr.GraphBackend(nil, "unknown FROM graph: %s", iri.Value)
			}
			graphs = append(graphs, g)
		}
		return graphs, nil
	}
}

func resolveExplicitGraph(ec *execctx.Context, explicit term.Term, input mapping.Solution) ([]graph.Graph, error) {
	bound := explicit
	if v, ok := explicit.(term.Variable); ok {
		if t, has := input.Get(v); has {
			bound = t
		} else {
			// Unbound graph variable: iterate the FROM NAMED graphs, or
			// every named graph when the query has no FROM NAMED.
			iris := ec.NamedGraphs
			if len(iris) == 0 {
				iris = ec.Dataset.NamedIRIs()
			}
			graphs := make([]graph.Graph, 0, len(iris))
			for _, iri := range iris {
				if g, ok := ec.Dataset.Get(iri); ok {
					graphs = append(graphs, g)
				}
			}
			return graphs, nil
		}
	}
	iri, ok := bound.(term.IRI)
	if !ok {
		return nil, sparqlerr.UnsupportedPattern("GRAPH target must resolve to an IRI")
	}
	allow := ec.HasOption(execctx.OptAllowGraphAutoCreate) && ec.Dataset.AllowAutoCreate()
	g, err := ec.Dataset.GetOrCreate(iri, allow)
	if err != nil {
		return nil, sparqlerr.GraphBackend(err, "missing required graph: %s", iri.Value)
	}
	return []graph.Graph{g}, nil
}
