// Package plan implements the Plan Builder (C9): it walks the external
// algebra tree (spec.md section 6) and compiles it into exec.Stage values
// wired together per spec.md section 4.7, binding to a concrete Dataset
// and expression registry at construction the way the teacher's
// planner.Planner binds to a Statistics handle and PlannerOptions.
package plan

import (
	"context"
	"time"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/cache"
	"github.com/minieraf/sparql-engine/exec"
	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/expr"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
	"github.com/minieraf/sparql-engine/trace"
)

// Options is a flat struct of planner knobs, constructed with defaults and
// overridden by the caller — the same shape as the teacher's
// planner.PlannerOptions, not a functional-options chain.
type Options struct {
	// AllowGraphAutoCreate permits a variable-valued FROM/GRAPH target to
	// materialize a missing named graph via the dataset's factory
	// (spec.md section 9; defaults false per the Open Question decision
	// recorded in SPEC_FULL.md).
	AllowGraphAutoCreate bool
	// ForceIndexJoin disables bound join for every BGP stage built by this
	// Builder, regardless of what the target graph advertises.
	ForceIndexJoin bool
	// DisableCache turns off the BGP semantic cache entirely.
	DisableCache bool
	// CacheMaxEntries / CacheMaxAge override the cache's eviction bounds;
	// zero values fall back to cache.DefaultMaxEntries / DefaultMaxAge.
	CacheMaxEntries int
	CacheMaxAge     time.Duration
	// TraceHandler, if set, receives every stage's timing events.
	TraceHandler trace.Handler
	// ServiceExecutor dispatches SERVICE clauses; nil means SERVICE always
	// fails (or is silently skipped under SILENT).
	ServiceExecutor exec.ServiceExecutor
}

// GroupStageBuilder compiles one WHERE-clause group into a Stage. explicitGraph
// carries the enclosing GRAPH clause's target, if any (nil for the default
// graph context).
type GroupStageBuilder func(b *Builder, g algebra.Group, explicitGraph term.Term) (exec.Stage, error)

// Builder is the long-lived plan compiler, bound to one Dataset. Build is
// safe to call repeatedly (and concurrently, once construction finishes)
// for different queries, deriving a fresh execctx.Context each time.
type Builder struct {
	dataset  *graph.Dataset
	registry *expr.Registry
	cache    *cache.Cache
	opts     Options
	stages   map[algebra.GroupType]GroupStageBuilder
}

// New builds a Builder bound to ds, using registry for FILTER/BIND/HAVING
// expression compilation. A nil registry gets expr.NewRegistry()'s builtins.
func New(ds *graph.Dataset, registry *expr.Registry, opts Options) *Builder {
	if registry == nil {
		registry = expr.NewRegistry()
	}
	b := &Builder{dataset: ds, registry: registry, opts: opts, stages: make(map[algebra.GroupType]GroupStageBuilder)}
	if !opts.DisableCache {
		b.cache = cache.New(opts.CacheMaxEntries, opts.CacheMaxAge)
	}
	return b
}

// RegisterStage overrides (or adds) the stage builder for one group kind,
// the extensibility hook of spec.md section 4.7.
func (b *Builder) RegisterStage(kind algebra.GroupType, fn GroupStageBuilder) {
	b.stages[kind] = fn
}

// UseCache installs a caller-supplied cache (e.g. with different eviction
// bounds), replacing whatever this Builder constructed or had before.
func (b *Builder) UseCache(c *cache.Cache) { b.cache = c }

// DisableCache turns off caching for every query this Builder compiles
// from now on.
func (b *Builder) DisableCache() { b.cache = nil }

// Registry exposes the expression registry so callers can register custom
// functions/aggregates before compiling queries.
func (b *Builder) Registry() *expr.Registry { return b.registry }

// Dataset returns the bound dataset.
func (b *Builder) Dataset() *graph.Dataset { return b.dataset }

// Result is the output of compiling one query: exactly one of Solutions,
// Triples, or Ask is meaningful, selected by Type.
type Result struct {
	Type      algebra.QueryType
	Variables []term.Variable
	Solutions pipeline.Pipe[mapping.Solution]
	Triples   pipeline.Pipe[term.Triple]
	Ask       bool
}

// Build compiles query against this Builder's dataset and runs it
// immediately, returning a Result whose pipes are ready to be drained by
// the caller. Each call derives a fresh execctx.Context (spec.md section
// 3's per-build(query) Execution Context lifecycle).
func (b *Builder) Build(ctx context.Context, query *algebra.Query) (*Result, error) {
	if query.Type == algebra.Describe {
		query = rewriteDescribe(query)
	}

	ec := execctx.New(b.dataset)
	ec.Trace = trace.NewCollector(b.opts.TraceHandler)
	ec.DefaultGraphs = query.From
	ec.NamedGraphs = query.FromNamed
	ec.HasLimitOffset = query.HasLimit || query.HasOffset
	ec.SetOption(execctx.OptForceIndexJoin, b.opts.ForceIndexJoin)
	ec.SetOption(execctx.OptAllowGraphAutoCreate, b.opts.AllowGraphAutoCreate)
	if !ec.HasLimitOffset {
		ec.Cache = b.cache
	}

	start := time.Now()
	ec.Trace.Add(trace.Event{Name: trace.QueryBegin, Start: start})

	stage, err := b.buildWhere(query.Where)
	if err != nil {
		return nil, err
	}
	solutions := stage(ctx, ec, exec.Root())
	ec.Trace.Timing(trace.QueryPlanned, start, nil)

	switch query.Type {
	case algebra.Ask:
		_, hasRow, err := solutions.Next(ctx)
		if err != nil {
			return nil, err
		}
		return &Result{Type: algebra.Ask, Ask: hasRow}, nil

	case algebra.Construct:
		// spec.md section 4.7 step 7 orders modifiers as ORDER BY, then the
		// query-type modifier (here, the CONSTRUCT template), then DISTINCT,
		// then OFFSET, then LIMIT — so DISTINCT/OFFSET/LIMIT run over the
		// instantiated triple stream, not over the solutions that produced
		// it.
		ordered, err := b.applyOrderBy(ctx, ec, query, solutions)
		if err != nil {
			return nil, err
		}
		triples := instantiateTemplate(query.Template, ordered)
		triples = applyTripleModifiers(query, triples)
		return &Result{Type: algebra.Construct, Triples: triples}, nil

	case algebra.Select:
		projected, vars, err := b.applyProjection(ctx, ec, query, solutions)
		if err != nil {
			return nil, err
		}
		return &Result{Type: algebra.Select, Variables: vars, Solutions: projected}, nil

	default:
		return nil, sparqlerr.UnsupportedQueryType("unrecognized query type: %s", query.Type)
	}
}

// applyOrderBy runs ORDER BY alone, the first of spec.md section 4.7 step
// 7's modifiers, ahead of the query-type modifier (CONSTRUCT's template
// instantiation, or SELECT's projection) that follows it.
func (b *Builder) applyOrderBy(ctx context.Context, ec *execctx.Context, query *algebra.Query, in pipeline.Pipe[mapping.Solution]) (pipeline.Pipe[mapping.Solution], error) {
	if len(query.OrderBy) == 0 {
		return in, nil
	}
	fns := make([]expr.Func, len(query.OrderBy))
	descs := make([]bool, len(query.OrderBy))
	for i, ot := range query.OrderBy {
		f, err := b.registry.Compile(ot.Expr)
		if err != nil {
			return nil, err
		}
		fns[i] = f
		descs[i] = ot.Descending
	}
	cmp := expr.OrderComparator(fns, descs)
	return exec.BuildOrderByStage(cmp)(ctx, ec, in), nil
}

// applyTripleModifiers runs DISTINCT then OFFSET then LIMIT over a
// CONSTRUCTed triple stream, the last three of spec.md section 4.7 step
// 7's modifiers, applied after the template has already turned solutions
// into triples.
func applyTripleModifiers(query *algebra.Query, in pipeline.Pipe[term.Triple]) pipeline.Pipe[term.Triple] {
	out := in
	if query.Distinct {
		out = distinctTriples(out)
	}
	if query.Offset > 0 {
		out = pipeline.Skip(out, query.Offset)
	}
	if query.HasLimit {
		out = pipeline.Limit(out, query.Limit)
	}
	return out
}

// distinctTriples deduplicates a CONSTRUCTed triple stream by canonical
// subject/predicate/object, keeping the first occurrence of each.
func distinctTriples(in pipeline.Pipe[term.Triple]) pipeline.Pipe[term.Triple] {
	return &distinctTriplePipe{src: in, seen: make(map[string]bool)}
}

type distinctTriplePipe struct {
	src  pipeline.Pipe[term.Triple]
	seen map[string]bool
}

func (p *distinctTriplePipe) Next(ctx context.Context) (term.Triple, bool, error) {
	for {
		t, ok, err := p.src.Next(ctx)
		if err != nil || !ok {
			return term.Triple{}, ok, err
		}
		key := term.Canonical(t.Subject) + " " + term.Canonical(t.Predicate) + " " + term.Canonical(t.Object)
		if !p.seen[key] {
			p.seen[key] = true
			return t, true, nil
		}
	}
}

func (p *distinctTriplePipe) Close() { p.src.Close() }

func rewriteDescribe(query *algebra.Query) *algebra.Query {
	if len(query.DescribeOf) == 0 {
		return query
	}
	s, p, o := term.Variable{Name: "_describe_s"}, term.Variable{Name: "_describe_p"}, term.Variable{Name: "_describe_o"}
	rewritten := *query
	rewritten.Type = algebra.Construct
	rewritten.Template = []term.Triple{{Subject: s, Predicate: p, Object: o}}

	var branches []algebra.Group
	for _, resource := range query.DescribeOf {
		branches = append(branches, algebra.Group{
			Type:    algebra.GroupBGP,
			Triples: []term.Triple{{Subject: resource, Predicate: p, Object: o}},
		})
	}
	if len(branches) == 1 {
		rewritten.Where = append(append([]algebra.Group{}, query.Where...), branches[0])
	} else {
		rewritten.Where = append(append([]algebra.Group{}, query.Where...), algebra.Group{Type: algebra.GroupUnion, Branches: branches})
	}
	return &rewritten
}

func instantiateTemplate(template []term.Triple, solutions pipeline.Pipe[mapping.Solution]) pipeline.Pipe[term.Triple] {
	return pipeline.FlatMap(solutions, func(mu mapping.Solution) pipeline.Pipe[term.Triple] {
		var out []term.Triple
		for _, t := range template {
			s := substituteTemplateTerm(mu, t.Subject)
			p := substituteTemplateTerm(mu, t.Predicate)
			o := substituteTemplateTerm(mu, t.Object)
			if s == nil || p == nil || o == nil {
				continue
			}
			out = append(out, term.Triple{Subject: s, Predicate: p, Object: o})
		}
		return pipeline.From(out)
	})
}

func substituteTemplateTerm(mu mapping.Solution, t term.Term) term.Term {
	v, ok := t.(term.Variable)
	if !ok {
		return t
	}
	bound, has := mu.Get(v)
	if !has || term.IsUnbound(bound) {
		return nil
	}
	return bound
}
