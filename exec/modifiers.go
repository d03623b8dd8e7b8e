package exec

import (
	"context"
	"sort"

	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/expr"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// BuildFilterStage compiles a FILTER expression into a Stage that drops
// any solution the expression doesn't evaluate true for (spec.md section
// 4.4's error-to-false rule, applied by expr.EvalFilter).
func BuildFilterStage(f expr.Func) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return filterPipe{src: input, f: f}
	}
}

type filterPipe struct {
	src pipeline.Pipe[mapping.Solution]
	f   expr.Func
}

func (p filterPipe) Next(ctx context.Context) (mapping.Solution, bool, error) {
	for {
		mu, ok, err := p.src.Next(ctx)
		if err != nil || !ok {
			return mapping.Solution{}, ok, err
		}
		if expr.EvalFilter(ctx, p.f, mu) {
			return mu, true, nil
		}
	}
}

func (p filterPipe) Close() { p.src.Close() }

// BuildBindStage compiles BIND(expr AS ?v) into a Stage: every input
// solution is extended with v, bound to Unbound on evaluation failure
// (expr.EvalBind never drops a row).
func BuildBindStage(f expr.Func, v term.Variable) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.Map(input, func(mu mapping.Solution) (mapping.Solution, error) {
			return expr.EvalBind(ctx, f, v, mu), nil
		})
	}
}

// BuildDistinctStage deduplicates solutions by their canonical string form,
// keeping the first occurrence of each distinct binding set.
func BuildDistinctStage() Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return &distinctPipe{src: input, seen: make(map[string]bool)}
	}
}

type distinctPipe struct {
	src  pipeline.Pipe[mapping.Solution]
	seen map[string]bool
}

func (p *distinctPipe) Next(ctx context.Context) (mapping.Solution, bool, error) {
	for {
		mu, ok, err := p.src.Next(ctx)
		if err != nil || !ok {
			return mapping.Solution{}, ok, err
		}
		key := mu.Canonical()
		if !p.seen[key] {
			p.seen[key] = true
			return mu, true, nil
		}
	}
}

func (p *distinctPipe) Close() { p.src.Close() }

// BuildOrderByStage materializes the whole input and sorts it by cmp; ORDER
// BY is inherently a blocking operator, unlike the rest of the pipeline.
func BuildOrderByStage(cmp func(ctx context.Context, a, b mapping.Solution) int) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		all, err := pipeline.Collect(ctx, input)
		if err != nil {
			return errorPipe(err)
		}
		sort.SliceStable(all, func(i, j int) bool { return cmp(ctx, all[i], all[j]) < 0 })
		return pipeline.From(all)
	}
}

// BuildSliceStage applies OFFSET/LIMIT, in that order, over the input.
func BuildSliceStage(offset int, hasLimit bool, limit int) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		out := input
		if offset > 0 {
			out = pipeline.Skip(out, offset)
		}
		if hasLimit {
			out = pipeline.Limit(out, limit)
		}
		return out
	}
}

// BuildProjectStage restricts each solution to vars, spec.md section 5's
// SELECT projection (applied after any expression-bound variables have
// already been BIND-inserted by the plan builder).
func BuildProjectStage(vars []term.Variable) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.Map(input, func(mu mapping.Solution) (mapping.Solution, error) {
			return mu.Project(vars), nil
		})
	}
}
