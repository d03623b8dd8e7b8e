package plan

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/exec"
	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/expr"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// needsGrouping reports whether query requires GROUP BY bucketing: an
// explicit GROUP BY clause, or an aggregate appearing anywhere in SELECT,
// HAVING, or ORDER BY (the implicit single-group case).
func needsGrouping(query *algebra.Query) bool {
	if len(query.GroupBy) > 0 {
		return true
	}
	for _, v := range query.Variables {
		if v.IsAggregateExpr() {
			return true
		}
	}
	for _, h := range query.Having {
		if h.IsAggregateExpr() {
			return true
		}
	}
	for _, o := range query.OrderBy {
		if o.Expr.IsAggregateExpr() {
			return true
		}
	}
	return false
}

// collectAggregateArgs walks e's tree and appends every aggregate's
// argument expression (deduplicated by expr.AggregateArgKey), the set
// BuildGroupStage needs to pre-bucket into the __aggregate bag.
func collectAggregateArgs(e algebra.Expr, seen map[string]bool, out *[]algebra.Expr) {
	if e.Kind == algebra.ExprAggregate {
		arg := firstAggArg(e)
		key := expr.AggregateArgKey([]algebra.Expr{arg})
		if !seen[key] {
			seen[key] = true
			*out = append(*out, arg)
		}
	}
	for _, a := range e.Args {
		collectAggregateArgs(a, seen, out)
	}
	for _, a := range e.List {
		collectAggregateArgs(a, seen, out)
	}
}

func firstAggArg(e algebra.Expr) algebra.Expr {
	if len(e.Args) == 0 {
		return algebra.Expr{Kind: algebra.ExprTerm, Term: nil}
	}
	return e.Args[0]
}

// applyProjection implements spec.md section 4.4's GROUP BY/aggregate
// bridge and section 4.7's SELECT solution-modifier pipeline, in the order
// the SPARQL 1.1 algebra specifies: Group, Having, (alias binds,) Order By,
// Project, Distinct, Offset, Limit.
func (b *Builder) applyProjection(ctx context.Context, ec *execctx.Context, query *algebra.Query, in pipeline.Pipe[mapping.Solution]) (pipeline.Pipe[mapping.Solution], []term.Variable, error) {
	out := in

	if needsGrouping(query) {
		keys := make([]exec.GroupKey, 0, len(query.GroupBy))
		for _, ge := range query.GroupBy {
			f, err := b.registry.Compile(ge)
			if err != nil {
				return nil, nil, err
			}
			k := exec.GroupKey{Expr: ge, Fn: f}
			if ge.Kind == algebra.ExprVariable {
				k.IsVar = true
				k.AsVar = ge.Variable
			}
			keys = append(keys, k)
		}

		var aggArgs []algebra.Expr
		seen := make(map[string]bool)
		for _, v := range query.Variables {
			collectAggregateArgs(v, seen, &aggArgs)
		}
		for _, h := range query.Having {
			collectAggregateArgs(h, seen, &aggArgs)
		}
		for _, o := range query.OrderBy {
			collectAggregateArgs(o.Expr, seen, &aggArgs)
		}

		out = exec.BuildGroupStage(keys, aggArgs)(ctx, ec, out)
	}

	for _, h := range query.Having {
		f, err := b.registry.Compile(h)
		if err != nil {
			return nil, nil, err
		}
		out = exec.BuildFilterStage(f)(ctx, ec, out)
	}

	selectVars := make([]term.Variable, 0, len(query.Variables))
	for _, v := range query.Variables {
		if v.Kind == algebra.ExprVariable && !v.HasAlias {
			selectVars = append(selectVars, v.Variable)
			continue
		}
		alias := v.Alias
		if !v.HasAlias {
			alias = v.Variable
		}
		f, err := b.registry.Compile(v)
		if err != nil {
			return nil, nil, err
		}
		out = exec.BuildBindStage(f, alias)(ctx, ec, out)
		selectVars = append(selectVars, alias)
	}

	if len(query.OrderBy) > 0 {
		fns := make([]expr.Func, len(query.OrderBy))
		descs := make([]bool, len(query.OrderBy))
		for i, ot := range query.OrderBy {
			f, err := b.registry.Compile(ot.Expr)
			if err != nil {
				return nil, nil, err
			}
			fns[i] = f
			descs[i] = ot.Descending
		}
		cmp := expr.OrderComparator(fns, descs)
		out = exec.BuildOrderByStage(cmp)(ctx, ec, out)
	}

	if len(selectVars) > 0 {
		out = exec.BuildProjectStage(selectVars)(ctx, ec, out)
	}

	if query.Distinct {
		out = exec.BuildDistinctStage()(ctx, ec, out)
	}
	if query.HasOffset || query.HasLimit {
		out = exec.BuildSliceStage(query.Offset, query.HasLimit, query.Limit)(ctx, ec, out)
	}

	return out, selectVars, nil
}
