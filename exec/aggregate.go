package exec

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/expr"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// GroupKey is one GROUP BY expression: its compiled form to compute the
// bucket, and the original expression tree (so the group-by variable, if
// any, can be rebound on the output row the way plain `GROUP BY ?x`
// expects).
type GroupKey struct {
	Expr  algebra.Expr
	Fn    expr.Func
	AsVar term.Variable // set when the expression is a bare variable
	IsVar bool
}

// BuildGroupStage implements spec.md section 4.4's GROUP BY / aggregate
// bridge: materialize the input, bucket rows by the GROUP BY keys, and
// emit one output row per bucket carrying the group-by bindings plus an
// __aggregate bag (mapping.AggregateBagKey) keyed by
// expr.AggregateArgKey(aggArgs) so every aggregate expression in SELECT/
// HAVING/ORDER BY reads the right bucket of rows via mu.Bag.
//
// An empty keys slice still groups (one bucket holding every row), the
// implicit group of a SELECT with no GROUP BY but at least one aggregate.
func BuildGroupStage(keys []GroupKey, aggArgs []algebra.Expr) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		rows, err := pipeline.Collect(ctx, input)
		if err != nil {
			return errorPipe(err)
		}

		type bucket struct {
			key  mapping.Solution
			rows []mapping.Solution
		}
		order := make([]string, 0)
		buckets := make(map[string]*bucket)

		for _, row := range rows {
			keySol := mapping.New()
			exprKey := ""
			for _, k := range keys {
				v, verr := k.Fn(ctx, row)
				if verr != nil || v.IsNil() {
					if !k.IsVar {
						exprKey += "|"
					}
					continue
				}
				if k.IsVar {
					keySol = keySol.With(k.AsVar, v.Term)
				} else {
					exprKey += "|" + term.Canonical(v.Term)
				}
			}
			bk := keySol.Canonical() + exprKey
			b, ok := buckets[bk]
			if !ok {
				b = &bucket{key: keySol}
				buckets[bk] = b
				order = append(order, bk)
			}
			b.rows = append(b.rows, row)
		}

		if len(rows) == 0 && len(keys) == 0 {
			// SELECT (COUNT(*) AS ?c) with no matching rows still yields a
			// single group, per spec.md's aggregate-of-empty-input rule.
			buckets[""] = &bucket{key: mapping.New()}
			order = append(order, "")
		}

		out := make([]mapping.Solution, 0, len(order))
		for _, bk := range order {
			b := buckets[bk]
			bag := make(map[string][]mapping.Solution, len(aggArgs))
			for _, a := range aggArgs {
				bag[expr.AggregateArgKey([]algebra.Expr{a})] = b.rows
			}
			result := b.key.WithBag(mapping.AggregateBagKey, bag)
			out = append(out, result)
		}
		return pipeline.From(out)
	}
}
