package exec

import (
	"context"

	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

func serviceUnavailable(endpoint term.Term) error {
	return sparqlerr.UnsupportedPattern("no SERVICE executor configured for endpoint %s", endpoint.String())
}

// BuildUnionStage evaluates every branch against the same input and
// concatenates their results, spec.md section 4.7's UNION.
func BuildUnionStage(branches []Stage) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		rows, err := pipeline.Collect(ctx, input)
		if err != nil {
			return errorPipe(err)
		}
		pipes := make([]pipeline.Pipe[mapping.Solution], len(branches))
		for i, b := range branches {
			pipes[i] = b(ctx, ec, pipeline.From(rows))
		}
		return pipeline.Merge(pipes...)
	}
}

// BuildOptionalStage implements the left join µ1 ⟕ µ2 of spec.md section
// 4.7: for every left solution, evaluate the right pattern against it;
// emit every compatible extension, or the left solution unchanged if the
// right pattern produced nothing for it.
func BuildOptionalStage(right Stage) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.FlatMap(input, func(left mapping.Solution) pipeline.Pipe[mapping.Solution] {
			matches, err := pipeline.Collect(ctx, right(ctx, ec, pipeline.Of(left)))
			if err != nil {
				return errorPipe(err)
			}
			if len(matches) == 0 {
				return pipeline.Of(left)
			}
			return pipeline.From(matches)
		})
	}
}

// BuildMinusStage implements MINUS of spec.md section 4.7: drop a left
// solution when some right solution is compatible with it AND their
// domains overlap (the SPARQL 1.1 definition — mappings with disjoint
// domains are never excluded, however they compare).
func BuildMinusStage(right Stage) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.FlatMap(input, func(left mapping.Solution) pipeline.Pipe[mapping.Solution] {
			matches, err := pipeline.Collect(ctx, right(ctx, ec, pipeline.Of(left)))
			if err != nil {
				return errorPipe(err)
			}
			for _, rm := range matches {
				if sharesDomain(left, rm) && left.Compatible(rm) {
					return pipeline.Empty[mapping.Solution]()
				}
			}
			return pipeline.Of(left)
		})
	}
}

func sharesDomain(a, b mapping.Solution) bool {
	for _, v := range a.Domain() {
		if _, ok := b.Get(v); ok {
			return true
		}
	}
	return false
}

// BuildValuesStage implements VALUES as an inline-data join (spec.md
// section 4.7): each input row is extended with every compatible VALUES
// row, UNDEF entries left unbound in that row.
func BuildValuesStage(vars []term.Variable, rows [][]term.Term) Stage {
	dataRows := make([]mapping.Solution, 0, len(rows))
	for _, row := range rows {
		sol := mapping.New()
		for i, v := range vars {
			if i < len(row) && row[i] != nil {
				sol = sol.With(v, row[i])
			}
		}
		dataRows = append(dataRows, sol)
	}
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.FlatMap(input, func(left mapping.Solution) pipeline.Pipe[mapping.Solution] {
			var out []mapping.Solution
			for _, data := range dataRows {
				if left.Compatible(data) {
					out = append(out, mapping.Union(left, data))
				}
			}
			return pipeline.From(out)
		})
	}
}

// ServiceExecutor dispatches a SERVICE clause to a federated endpoint; the
// plan builder injects a concrete implementation (an HTTP SPARQL protocol
// client), keeping the transport dependency out of the exec package.
type ServiceExecutor func(ctx context.Context, endpoint term.Term, body Stage, input mapping.Solution) (pipeline.Pipe[mapping.Solution], error)

// BuildServiceStage implements SERVICE [SILENT] <endpoint> { body }: on
// executor error, SILENT passes the input solution through unchanged
// (spec.md's SERVICE SILENT contract) and non-SILENT propagates the error.
func BuildServiceStage(endpoint term.Term, silent bool, body Stage, executor ServiceExecutor) Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		return pipeline.FlatMap(input, func(mu mapping.Solution) pipeline.Pipe[mapping.Solution] {
			if executor == nil {
				if silent {
					return pipeline.Of(mu)
				}
				return errorPipe(serviceUnavailable(endpoint))
			}
			result, err := executor(ctx, endpoint, body, mu)
			if err != nil {
				if silent {
					return pipeline.Of(mu)
				}
				return errorPipe(err)
			}
			return result
		})
	}
}
