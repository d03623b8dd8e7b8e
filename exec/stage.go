// Package exec implements the streaming algebra stages (C5-C7): the BGP
// stage with bound join, the property-path stage, and the remaining
// algebra operators (OPTIONAL, MINUS, UNION, GRAPH, SERVICE, BIND,
// FILTER, DISTINCT, ORDER BY, aggregation).
package exec

import (
	"context"

	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
)

// Stage produces a lazy sequence of solution mappings from an input
// sequence and the query's execution context. Leaf stages (BGP) ignore
// input beyond using it as the single seed row, or are driven with one
// empty input mapping as the root of the plan.
type Stage func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution]

// StageBuilder compiles one algebra.Group node into a Stage; registered
// per algebra.GroupType in the Plan Builder's dispatch table (C9).
type StageBuilder func(ec *execctx.Context) (Stage, error)

// Root returns a single-row input pipe (the empty solution), the seed for
// the top of a WHERE clause.
func Root() pipeline.Pipe[mapping.Solution] {
	return pipeline.Of(mapping.New())
}
