package plan

import (
	"context"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/exec"
	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
)

// EvaluateWhere compiles and runs groups as a standalone WHERE clause
// against this Builder's dataset, outside of a full Query. The update
// package uses it to resolve the pattern half of INSERT/DELETE ... WHERE
// before substituting the bindings into the operation's quad templates.
func (b *Builder) EvaluateWhere(ctx context.Context, groups []algebra.Group) (pipeline.Pipe[mapping.Solution], error) {
	stage, err := b.buildWhere(groups)
	if err != nil {
		return nil, err
	}
	ec := execctx.New(b.dataset)
	return stage(ctx, ec, exec.Root()), nil
}
