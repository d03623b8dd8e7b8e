package plan

import (
	"context"
	"sort"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/exec"
	"github.com/minieraf/sparql-engine/execctx"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

// groupWeight orders a WHERE clause's top-level groups so graph-pattern
// groups run before the FILTER/BIND/VALUES expressions that reference
// their bindings, the same reordering spec.md section 4.7 step 2 requires
// of a naive left-to-right translation. GRAPH with a variable target is
// placed last since it may need every other binding to resolve which
// graph to scan.
func groupWeight(g algebra.Group) int {
	switch g.Type {
	case algebra.GroupBGP:
		return 0
	case algebra.GroupGraph:
		if _, isVar := g.Target.(term.Variable); isVar {
			return 5
		}
		return 0
	case algebra.GroupGeneric, algebra.GroupOptional, algebra.GroupUnion, algebra.GroupMinus, algebra.GroupService:
		return 1
	case algebra.GroupBind:
		return 2
	case algebra.GroupValues:
		return 3
	case algebra.GroupFilter:
		return 4
	default:
		return 1
	}
}

// reorderGroups stable-sorts groups by groupWeight, then merges consecutive
// BGP groups so they compile to a single BuildBGPStage call (and therefore
// a single bound-join batch) instead of one per original triple cluster.
func reorderGroups(groups []algebra.Group) []algebra.Group {
	ordered := append([]algebra.Group(nil), groups...)
	sort.SliceStable(ordered, func(i, j int) bool { return groupWeight(ordered[i]) < groupWeight(ordered[j]) })
	return mergeBGPs(ordered)
}

func mergeBGPs(groups []algebra.Group) []algebra.Group {
	var out []algebra.Group
	for _, g := range groups {
		if g.Type == algebra.GroupBGP && len(out) > 0 && out[len(out)-1].Type == algebra.GroupBGP {
			last := &out[len(out)-1]
			last.Triples = append(last.Triples, g.Triples...)
			continue
		}
		out = append(out, g)
	}
	return out
}

// chain composes stages left to right: each stage's output feeds the next
// stage's input, the streaming equivalent of a sequence of WHERE-clause
// joins (spec.md section 4.1).
func chain(stages []exec.Stage) exec.Stage {
	return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
		cur := input
		for _, st := range stages {
			cur = st(ctx, ec, cur)
		}
		return cur
	}
}

// buildWhere compiles one WHERE clause (a list of groups implicitly
// joined) into a single Stage.
func (b *Builder) buildWhere(groups []algebra.Group) (exec.Stage, error) {
	return b.buildGroupList(groups, nil)
}

// buildGroupList compiles a list of groups under a shared explicitGraph
// context (nil for the default/dataset-wide context, non-nil inside a
// GRAPH clause's body).
func (b *Builder) buildGroupList(groups []algebra.Group, explicitGraph term.Term) (exec.Stage, error) {
	if err := validateValuesConflicts(groups); err != nil {
		return nil, err
	}
	ordered := reorderGroups(groups)
	stages := make([]exec.Stage, 0, len(ordered))
	for _, g := range ordered {
		st, err := b.buildGroup(g, explicitGraph)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return chain(stages), nil
}

// buildGroup dispatches one WHERE-clause group to its Stage builder,
// checking the caller-registered override table first (the extensibility
// hook spec.md section 4.7 calls for) before falling back to the built-in
// translation for each GroupType.
func (b *Builder) buildGroup(g algebra.Group, explicitGraph term.Term) (exec.Stage, error) {
	if override, ok := b.stages[g.Type]; ok {
		return override(b, g, explicitGraph)
	}

	switch g.Type {
	case algebra.GroupBGP:
		return b.buildBGPGroup(g, explicitGraph)

	case algebra.GroupGeneric:
		return b.buildGroupList(g.Patterns, explicitGraph)

	case algebra.GroupOptional:
		if len(g.Patterns) != 1 {
			return nil, sparqlerr.UnsupportedPattern("OPTIONAL group must wrap exactly one nested pattern, got %d", len(g.Patterns))
		}
		body, err := b.buildGroupList([]algebra.Group{g.Patterns[0]}, explicitGraph)
		if err != nil {
			return nil, err
		}
		return exec.BuildOptionalStage(body), nil

	case algebra.GroupMinus:
		if len(g.Patterns) != 1 {
			return nil, sparqlerr.UnsupportedPattern("MINUS group must wrap exactly one nested pattern, got %d", len(g.Patterns))
		}
		body, err := b.buildGroupList([]algebra.Group{g.Patterns[0]}, explicitGraph)
		if err != nil {
			return nil, err
		}
		return exec.BuildMinusStage(body), nil

	case algebra.GroupUnion:
		branches := make([]exec.Stage, 0, len(g.Branches))
		for _, branch := range g.Branches {
			st, err := b.buildGroupList([]algebra.Group{branch}, explicitGraph)
			if err != nil {
				return nil, err
			}
			branches = append(branches, st)
		}
		return exec.BuildUnionStage(branches), nil

	case algebra.GroupGraph:
		if len(g.Patterns) != 1 {
			return nil, sparqlerr.UnsupportedPattern("GRAPH group must wrap exactly one nested pattern, got %d", len(g.Patterns))
		}
		return b.buildGroupList([]algebra.Group{g.Patterns[0]}, g.Target)

	case algebra.GroupService:
		if len(g.Patterns) != 1 {
			return nil, sparqlerr.UnsupportedPattern("SERVICE group must wrap exactly one nested pattern, got %d", len(g.Patterns))
		}
		body, err := b.buildGroupList([]algebra.Group{g.Patterns[0]}, nil)
		if err != nil {
			return nil, err
		}
		return exec.BuildServiceStage(g.Target, g.Silent, body, b.opts.ServiceExecutor), nil

	case algebra.GroupFilter:
		f, err := b.registry.Compile(g.Expr)
		if err != nil {
			return nil, err
		}
		return exec.BuildFilterStage(f), nil

	case algebra.GroupBind:
		f, err := b.registry.Compile(g.Expr)
		if err != nil {
			return nil, err
		}
		return exec.BuildBindStage(f, g.Variable), nil

	case algebra.GroupValues:
		return exec.BuildValuesStage(g.ValuesVars, g.ValuesRows), nil

	default:
		return nil, sparqlerr.UnsupportedPattern("unrecognized WHERE group type: %s", g.Type)
	}
}

// buildBGPGroup splits a BGP group's triples into plain triple patterns
// (handled by the bound-join BGP stage) and property-path triples (each
// its own path stage, spec.md section 4.6), then chains them: a pattern's
// own solution bindings feed forward into the next pattern exactly like
// separate WHERE-clause groups would.
func (b *Builder) buildBGPGroup(g algebra.Group, explicitGraph term.Term) (exec.Stage, error) {
	var plain []term.Triple
	var pathTriples []term.Triple
	for _, t := range g.Triples {
		if _, isPath := t.Predicate.(term.PropertyPath); isPath {
			pathTriples = append(pathTriples, t)
			continue
		}
		plain = append(plain, t)
	}

	var stages []exec.Stage
	if len(plain) > 0 {
		st, err := exec.BuildBGPStage(plain, explicitGraph, exec.DefaultGraphTarget)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	for _, t := range pathTriples {
		path, ok := t.Predicate.(term.PropertyPath)
		if !ok {
			return nil, sparqlerr.UnsupportedPattern("property path triple has non-path predicate %s", t.Predicate)
		}
		stages = append(stages, exec.BuildPathStage(t.Subject, path, t.Object, exec.DefaultGraphTarget, explicitGraph))
	}
	if len(stages) == 0 {
		return func(ctx context.Context, ec *execctx.Context, input pipeline.Pipe[mapping.Solution]) pipeline.Pipe[mapping.Solution] {
			return input
		}, nil
	}
	return chain(stages), nil
}
