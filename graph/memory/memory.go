// Package memory provides an in-memory reference Graph backend: a linear
// triple store with naive pattern matching, the default recursive evalBGP
// strategy, and a simple keyword-overlap full-text search. It advertises
// both CapUnion and CapFullTextSearch so it exercises the bound-join and
// FTS paths of the BGP stage in tests.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// Graph is a mutex-protected slice of triples.
type Graph struct {
	iri term.IRI
	mu  sync.RWMutex
	all []term.Triple
}

// New builds an empty in-memory graph named iri.
func New(iri term.IRI) *Graph {
	return &Graph{iri: iri}
}

// NewWithTriples builds an in-memory graph pre-populated with triples.
func NewWithTriples(iri term.IRI, triples []term.Triple) *Graph {
	return &Graph{iri: iri, all: append([]term.Triple(nil), triples...)}
}

func (g *Graph) IRI() term.IRI { return g.iri }

func matchTerm(pattern, candidate term.Term) bool {
	if _, ok := pattern.(term.Variable); ok {
		return true
	}
	if term.IsUnbound(pattern) {
		return true
	}
	return pattern.Equal(candidate)
}

func matches(p, t term.Triple) bool {
	pp, hasPath := p.Predicate.(term.PropertyPath)
	if hasPath {
		_ = pp // property paths are handled by the dedicated path stage, not Find
		return false
	}
	return matchTerm(p.Subject, t.Subject) &&
		matchTerm(p.Predicate, t.Predicate) &&
		matchTerm(p.Object, t.Object)
}

func (g *Graph) Find(ctx context.Context, p term.Triple) graph.TriplePipe {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []term.Triple
	for _, t := range g.all {
		if matches(p, t) {
			out = append(out, t)
		}
	}
	return pipeline.From(out)
}

func (g *Graph) Insert(ctx context.Context, t term.Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.all {
		if existing.Subject.Equal(t.Subject) && existing.Predicate.Equal(t.Predicate) && existing.Object.Equal(t.Object) {
			return nil
		}
	}
	g.all = append(g.all, t)
	return nil
}

func (g *Graph) Delete(ctx context.Context, t term.Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.all {
		if existing.Subject.Equal(t.Subject) && existing.Predicate.Equal(t.Predicate) && existing.Object.Equal(t.Object) {
			g.all = append(g.all[:i], g.all[i+1:]...)
			return nil
		}
	}
	return nil
}

func (g *Graph) Clear(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.all = nil
	return nil
}

func (g *Graph) EstimateCardinality(ctx context.Context, p term.Triple) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var n int64
	for _, t := range g.all {
		if matches(p, t) {
			n++
		}
	}
	return n, nil
}

// EvalBGP implements the default strategy from spec.md section 4.2 via
// graph.DefaultEvalBGP, which drives the join purely through Find.
func (g *Graph) EvalBGP(ctx context.Context, bgp pattern.BGP, input mapping.Solution) graph.MappingPipe {
	return graph.DefaultEvalBGP(ctx, g, bgp.Patterns, input)
}

// EvalUnion merges evalBGP over each bgp; the in-memory backend has no
// bulk advantage so this is a thin sequential wrapper.
func (g *Graph) EvalUnion(ctx context.Context, bgps []pattern.BGP, input mapping.Solution) (graph.MappingPipe, bool) {
	pipes := make([]graph.MappingPipe, len(bgps))
	for i, b := range bgps {
		pipes[i] = g.EvalBGP(ctx, b, input)
	}
	return pipeline.Merge(pipes...), true
}

// EvalBGPBatch evaluates bgp once per input row with DefaultEvalBGP and
// merges the per-row results; each Find takes its own read lock.
// This is the in-memory stand-in for a backend's real bulk dispatch
// (e.g. one multi-row index lookup); it demonstrates the contract rather
// than a literal performance win.
func (g *Graph) EvalBGPBatch(ctx context.Context, bgp pattern.BGP, inputs []mapping.Solution) (graph.MappingPipe, bool) {
	pipes := make([]graph.MappingPipe, len(inputs))
	for i, row := range inputs {
		pipes[i] = graph.DefaultEvalBGP(ctx, g, bgp.Patterns, row)
	}
	return pipeline.Merge(pipes...), true
}

// FullTextSearch does a naive keyword-overlap scan over literal objects
// matching q.Pattern, scoring by fraction of keywords matched.
func (g *Graph) FullTextSearch(ctx context.Context, q graph.FTSQuery, input mapping.Solution) (graph.MappingPipe, bool) {
	bound := mapping.Bound(input, q.Pattern)
	candidates := g.Find(ctx, bound)
	var out []mapping.Solution
	_ = pipeline.ForEach(ctx, candidates, func(t term.Triple) (bool, error) {
		lit, ok := t.Object.(term.Literal)
		if !ok {
			return true, nil
		}
		score, rank, matched := scoreLiteral(lit.Lexical, q.Keywords, q.MatchAllTerms)
		if !matched {
			return true, nil
		}
		if q.MinRelevance != nil && score < *q.MinRelevance {
			return true, nil
		}
		if q.MaxRelevance != nil && score > *q.MaxRelevance {
			return true, nil
		}
		if q.MinRank != nil && rank < *q.MinRank {
			return true, nil
		}
		if q.MaxRank != nil && rank > *q.MaxRank {
			return true, nil
		}
		extended, ok := graph.ExtendSolution(input, q.Pattern, t)
		if !ok {
			return true, nil
		}
		if q.RelevanceVar != nil {
			extended = extended.With(*q.RelevanceVar, term.NewTypedLiteral(formatFloat(score), term.XSDFloat))
		}
		if q.RankVar != nil {
			extended = extended.With(*q.RankVar, term.NewTypedLiteral(formatInt(rank), term.XSDInteger))
		}
		out = append(out, extended)
		return true, nil
	})
	return pipeline.From(out), true
}

func scoreLiteral(text string, keywords []string, matchAll bool) (score float64, rank int, matched bool) {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			hits++
		}
	}
	if hits == 0 {
		return 0, 0, false
	}
	if matchAll && hits < len(keywords) {
		return 0, 0, false
	}
	return float64(hits) / float64(len(keywords)), hits, true
}

func (g *Graph) Capabilities() graph.Capabilities {
	return graph.Capabilities(graph.CapUnion | graph.CapFullTextSearch)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}
