// Package graph defines the contract between the execution core and a
// dataset backend (C3): the operations a Graph must provide, the dataset
// that groups named graphs, and the capability bitset that lets the BGP
// stage decide between bound join and index-nested-loop join.
package graph

import (
	"context"

	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/pipeline"
	"github.com/minieraf/sparql-engine/term"
)

// TriplePipe streams matched triples; MappingPipe streams solution
// mappings. Named aliases keep backend signatures readable.
type TriplePipe = pipeline.Pipe[term.Triple]
type MappingPipe = pipeline.Pipe[mapping.Solution]

// Capability is a single bit in a backend's capability set.
type Capability uint32

const (
	// CapUnion indicates the backend can evaluate a whole BGP in one bulk
	// call (evalBGP on arbitrary pattern sets), enabling bound join.
	CapUnion Capability = 1 << iota
	// CapFullTextSearch indicates fullTextSearch is implemented.
	CapFullTextSearch
)

// Capabilities is a bitset of Capability values.
type Capabilities uint32

// Has reports whether c is set.
func (caps Capabilities) Has(c Capability) bool { return Capabilities(c)&caps != 0 }

// FTSQuery bundles one full-text-search magic-triple group: the real triple
// pattern it augments, the search variable (the subject shared by the
// magic triples and Pattern), and the search parameters extracted from the
// magic triples, including the optional RelevanceVar/RankVar that receive
// the match score and rank (spec.md section 4.3).
type FTSQuery struct {
	Pattern       term.Triple
	Variable      term.Variable
	Keywords      []string
	MatchAllTerms bool
	MinRelevance  *float64
	MaxRelevance  *float64
	MinRank       *int
	MaxRank       *int
	RelevanceVar  *term.Variable
	RankVar       *term.Variable
}

// Graph is the contract a dataset backend implements. Implementations must
// preserve input variable identity in evalBGP results and return triples
// with all three term fields populated.
type Graph interface {
	// IRI identifies this graph within its Dataset.
	IRI() term.IRI

	// Find returns triples matching pattern (variables act as wildcards).
	Find(ctx context.Context, p term.Triple) TriplePipe
	// Insert adds a triple to the graph.
	Insert(ctx context.Context, t term.Triple) error
	// Delete removes a triple from the graph.
	Delete(ctx context.Context, t term.Triple) error
	// Clear removes every triple from the graph.
	Clear(ctx context.Context) error

	// EstimateCardinality estimates the number of matches for p. Errors are
	// non-fatal to callers: spec.md section 4.3 says estimation failures
	// fall back to default ordering.
	EstimateCardinality(ctx context.Context, p term.Triple) (int64, error)

	// EvalBGP evaluates every pattern of bgp jointly, extending input with
	// each match. The default strategy (iterate leftmost pattern, recurse)
	// is DefaultEvalBGP in this package; backends MAY override with
	// something smarter.
	EvalBGP(ctx context.Context, bgp pattern.BGP, input mapping.Solution) MappingPipe

	// EvalUnion evaluates several BGPs and merges their results; optional —
	// ok=false means unsupported. The execution stages do not call it;
	// bound join goes through EvalBGPBatch.
	EvalUnion(ctx context.Context, bgps []pattern.BGP, input mapping.Solution) (MappingPipe, bool)

	// EvalBGPBatch is the bound-join primitive: evaluate bgp once per input
	// row but as a single bulk dispatch to the backend, each output mapping
	// extending its originating row. Only meaningful when Capabilities has
	// CapUnion; the BGP stage falls back to one EvalBGP call per row when a
	// backend returns ok=false.
	EvalBGPBatch(ctx context.Context, bgp pattern.BGP, inputs []mapping.Solution) (MappingPipe, bool)

	// FullTextSearch executes one FTS magic-triple query; optional.
	FullTextSearch(ctx context.Context, q FTSQuery, input mapping.Solution) (MappingPipe, bool)

	// Capabilities reports this backend's supported bulk operations.
	Capabilities() Capabilities
}
