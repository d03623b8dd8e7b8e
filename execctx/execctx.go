// Package execctx defines the per-query Execution Context (spec.md
// section 3): a mutable-once bag threaded through plan building and stage
// execution. It is a separate package, imported by both plan and exec,
// specifically so those two packages never need to import each other.
package execctx

import (
	"github.com/minieraf/sparql-engine/cache"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/term"
	"github.com/minieraf/sparql-engine/trace"
)

// Option is a single engine behavior flag settable per query.
type Option string

const (
	// OptForceIndexJoin disables bound join even when the graph advertises
	// CapUnion, forcing index-nested-loop evaluation (spec.md section 4.3).
	OptForceIndexJoin Option = "FORCE_INDEX_JOIN"
	// OptAllowGraphAutoCreate permits the BGP stage to materialize a named
	// graph discovered via a variable-valued FROM (spec.md section 9).
	OptAllowGraphAutoCreate Option = "ALLOW_GRAPH_AUTO_CREATE"
)

// Context is the per-query execution context. It is constructed once per
// build(query) call and passed to every stage as the same *Context, so
// each query gets its own hints/options/flags while the Dataset and Cache
// it points to are shared across queries.
type Context struct {
	Dataset *graph.Dataset

	// DefaultGraphs / NamedGraphs hold the FROM / FROM NAMED IRIs applied to
	// this query; empty DefaultGraphs means "use the dataset's default".
	DefaultGraphs []term.IRI
	NamedGraphs   []term.IRI

	// Hints collects values extracted from query-hint magic triples
	// (spec.md section 6), keyed by the hint's local name.
	Hints map[string]term.Term

	// Prefixes is the query's prefix map, namespace name to IRI string.
	Prefixes map[string]string

	// Cache is the active BGP semantic cache, or nil when caching is
	// disabled for this query (e.g. disabled globally, or HasLimitOffset).
	Cache *cache.Cache

	// HasLimitOffset records whether the query carries LIMIT or OFFSET;
	// true disables both reads from and writes to the cache (spec.md
	// section 4.5).
	HasLimitOffset bool

	// Trace collects phase timing events for this query; nil-safe, a
	// no-op unless a Handler was registered when it was built.
	Trace *trace.Collector

	options map[Option]bool
}

// New builds a fresh per-query context bound to ds, with tracing disabled.
func New(ds *graph.Dataset) *Context {
	return &Context{
		Dataset:  ds,
		Hints:    make(map[string]term.Term),
		Prefixes: make(map[string]string),
		options:  make(map[Option]bool),
		Trace:    trace.NewCollector(nil),
	}
}

// SetOption enables or disables a behavior flag.
func (c *Context) SetOption(opt Option, on bool) {
	if c.options == nil {
		c.options = make(map[Option]bool)
	}
	c.options[opt] = on
}

// HasOption reports whether a behavior flag is enabled.
func (c *Context) HasOption(opt Option) bool {
	return c.options != nil && c.options[opt]
}

// CachingEnabled reports whether the cache may be consulted/written for
// the current query.
func (c *Context) CachingEnabled() bool {
	return c.Cache != nil && !c.HasLimitOffset
}
