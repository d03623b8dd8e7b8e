package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

// Factory constructs a new, empty Graph for the given IRI — used to
// lazily materialize a graph named by FROM when Dataset.AllowAutoCreate
// permits it (spec.md section 9's design note on variable-valued FROM).
type Factory func(iri term.IRI) Graph

// Dataset is a named map from IRI to Graph plus a designated default
// graph.
type Dataset struct {
	mu             sync.RWMutex
	graphs         map[string]Graph
	defaultGraph   Graph
	factory        Factory
	allowAutoCreate bool
}

// NewDataset builds a Dataset around defaultGraph, with an optional
// factory used for GetOrCreate. allowAutoCreate gates whether a missing
// named graph is silently created during query evaluation (it is always
// allowed for explicit CREATE GRAPH updates).
func NewDataset(defaultGraph Graph, factory Factory, allowAutoCreate bool) *Dataset {
	return &Dataset{
		graphs:          make(map[string]Graph),
		defaultGraph:    defaultGraph,
		factory:         factory,
		allowAutoCreate: allowAutoCreate,
	}
}

// Default returns the dataset's default graph.
func (d *Dataset) Default() Graph {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultGraph
}

// AllowAutoCreate reports whether GetOrCreate may silently materialize
// missing graphs outside of explicit CREATE.
func (d *Dataset) AllowAutoCreate() bool { return d.allowAutoCreate }

// Get returns the named graph, or (nil, false) if absent.
func (d *Dataset) Get(iri term.IRI) (Graph, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.graphs[iri.Value]
	return g, ok
}

// Has reports whether the dataset has a graph with this IRI.
func (d *Dataset) Has(iri term.IRI) bool {
	_, ok := d.Get(iri)
	return ok
}

// Create registers a new graph for iri using the factory, failing if one
// already exists. Used by the CREATE GRAPH update (spec.md section 4.8,
// scenario S6) and is always permitted regardless of AllowAutoCreate.
func (d *Dataset) Create(iri term.IRI) (Graph, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.graphs[iri.Value]; ok {
		return nil, sparqlerr.GraphBackend(nil, "graph already exists: %s", iri.Value)
	}
	if d.factory == nil {
		return nil, sparqlerr.GraphBackend(nil, "no graph factory configured")
	}
	g := d.factory(iri)
	d.graphs[iri.Value] = g
	return g, nil
}

// GetOrCreate returns the named graph, creating it via the factory only
// if allowed is true (the caller is responsible for passing
// AllowAutoCreate() or an override when bound(FROM) yields a variable).
func (d *Dataset) GetOrCreate(iri term.IRI, allowed bool) (Graph, error) {
	if g, ok := d.Get(iri); ok {
		return g, nil
	}
	if !allowed {
		return nil, sparqlerr.GraphBackend(nil, "unknown graph: %s", iri.Value)
	}
	return d.Create(iri)
}

// Drop removes a named graph. Dropping the default graph is rejected.
func (d *Dataset) Drop(iri term.IRI) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.graphs[iri.Value]; !ok {
		return sparqlerr.GraphBackend(nil, "unknown graph: %s", iri.Value)
	}
	delete(d.graphs, iri.Value)
	return nil
}

// Register installs an already-constructed graph under its own IRI,
// replacing any graph already registered there.
func (d *Dataset) Register(g Graph) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.graphs[g.IRI().Value] = g
}

// NamedIRIs returns every named graph's IRI, sorted, for deterministic
// union-graph construction.
func (d *Dataset) NamedIRIs() []term.IRI {
	d.mu.RLock()
	defer d.mu.RUnlock()
	iris := make([]term.IRI, 0, len(d.graphs))
	for k := range d.graphs {
		iris = append(iris, term.IRI{Value: k})
	}
	sort.Slice(iris, func(i, j int) bool { return iris[i].Value < iris[j].Value })
	return iris
}

func (d *Dataset) String() string {
	return fmt.Sprintf("Dataset{default=%v, named=%d}", d.defaultGraph != nil, len(d.graphs))
}
