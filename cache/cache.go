// Package cache implements the BGP Semantic Cache (C8): a subset-matching
// cache of BGP to bindings with concurrent writer coordination and LRU+
// max-age eviction (spec.md section 4.5).
package cache

import (
	"sync"
	"time"

	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/term"
)

// Defaults per spec.md section 4.5's design defaults.
const (
	DefaultMaxEntries = 500
	DefaultMaxAge     = 20 * time.Minute
)

// entry is one committed cache row.
type entry struct {
	bgp         pattern.BGP
	mappings    []mapping.Solution
	cardinality int
	insertSeq   int64
	committedAt time.Time
	lastTouch   time.Time
}

// staging holds one writer's in-progress buffer for a not-yet-committed
// BGP key.
type staging struct {
	mu      sync.Mutex
	buffers map[string][]mapping.Solution // writerID -> buffered mappings
	waiters []chan struct{}                // closed on commit or on discard
	done    bool
}

// Cache is the concurrent, subset-matching BGP result cache.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry    // canonical BGP key -> committed entry
	inProgress map[string]*staging  // canonical BGP key -> staging state
	seq        int64
	maxEntries int
	maxAge     time.Duration
}

// New builds a cache with the given eviction bounds; zero values fall
// back to the spec.md defaults.
func New(maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{
		entries:    make(map[string]*entry),
		inProgress: make(map[string]*staging),
		maxEntries: maxEntries,
		maxAge:     maxAge,
	}
}

// Update appends mapping to writerID's staging buffer for bgp. Calls after
// a committed entry exists for bgp are silently dropped, per spec.md
// section 4.5.
func (c *Cache) Update(bgp pattern.BGP, m mapping.Solution, writerID string) {
	key := bgp.Canonical()

	c.mu.Lock()
	if _, committed := c.entries[key]; committed {
		c.mu.Unlock()
		return
	}
	st, ok := c.inProgress[key]
	if !ok {
		st = &staging{buffers: make(map[string][]mapping.Solution)}
		c.inProgress[key] = st
	}
	c.mu.Unlock()

	st.mu.Lock()
	if !st.done {
		st.buffers[writerID] = append(st.buffers[writerID], m)
	}
	st.mu.Unlock()
}

// Commit installs writerID's staging buffer as the canonical entry for bgp
// if no one has committed yet; late committers' buffers are discarded
// silently (spec.md section 7: CacheStagingDiscarded).
func (c *Cache) Commit(bgp pattern.BGP, writerID string) {
	key := bgp.Canonical()

	c.mu.Lock()
	st, ok := c.inProgress[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	if _, already := c.entries[key]; already {
		delete(c.inProgress, key)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		return
	}
	buf := st.buffers[writerID]
	st.done = true
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()

	c.mu.Lock()
	c.seq++
	c.entries[key] = &entry{
		bgp:         bgp,
		mappings:    buf,
		cardinality: len(buf),
		insertSeq:   c.seq,
		committedAt: time.Now(),
		lastTouch:   time.Now(),
	}
	delete(c.inProgress, key)
	c.evictLocked()
	c.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Get returns the canonical committed mappings for bgp and whether they
// are present. If a writer is in flight for bgp, Get blocks until that
// writer commits (or its staging is discarded, in which case ok is
// false).
func (c *Cache) Get(bgp pattern.BGP) (mappings []mapping.Solution, ok bool) {
	key := bgp.Canonical()

	c.mu.Lock()
	if e, found := c.entries[key]; found {
		e.lastTouch = time.Now()
		out := append([]mapping.Solution(nil), e.mappings...)
		c.mu.Unlock()
		return out, true
	}
	st, inFlight := c.inProgress[key]
	if !inFlight {
		c.mu.Unlock()
		return nil, false
	}
	c.mu.Unlock()

	st.mu.Lock()
	if st.done {
		st.mu.Unlock()
		// Writer already finished between our checks; re-read entries.
		c.mu.Lock()
		e, found := c.entries[key]
		c.mu.Unlock()
		if !found {
			return nil, false
		}
		return append([]mapping.Solution(nil), e.mappings...), true
	}
	ch := make(chan struct{})
	st.waiters = append(st.waiters, ch)
	st.mu.Unlock()

	<-ch

	c.mu.Lock()
	e, found := c.entries[key]
	c.mu.Unlock()
	if !found {
		return nil, false
	}
	return append([]mapping.Solution(nil), e.mappings...), true
}

// Has reports whether bgp has a committed entry, without blocking on any
// in-flight writer.
func (c *Cache) Has(bgp pattern.BGP) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[bgp.Canonical()]
	return ok
}

// Count returns the number of committed entries.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Delete removes bgp's committed entry, if any.
func (c *Cache) Delete(bgp pattern.BGP) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, bgp.Canonical())
}

// DiscardWriter abandons writerID's staging buffer for bgp without
// committing — used on sink cancellation (spec.md section 5) so a
// cancelled query's partial results never become visible.
func (c *Cache) DiscardWriter(bgp pattern.BGP, writerID string) {
	key := bgp.Canonical()
	c.mu.Lock()
	st, ok := c.inProgress[key]
	c.mu.Unlock()
	if !ok {
		return
	}
	st.mu.Lock()
	delete(st.buffers, writerID)
	waiters := st.waiters
	st.waiters = nil
	st.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// FindSubset returns the largest committed BGP whose pattern set is a
// subset of bgp's (same graph IRI), and the patterns of bgp still missing
// from it. Ties break on largest cardinality, then earliest insertion. If
// no subset exists, returns the zero BGP and bgp's own patterns.
func (c *Cache) FindSubset(bgp pattern.BGP) (subset pattern.BGP, missing []term.Triple) {
	c.mu.Lock()
	var best *entry
	for _, e := range c.entries {
		if !e.bgp.IsSubsetOf(bgp) {
			continue
		}
		if best == nil {
			best = e
			continue
		}
		if n, bn := len(e.bgp.Patterns), len(best.bgp.Patterns); n != bn {
			if n > bn {
				best = e
			}
			continue
		}
		if e.cardinality > best.cardinality {
			best = e
			continue
		}
		if e.cardinality == best.cardinality && e.insertSeq < best.insertSeq {
			best = e
		}
	}
	if best != nil {
		best.lastTouch = time.Now()
	}
	c.mu.Unlock()

	if best == nil {
		return pattern.BGP{}, bgp.Patterns
	}
	return best.bgp, best.bgp.Missing(bgp)
}

// Mappings returns the committed mappings for an already-resolved subset
// BGP (as returned by FindSubset), without re-checking in-flight writers.
func (c *Cache) Mappings(subset pattern.BGP) []mapping.Solution {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[subset.Canonical()]
	if !ok {
		return nil
	}
	return append([]mapping.Solution(nil), e.mappings...)
}
