// Package trace provides a low-overhead event annotation system for query
// execution: stages report phase timings and cardinalities through a
// Collector that is a no-op unless a Handler is registered.
package trace

import (
	"sync"
	"time"
)

// Event name constants, hierarchically namespaced.
const (
	QueryBegin    = "query/begin"
	QueryPlanned  = "query/planned"
	QueryComplete = "query/completed"

	StageBegin    = "stage/begin"
	StageComplete = "stage/completed"

	BGPEvaluated    = "bgp/evaluated"
	BoundJoinBatch  = "bgp/bound-join.batch"
	IndexJoinProbe  = "bgp/index-join.probe"
	PropertyPathRun = "path/evaluated"

	CacheHit      = "cache/hit"
	CacheMiss     = "cache/miss"
	CacheCommit   = "cache/commit"
	CacheDiscard  = "cache/staging-discarded"
	CacheEviction = "cache/evicted"

	ExpressionError = "expr/error"
)

// Event is a single annotation emitted during execution.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler consumes events as they are recorded.
type Handler func(Event)

// Collector accumulates events during one query's execution. A Collector
// with a nil Handler costs essentially nothing to use.
type Collector struct {
	enabled bool
	handler Handler
	mu      sync.Mutex
	events  []Event
}

// NewCollector returns a Collector. Passing a nil handler disables recording.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
		events:  make([]Event, 0, 64),
	}
}

// Add records an event and forwards it to the handler outside the lock.
func (c *Collector) Add(e Event) {
	if c == nil || !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.handler(e)
}

// Timing records an event whose Start is given and whose End/Latency are
// computed now.
func (c *Collector) Timing(name string, start time.Time, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data})
}

// Events returns a copy of all recorded events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Enabled reports whether this collector forwards to a handler.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}
