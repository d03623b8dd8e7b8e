// Package pipeline implements the process-wide lazy-sequence engine (C2):
// a minimal streaming abstraction that every algebra stage consumes and
// produces. It is a single-threaded, cooperative pull model — nothing in
// this package spawns goroutines; concurrency, where it exists (graph
// lookups, SERVICE calls), lives in the stages built on top of it.
package pipeline

import "context"

// Pipe is a lazy sequence of T. Next blocks until the next element is
// ready, returns io.EOF-like via the ok=false return, or returns an error
// that the consumer must treat as fatal for the remainder of the sequence.
// A Pipe is single-use: once exhausted (ok=false or err!=nil) further Next
// calls are not guaranteed to do anything useful.
type Pipe[T any] interface {
	Next(ctx context.Context) (value T, ok bool, err error)
	// Close releases resources the sequence holds (sub-iterators, staged
	// cache buffers, SERVICE subscriptions). Idempotent.
	Close()
}

// sliceSource replays a fixed slice; used by Of/From/Empty.
type sliceSource[T any] struct {
	items []T
	pos   int
}

func (s *sliceSource[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if s.pos >= len(s.items) {
		return zero, false, nil
	}
	v := s.items[s.pos]
	s.pos++
	return v, true, nil
}
func (s *sliceSource[T]) Close() {}

// Of returns a one-element sequence.
func Of[T any](x T) Pipe[T] { return &sliceSource[T]{items: []T{x}} }

// Empty returns a sequence with no elements.
func Empty[T any]() Pipe[T] { return &sliceSource[T]{} }

// From adapts a pre-materialized slice into a Pipe.
func From[T any](items []T) Pipe[T] { return &sliceSource[T]{items: items} }

// Producer is a pull function used by FromAsync: it returns the next
// value, or ok=false when exhausted, or an error.
type Producer[T any] func(ctx context.Context) (T, bool, error)

type asyncSource[T any] struct {
	produce Producer[T]
	done    bool
}

func (s *asyncSource[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if s.done {
		return zero, false, nil
	}
	v, ok, err := s.produce(ctx)
	if err != nil || !ok {
		s.done = true
	}
	return v, ok, err
}
func (s *asyncSource[T]) Close() {}

// FromAsync wraps a producer function — e.g. a graph backend's cursor —
// as a Pipe, honoring suspension points (the producer may itself block on
// I/O) per spec.md section 5.
func FromAsync[T any](produce Producer[T]) Pipe[T] {
	return &asyncSource[T]{produce: produce}
}

// mapPipe applies f to each element, lazily.
type mapPipe[T, U any] struct {
	src Pipe[T]
	f   func(T) (U, error)
}

func (m *mapPipe[T, U]) Next(ctx context.Context) (U, bool, error) {
	var zero U
	v, ok, err := m.src.Next(ctx)
	if err != nil || !ok {
		return zero, ok, err
	}
	out, ferr := m.f(v)
	if ferr != nil {
		return zero, false, ferr
	}
	return out, true, nil
}
func (m *mapPipe[T, U]) Close() { m.src.Close() }

// Map transforms each element of s with f, propagating any error f returns.
func Map[T, U any](s Pipe[T], f func(T) (U, error)) Pipe[U] {
	return &mapPipe[T, U]{src: s, f: f}
}

// flatMapPipe expands each source element into a sub-sequence and flattens.
type flatMapPipe[T, U any] struct {
	src  Pipe[T]
	f    func(T) Pipe[U]
	cur  Pipe[U]
}

func (m *flatMapPipe[T, U]) Next(ctx context.Context) (U, bool, error) {
	var zero U
	for {
		if m.cur != nil {
			v, ok, err := m.cur.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return v, true, nil
			}
			m.cur.Close()
			m.cur = nil
		}
		t, ok, err := m.src.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		m.cur = m.f(t)
	}
}
func (m *flatMapPipe[T, U]) Close() {
	if m.cur != nil {
		m.cur.Close()
	}
	m.src.Close()
}

// FlatMap expands each element of s into a sub-sequence via f and
// concatenates them in source order — the join workhorse for BGP
// evaluation and bound join demultiplexing.
func FlatMap[T, U any](s Pipe[T], f func(T) Pipe[U]) Pipe[U] {
	return &flatMapPipe[T, U]{src: s, f: f}
}

// mergePipe interleaves N sources, preserving each source's own order but
// free to interleave across sources (spec.md section 5's MERGE contract).
// This implementation drains sources round-robin rather than by readiness,
// since Pipe has no select-style readiness signal; that is a conforming
// interleaving because Next on any source already blocks until ready.
type mergePipe[T any] struct {
	sources []Pipe[T]
	done    []bool
	idx     int
	live    int
}

func (m *mergePipe[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for m.live > 0 {
		i := m.idx
		m.idx = (m.idx + 1) % len(m.sources)
		if m.done[i] {
			continue
		}
		v, ok, err := m.sources[i].Next(ctx)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			m.done[i] = true
			m.live--
			continue
		}
		return v, true, nil
	}
	return zero, false, nil
}
func (m *mergePipe[T]) Close() {
	for _, s := range m.sources {
		s.Close()
	}
}

// Merge interleaves multiple sequences.
func Merge[T any](sources ...Pipe[T]) Pipe[T] {
	return &mergePipe[T]{sources: sources, done: make([]bool, len(sources)), live: len(sources)}
}

// skipPipe drops the first n elements.
type skipPipe[T any] struct {
	src       Pipe[T]
	remaining int
}

func (s *skipPipe[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for s.remaining > 0 {
		_, ok, err := s.src.Next(ctx)
		if err != nil || !ok {
			return zero, ok, err
		}
		s.remaining--
	}
	return s.src.Next(ctx)
}
func (s *skipPipe[T]) Close() { s.src.Close() }

// Skip drops the first n elements of s.
func Skip[T any](s Pipe[T], n int) Pipe[T] {
	return &skipPipe[T]{src: s, remaining: n}
}

// limitPipe caps the sequence at n elements.
type limitPipe[T any] struct {
	src       Pipe[T]
	remaining int
}

func (l *limitPipe[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if l.remaining <= 0 {
		return zero, false, nil
	}
	v, ok, err := l.src.Next(ctx)
	if err != nil || !ok {
		return zero, ok, err
	}
	l.remaining--
	return v, true, nil
}
func (l *limitPipe[T]) Close() { l.src.Close() }

// Limit caps s at the first n elements, then signals exhaustion without
// pulling further upstream elements.
func Limit[T any](s Pipe[T], n int) Pipe[T] {
	return &limitPipe[T]{src: s, remaining: n}
}

// ForEach pulls every element of s, invoking f, until exhaustion, an error,
// or f returning false (requesting cancellation). Close is always called.
func ForEach[T any](ctx context.Context, s Pipe[T], f func(T) (cont bool, err error)) error {
	defer s.Close()
	for {
		v, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		cont, ferr := f(v)
		if ferr != nil {
			return ferr
		}
		if !cont {
			return nil
		}
	}
}

// batchPipe groups source elements into fixed-size slices (the final
// batch may be smaller). Used by the bound-join batching pass.
type batchPipe[T any] struct {
	src  Pipe[T]
	size int
	done bool
}

func (b *batchPipe[T]) Next(ctx context.Context) ([]T, bool, error) {
	if b.done {
		return nil, false, nil
	}
	batch := make([]T, 0, b.size)
	for len(batch) < b.size {
		v, ok, err := b.src.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			b.done = true
			break
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	return batch, true, nil
}
func (b *batchPipe[T]) Close() { b.src.Close() }

// Batch groups s into slices of up to n elements.
func Batch[T any](s Pipe[T], n int) Pipe[[]T] {
	return &batchPipe[T]{src: s, size: n}
}

// Collect drains s into a slice. Use sparingly: ORDER BY and aggregation
// are the only stages permitted to fully buffer per spec.md section 4.1.
func Collect[T any](ctx context.Context, s Pipe[T]) ([]T, error) {
	defer s.Close()
	var out []T
	for {
		v, ok, err := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}
