package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestOfAndEmpty(t *testing.T) {
	ctx := context.Background()
	p := Of(42)
	v, ok, err := p.Next(ctx)
	if err != nil || !ok || v != 42 {
		t.Fatalf("Of(42).Next() = %v, %v, %v", v, ok, err)
	}
	_, ok, err = p.Next(ctx)
	if err != nil || ok {
		t.Fatalf("expected exhaustion after one element")
	}

	e := Empty[int]()
	_, ok, err = e.Next(ctx)
	if err != nil || ok {
		t.Fatal("expected Empty to yield no elements")
	}
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	got, err := Collect(ctx, From([]int{1, 2, 3}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("Collect = %v, want [1 2 3]", got)
	}
}

func TestMap(t *testing.T) {
	ctx := context.Background()
	doubled := Map(From([]int{1, 2, 3}), func(x int) (int, error) { return x * 2, nil })
	got, err := Collect(ctx, doubled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{2, 4, 6}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("got[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestMapPropagatesError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := Map(From([]int{1, 2}), func(x int) (int, error) {
		if x == 2 {
			return 0, boom
		}
		return x, nil
	})
	_, err := Collect(ctx, failing)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error to propagate, got %v", err)
	}
}

func TestFlatMap(t *testing.T) {
	ctx := context.Background()
	nested := FlatMap(From([]int{1, 2}), func(x int) Pipe[int] {
		return From([]int{x, x * 10})
	})
	got, err := Collect(ctx, nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 10, 2, 20}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("got[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestMergeInterleavesAllSources(t *testing.T) {
	ctx := context.Background()
	merged := Merge(From([]int{1, 2}), From([]int{3, 4, 5}))
	got, err := Collect(ctx, merged)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Merge produced %d elements, want 5", len(got))
	}
	seen := map[int]bool{}
	for _, v := range got {
		seen[v] = true
	}
	for _, want := range []int{1, 2, 3, 4, 5} {
		if !seen[want] {
			t.Errorf("Merge result missing %d", want)
		}
	}
}

func TestSkipAndLimit(t *testing.T) {
	ctx := context.Background()
	got, err := Collect(ctx, Limit(Skip(From([]int{1, 2, 3, 4, 5}), 1), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{2, 3}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestForEachCanStopEarly(t *testing.T) {
	ctx := context.Background()
	var seen []int
	err := ForEach(ctx, From([]int{1, 2, 3, 4}), func(x int) (bool, error) {
		seen = append(seen, x)
		return x < 2, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("ForEach visited %v, want exactly [1 2]", seen)
	}
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	batches, err := Collect(ctx, Batch(From([]int{1, 2, 3, 4, 5}), 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[2]) != 1 {
		t.Fatalf("final batch should hold the remainder, got %v", batches[2])
	}
}

func TestFromAsync(t *testing.T) {
	ctx := context.Background()
	items := []int{7, 8, 9}
	i := 0
	p := FromAsync(func(ctx context.Context) (int, bool, error) {
		if i >= len(items) {
			return 0, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	})
	got, err := Collect(ctx, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[1] != 8 {
		t.Fatalf("got %v, want %v", got, items)
	}
}
