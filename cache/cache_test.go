package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minieraf/sparql-engine/mapping"
	"github.com/minieraf/sparql-engine/pattern"
	"github.com/minieraf/sparql-engine/term"
)

func ex(local string) term.IRI { return term.IRI{Value: "http://example.org/" + local} }

func TestUpdateCommitGet(t *testing.T) {
	c := New(0, 0)
	vs, vname := term.Variable{Name: "s"}, term.Variable{Name: "name"}
	bgp := pattern.BGP{Patterns: []term.Triple{{Subject: vs, Predicate: ex("name"), Object: vname}}}

	c.Update(bgp, mapping.New().With(vs, ex("alice")).With(vname, term.NewPlainLiteral("Alice")), "w1")
	c.Commit(bgp, "w1")

	require.True(t, c.Has(bgp), "expected a committed entry after Commit")
	rows, ok := c.Get(bgp)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

func TestLateCommitterDiscarded(t *testing.T) {
	c := New(0, 0)
	vs := term.Variable{Name: "s"}
	bgp := pattern.BGP{Patterns: []term.Triple{{Subject: vs, Predicate: ex("p"), Object: ex("o")}}}

	c.Update(bgp, mapping.New().With(vs, ex("a")), "first")
	c.Commit(bgp, "first")

	// A second writer racing on the same key commits after the first; its
	// buffer must never overwrite the already-committed entry.
	c.Update(bgp, mapping.New().With(vs, ex("b")), "second")
	c.Commit(bgp, "second")

	rows, ok := c.Get(bgp)
	require.True(t, ok)
	require.Len(t, rows, 1, "expected the first committer's single row to survive")
	got, _ := rows[0].Get(vs)
	assert.True(t, got.Equal(ex("a")), "expected the first committer's mapping to win, got %v", got)
}

func TestFindSubset(t *testing.T) {
	c := New(0, 0)
	vs, vname, vage := term.Variable{Name: "s"}, term.Variable{Name: "name"}, term.Variable{Name: "age"}
	small := pattern.BGP{Patterns: []term.Triple{{Subject: vs, Predicate: ex("name"), Object: vname}}}
	c.Update(small, mapping.New().With(vs, ex("a")).With(vname, term.NewPlainLiteral("A")), "w")
	c.Commit(small, "w")

	big := pattern.BGP{Patterns: []term.Triple{
		{Subject: vs, Predicate: ex("name"), Object: vname},
		{Subject: vs, Predicate: ex("age"), Object: vage},
	}}
	subset, missing := c.FindSubset(big)
	assert.Equal(t, small.Canonical(), subset.Canonical(), "expected FindSubset to return the cached small BGP as the subset")
	assert.Len(t, missing, 1, "expected exactly one missing pattern (the age triple)")
}

func TestFindSubsetNoneFound(t *testing.T) {
	c := New(0, 0)
	vs := term.Variable{Name: "s"}
	bgp := pattern.BGP{Patterns: []term.Triple{{Subject: vs, Predicate: ex("p"), Object: ex("o")}}}
	subset, missing := c.FindSubset(bgp)
	assert.Equal(t, (pattern.BGP{}).Canonical(), subset.Canonical(), "expected an empty subset when nothing is cached")
	assert.Len(t, missing, 1, "expected the whole BGP to be reported missing")
}

func TestDiscardWriterDropsUncommittedBuffer(t *testing.T) {
	c := New(0, 0)
	vs := term.Variable{Name: "s"}
	bgp := pattern.BGP{Patterns: []term.Triple{{Subject: vs, Predicate: ex("p"), Object: ex("o")}}}
	c.Update(bgp, mapping.New().With(vs, ex("a")), "w1")
	c.DiscardWriter(bgp, "w1")
	c.Commit(bgp, "w1")

	rows, ok := c.Get(bgp)
	require.True(t, ok, "expected a committed entry even with an empty discarded buffer")
	assert.Empty(t, rows, "expected zero rows after the writer's buffer was discarded")
}
