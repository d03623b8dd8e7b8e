// Package pattern defines the Basic Graph Pattern shape shared by the BGP
// stage (C5) and the semantic cache (C8): an ordered list of triple
// patterns plus a target graph IRI.
package pattern

import (
	"sort"
	"strings"

	"github.com/minieraf/sparql-engine/term"
)

// BGP is a conjunctive list of triple patterns evaluated against one graph.
type BGP struct {
	Patterns []term.Triple
	Graph    term.Term // IRI of the target graph; nil means the default graph
}

// defaultGraphLabel is used as BGP.Graph's canonical form when Graph is
// nil (the default graph); an explicit IRI, even an empty one, uses its
// own canonical form instead.
const defaultGraphLabel = "\x00default"

func graphLabel(g term.Term) string {
	if g == nil {
		return defaultGraphLabel
	}
	return term.Canonical(g)
}

// tripleKey renders one triple pattern as a canonical string, independent
// of pattern order within the BGP.
func tripleKey(t term.Triple) string {
	pred := ""
	if pp, ok := t.Predicate.(term.PropertyPath); ok {
		pred = pp.String()
	} else if t.Predicate != nil {
		pred = term.Canonical(t.Predicate)
	}
	return term.Canonical(t.Subject) + "\x1f" + pred + "\x1f" + term.Canonical(t.Object)
}

// Canonical returns a key equal for any two BGPs with the same pattern set
// (regardless of order) and the same graph IRI — the equality spec.md
// section 4.5 requires of the cache key.
func (b BGP) Canonical() string {
	keys := make([]string, len(b.Patterns))
	for i, t := range b.Patterns {
		keys[i] = tripleKey(t)
	}
	sort.Strings(keys)
	return graphLabel(b.Graph) + "\x1e" + strings.Join(keys, "\x1e")
}

// PatternSet returns the BGP's patterns as a canonical-key set, used for
// subset comparisons.
func (b BGP) PatternSet() map[string]term.Triple {
	set := make(map[string]term.Triple, len(b.Patterns))
	for _, t := range b.Patterns {
		set[tripleKey(t)] = t
	}
	return set
}

// IsSubsetOf reports whether every pattern in b also appears in other and
// both target the same graph.
func (b BGP) IsSubsetOf(other BGP) bool {
	if graphLabel(b.Graph) != graphLabel(other.Graph) {
		return false
	}
	os := other.PatternSet()
	for _, t := range b.Patterns {
		if _, ok := os[tripleKey(t)]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the patterns of other that are not present in b (i.e.
// other.Patterns - b.Patterns), preserving other's order.
func (b BGP) Missing(other BGP) []term.Triple {
	bs := b.PatternSet()
	var missing []term.Triple
	for _, t := range other.Patterns {
		if _, ok := bs[tripleKey(t)]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// Symbols returns the distinct variables referenced across the BGP's
// patterns, in first-occurrence order.
func (b BGP) Symbols() []term.Variable {
	seen := make(map[term.Variable]bool)
	var out []term.Variable
	add := func(t term.Term) {
		if v, ok := t.(term.Variable); ok && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, t := range b.Patterns {
		add(t.Subject)
		if pp, ok := t.Predicate.(term.PropertyPath); !ok {
			add(t.Predicate)
		} else {
			_ = pp
		}
		add(t.Object)
	}
	return out
}
