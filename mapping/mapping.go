// Package mapping implements the Solution Mapping (µ) of spec.md section 3:
// a finite partial function from Variable to Term, plus set algebra over
// mappings and a property bag used to smuggle aggregate evaluator state
// (see spec.md section 9's note on __aggregate) between stages without
// extending the algebra tree itself.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/minieraf/sparql-engine/term"
)

// AggregateBagKey is the property-bag key used to pass grouped per-variable
// term lists to the expression evaluator's aggregate nodes.
const AggregateBagKey = "__aggregate"

// Solution is an immutable-ish binding from Variable to Term. Callers that
// need to mutate a Solution must Clone it first; operators in this codebase
// always clone before extending a mapping they did not just construct.
type Solution struct {
	bindings map[term.Variable]term.Term
	bag      map[string]interface{}
}

// New returns an empty solution mapping.
func New() Solution {
	return Solution{bindings: make(map[term.Variable]term.Term)}
}

// FromMap builds a Solution from a plain map, taking ownership of it.
func FromMap(m map[term.Variable]term.Term) Solution {
	if m == nil {
		m = make(map[term.Variable]term.Term)
	}
	return Solution{bindings: m}
}

// Clone returns a deep-enough copy safe to mutate independently.
func (s Solution) Clone() Solution {
	nb := make(map[term.Variable]term.Term, len(s.bindings))
	for k, v := range s.bindings {
		nb[k] = v
	}
	var bag map[string]interface{}
	if s.bag != nil {
		bag = make(map[string]interface{}, len(s.bag))
		for k, v := range s.bag {
			bag[k] = v
		}
	}
	return Solution{bindings: nb, bag: bag}
}

// Get returns the term bound to v and whether v is in the domain.
func (s Solution) Get(v term.Variable) (term.Term, bool) {
	t, ok := s.bindings[v]
	return t, ok
}

// With returns a clone with v bound to t.
func (s Solution) With(v term.Variable, t term.Term) Solution {
	c := s.Clone()
	c.bindings[v] = t
	return c
}

// Domain returns the mapping's variables, in sorted order for determinism.
func (s Solution) Domain() []term.Variable {
	vars := make([]term.Variable, 0, len(s.bindings))
	for v := range s.bindings {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}

// Len returns the number of bound variables.
func (s Solution) Len() int { return len(s.bindings) }

// Bag returns the property-bag value for key, or (nil, false).
func (s Solution) Bag(key string) (interface{}, bool) {
	if s.bag == nil {
		return nil, false
	}
	v, ok := s.bag[key]
	return v, ok
}

// WithBag returns a clone with key set to value in the property bag.
func (s Solution) WithBag(key string, value interface{}) Solution {
	c := s.Clone()
	if c.bag == nil {
		c.bag = make(map[string]interface{})
	}
	c.bag[key] = value
	return c
}

// Compatible reports whether s and other agree on every variable shared
// between their domains.
func (s Solution) Compatible(other Solution) bool {
	for v, t := range s.bindings {
		if ot, ok := other.bindings[v]; ok && !term.SameTerm(t, ot) {
			return false
		}
	}
	return true
}

// Union merges two compatible mappings; on conflicting keys the right
// operand (other) overwrites, matching spec.md section 3's union(µ1, µ2).
func Union(s, other Solution) Solution {
	merged := make(map[term.Variable]term.Term, len(s.bindings)+len(other.bindings))
	for k, v := range s.bindings {
		merged[k] = v
	}
	for k, v := range other.bindings {
		merged[k] = v
	}
	return Solution{bindings: merged}
}

// Equals reports whether s and other have the same domain and pointwise
// equal terms.
func Equals(s, other Solution) bool {
	if len(s.bindings) != len(other.bindings) {
		return false
	}
	for k, v := range s.bindings {
		ov, ok := other.bindings[k]
		if !ok || !term.SameTerm(v, ov) {
			return false
		}
	}
	return true
}

// IsSubset reports whether every binding in s also appears, identically, in
// other.
func IsSubset(s, other Solution) bool {
	for k, v := range s.bindings {
		ov, ok := other.bindings[k]
		if !ok || !term.SameTerm(v, ov) {
			return false
		}
	}
	return true
}

// Intersection returns the bindings common to both mappings (key present in
// both with equal value).
func Intersection(s, other Solution) Solution {
	out := New()
	for k, v := range s.bindings {
		if ov, ok := other.bindings[k]; ok && term.SameTerm(v, ov) {
			out.bindings[k] = v
		}
	}
	return out
}

// Difference returns the bindings of s whose variable is either absent
// from other or bound to a different term there.
func Difference(s, other Solution) Solution {
	out := New()
	for k, v := range s.bindings {
		if ov, ok := other.bindings[k]; !ok || !term.SameTerm(v, ov) {
			out.bindings[k] = v
		}
	}
	return out
}

// Bound substitutes any variable in t that is in the domain of s with its
// bound term, per spec.md section 3's bound(t).
func Bound(s Solution, t term.Triple) term.Triple {
	subst := func(x term.Term) term.Term {
		if v, ok := x.(term.Variable); ok {
			if bound, ok := s.Get(v); ok {
				return bound
			}
		}
		return x
	}
	return term.Triple{
		Subject:   subst(t.Subject),
		Predicate: t.Predicate, // property paths are never substituted wholesale
		Object:    subst(t.Object),
	}
}

// Canonical renders the mapping as a sorted, deterministic string — used as
// a dedup key for DISTINCT and as the GROUP BY bucket key.
func (s Solution) Canonical() string {
	vars := s.Domain()
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		t := s.bindings[v]
		parts = append(parts, fmt.Sprintf("%s=%s", v.Name, term.Canonical(t)))
	}
	return strings.Join(parts, "\x1e")
}

// Project returns a clone restricted to the given variables.
func (s Solution) Project(vars []term.Variable) Solution {
	out := New()
	for _, v := range vars {
		if t, ok := s.bindings[v]; ok {
			out.bindings[v] = t
		}
	}
	return out
}

// Without returns a clone with the given variables removed — used to
// project synthetic blank-node variables out of final bindings (spec.md
// section 4.3).
func (s Solution) Without(vars []term.Variable) Solution {
	drop := make(map[term.Variable]bool, len(vars))
	for _, v := range vars {
		drop[v] = true
	}
	out := New()
	for k, v := range s.bindings {
		if !drop[k] {
			out.bindings[k] = v
		}
	}
	out.bag = s.bag
	return out
}

func (s Solution) String() string {
	vars := s.Domain()
	parts := make([]string, 0, len(vars))
	for _, v := range vars {
		parts = append(parts, fmt.Sprintf("%s: %s", v, s.bindings[v]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
