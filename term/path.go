package term

import "fmt"

// PropertyPath is a SPARQL 1.1 property path expression used in the
// predicate position of a Triple. It is itself a Term so a PropertyPath can
// sit in the same field as a plain IRI predicate; TermType distinguishes it.
type PropertyPath interface {
	Term
	pathNode()
}

// PathPredicate is a plain IRI or variable used as a path's base case.
type PathPredicate struct {
	Value Term // IRI or Variable
}

func (p PathPredicate) TermType() string        { return "PathPredicate" }
func (p PathPredicate) String() string          { return p.Value.String() }
func (p PathPredicate) Equal(other Term) bool    { o, ok := other.(PathPredicate); return ok && o.Value.Equal(p.Value) }
func (PathPredicate) pathNode()                  {}

// PathInverse is ^path: traverse the path backwards.
type PathInverse struct{ Path PropertyPath }

func (p PathInverse) TermType() string { return "PathInverse" }
func (p PathInverse) String() string   { return "^" + p.Path.String() }
func (p PathInverse) Equal(other Term) bool {
	o, ok := other.(PathInverse)
	return ok && o.Path.Equal(p.Path)
}
func (PathInverse) pathNode() {}

// PathSequence is path1/path2.
type PathSequence struct{ Left, Right PropertyPath }

func (p PathSequence) TermType() string { return "PathSequence" }
func (p PathSequence) String() string   { return fmt.Sprintf("%s/%s", p.Left, p.Right) }
func (p PathSequence) Equal(other Term) bool {
	o, ok := other.(PathSequence)
	return ok && o.Left.Equal(p.Left) && o.Right.Equal(p.Right)
}
func (PathSequence) pathNode() {}

// PathAlternative is path1|path2.
type PathAlternative struct{ Left, Right PropertyPath }

func (p PathAlternative) TermType() string { return "PathAlternative" }
func (p PathAlternative) String() string   { return fmt.Sprintf("%s|%s", p.Left, p.Right) }
func (p PathAlternative) Equal(other Term) bool {
	o, ok := other.(PathAlternative)
	return ok && o.Left.Equal(p.Left) && o.Right.Equal(p.Right)
}
func (PathAlternative) pathNode() {}

// PathZeroOrMore is path*.
type PathZeroOrMore struct{ Path PropertyPath }

func (p PathZeroOrMore) TermType() string { return "PathZeroOrMore" }
func (p PathZeroOrMore) String() string   { return p.Path.String() + "*" }
func (p PathZeroOrMore) Equal(other Term) bool {
	o, ok := other.(PathZeroOrMore)
	return ok && o.Path.Equal(p.Path)
}
func (PathZeroOrMore) pathNode() {}

// PathOneOrMore is path+.
type PathOneOrMore struct{ Path PropertyPath }

func (p PathOneOrMore) TermType() string { return "PathOneOrMore" }
func (p PathOneOrMore) String() string   { return p.Path.String() + "+" }
func (p PathOneOrMore) Equal(other Term) bool {
	o, ok := other.(PathOneOrMore)
	return ok && o.Path.Equal(p.Path)
}
func (PathOneOrMore) pathNode() {}

// PathZeroOrOne is path?.
type PathZeroOrOne struct{ Path PropertyPath }

func (p PathZeroOrOne) TermType() string { return "PathZeroOrOne" }
func (p PathZeroOrOne) String() string   { return p.Path.String() + "?" }
func (p PathZeroOrOne) Equal(other Term) bool {
	o, ok := other.(PathZeroOrOne)
	return ok && o.Path.Equal(p.Path)
}
func (PathZeroOrOne) pathNode() {}

// PathNegatedPropertySet is !(iri1|iri2|...): matches any predicate not in
// the set (optionally inverted per-member via PathInverse wrapping).
type PathNegatedPropertySet struct {
	Members []PropertyPath // PathPredicate or PathInverse(PathPredicate)
}

func (p PathNegatedPropertySet) TermType() string { return "PathNegatedPropertySet" }
func (p PathNegatedPropertySet) String() string {
	s := "!("
	for i, m := range p.Members {
		if i > 0 {
			s += "|"
		}
		s += m.String()
	}
	return s + ")"
}
func (p PathNegatedPropertySet) Equal(other Term) bool {
	o, ok := other.(PathNegatedPropertySet)
	if !ok || len(o.Members) != len(p.Members) {
		return false
	}
	for i := range p.Members {
		if !o.Members[i].Equal(p.Members[i]) {
			return false
		}
	}
	return true
}
func (PathNegatedPropertySet) pathNode() {}
