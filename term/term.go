// Package term defines the RDF term model shared by every stage of the
// execution core: IRIs, blank nodes, literals, variables, the synthetic
// Unbound sentinel, and the Quad/Triple shapes built from them.
package term

import "fmt"

// Term is any RDF term a triple position or a solution mapping value can
// hold. Variable is also a Term so that triple-pattern elements share one
// type, but a bound mapping value must never itself be a Variable (see
// mapping.Solution).
type Term interface {
	// TermType identifies the concrete kind for type switches and
	// algebra-tree decoding.
	TermType() string
	// String renders the term in a debug-friendly, not necessarily
	// round-trippable form.
	String() string
	// Equal reports structural equality.
	Equal(other Term) bool
}

// IRI is a named node.
type IRI struct {
	Value string
}

func (i IRI) TermType() string { return "NamedNode" }
func (i IRI) String() string   { return i.Value }
func (i IRI) Equal(other Term) bool {
	o, ok := other.(IRI)
	return ok && o.Value == i.Value
}

// BlankNode is a locally-scoped anonymous node.
type BlankNode struct {
	ID string
}

func (b BlankNode) TermType() string { return "BlankNode" }
func (b BlankNode) String() string   { return "_:" + b.ID }
func (b BlankNode) Equal(other Term) bool {
	o, ok := other.(BlankNode)
	return ok && o.ID == b.ID
}

// Literal is a lexical form with an associated datatype IRI and an optional
// language tag (mutually exclusive with a non-default datatype in valid
// RDF, but this model doesn't enforce that — callers producing literals are
// responsible for well-formedness).
type Literal struct {
	Lexical  string
	Datatype IRI
	Language string
}

// Common XSD datatypes used by built-ins and aggregates.
var (
	XSDString  = IRI{Value: "http://www.w3.org/2001/XMLSchema#string"}
	XSDInteger = IRI{Value: "http://www.w3.org/2001/XMLSchema#integer"}
	XSDFloat   = IRI{Value: "http://www.w3.org/2001/XMLSchema#float"}
	XSDDouble  = IRI{Value: "http://www.w3.org/2001/XMLSchema#double"}
	XSDBoolean = IRI{Value: "http://www.w3.org/2001/XMLSchema#boolean"}
	RDFLangStr = IRI{Value: "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"}
)

// NewPlainLiteral builds a simple xsd:string literal.
func NewPlainLiteral(lex string) Literal {
	return Literal{Lexical: lex, Datatype: XSDString}
}

// NewLangLiteral builds a language-tagged literal.
func NewLangLiteral(lex, lang string) Literal {
	return Literal{Lexical: lex, Datatype: RDFLangStr, Language: lang}
}

// NewTypedLiteral builds a literal with an explicit datatype.
func NewTypedLiteral(lex string, dt IRI) Literal {
	return Literal{Lexical: lex, Datatype: dt}
}

func (l Literal) TermType() string { return "Literal" }
func (l Literal) String() string {
	if l.Language != "" {
		return fmt.Sprintf("%q@%s", l.Lexical, l.Language)
	}
	if l.Datatype == XSDString || l.Datatype.Value == "" {
		return fmt.Sprintf("%q", l.Lexical)
	}
	return fmt.Sprintf("%q^^%s", l.Lexical, l.Datatype.Value)
}
func (l Literal) Equal(other Term) bool {
	o, ok := other.(Literal)
	return ok && o.Lexical == l.Lexical && o.Datatype == l.Datatype && o.Language == l.Language
}

// Variable is a query variable, named without its leading '?'/'$' marker.
type Variable struct {
	Name string
}

func (v Variable) TermType() string { return "Variable" }
func (v Variable) String() string   { return "?" + v.Name }
func (v Variable) Equal(other Term) bool {
	o, ok := other.(Variable)
	return ok && o.Name == v.Name
}

// unboundTerm is the sentinel bound to a BIND target when its expression
// fails to evaluate (spec.md section 4.4's "error-to-unbound rule").
type unboundTerm struct{}

func (unboundTerm) TermType() string      { return "Unbound" }
func (unboundTerm) String() string        { return "UNBOUND" }
func (unboundTerm) Equal(other Term) bool { _, ok := other.(unboundTerm); return ok }

// Unbound is the single shared Unbound sentinel value.
var Unbound Term = unboundTerm{}

// IsUnbound reports whether t is the Unbound sentinel.
func IsUnbound(t Term) bool {
	_, ok := t.(unboundTerm)
	return ok
}

// Quad is a 4-tuple of terms (subject, predicate, object, graph).
type Quad struct {
	S, P, O, G Term
}

// Triple is a 3-tuple; Predicate may be a concrete Term or a PropertyPath.
type Triple struct {
	Subject   Term
	Predicate Term // either a Term (simple predicate) or a PropertyPath
	Object    Term
}

func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s", t.Subject, predicateString(t.Predicate), t.Object)
}

func predicateString(p Term) string {
	if pp, ok := p.(PropertyPath); ok {
		return pp.String()
	}
	return p.String()
}
