package term

import "testing"

func TestLiteralString(t *testing.T) {
	cases := []struct {
		lit  Literal
		want string
	}{
		{NewPlainLiteral("hello"), `"hello"`},
		{NewLangLiteral("bonjour", "fr"), `"bonjour"@fr`},
		{NewTypedLiteral("42", XSDInteger), `"42"^^http://www.w3.org/2001/XMLSchema#integer`},
	}
	for _, c := range cases {
		if got := c.lit.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestIRIEqual(t *testing.T) {
	a := IRI{Value: "http://example.org/a"}
	b := IRI{Value: "http://example.org/a"}
	c := IRI{Value: "http://example.org/b"}
	if !a.Equal(b) {
		t.Error("expected equal IRIs to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected different IRIs to compare unequal")
	}
	if a.Equal(Variable{Name: "a"}) {
		t.Error("expected IRI not to equal a Variable with the same textual content")
	}
}

func TestUnbound(t *testing.T) {
	if !IsUnbound(Unbound) {
		t.Error("Unbound must report IsUnbound")
	}
	if IsUnbound(IRI{Value: "http://example.org/a"}) {
		t.Error("a concrete IRI must not report IsUnbound")
	}
}

func TestTripleString(t *testing.T) {
	tr := Triple{
		Subject:   IRI{Value: "http://example.org/alice"},
		Predicate: IRI{Value: "http://example.org/knows"},
		Object:    IRI{Value: "http://example.org/bob"},
	}
	want := "http://example.org/alice http://example.org/knows http://example.org/bob"
	if got := tr.String(); got != want {
		t.Errorf("Triple.String() = %q, want %q", got, want)
	}
}

func TestTriplePredicateStringUsesPath(t *testing.T) {
	tr := Triple{
		Subject:   Variable{Name: "s"},
		Predicate: PathOneOrMore{Path: PathPredicate{Value: IRI{Value: "http://example.org/knows"}}},
		Object:    Variable{Name: "o"},
	}
	if got := tr.String(); got == "" {
		t.Error("expected a non-empty rendering of a property-path predicate")
	}
}
