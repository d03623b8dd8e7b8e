package main

import (
	"context"
	"sort"
	"strconv"

	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/term"
)

const ns = "http://example.org/"

func ex(local string) term.IRI { return term.IRI{Value: ns + local} }

func strLit(s string) term.Literal { return term.NewPlainLiteral(s) }

func intLit(n int) term.Literal { return term.NewTypedLiteral(strconv.Itoa(n), term.XSDInteger) }

// seedDemoData loads a small social-graph fixture: four people, their
// ages, optional cities, and a knows/friend-of-friend chain.
func seedDemoData(ctx context.Context, g graph.Graph) {
	people := []struct {
		iri  term.IRI
		name string
		age  int
		city string
	}{
		{ex("alice"), "Alice", 30, "New York"},
		{ex("bob"), "Bob", 25, "Boston"},
		{ex("charlie"), "Charlie", 35, ""},
		{ex("dave"), "Dave", 28, "Boston"},
	}
	for _, p := range people {
		_ = g.Insert(ctx, term.Triple{Subject: p.iri, Predicate: ex("name"), Object: strLit(p.name)})
		_ = g.Insert(ctx, term.Triple{Subject: p.iri, Predicate: ex("age"), Object: intLit(p.age)})
		if p.city != "" {
			_ = g.Insert(ctx, term.Triple{Subject: p.iri, Predicate: ex("city"), Object: strLit(p.city)})
		}
	}

	knows := [][2]string{
		{"alice", "bob"},
		{"alice", "charlie"},
		{"bob", "dave"},
	}
	for _, k := range knows {
		_ = g.Insert(ctx, term.Triple{Subject: ex(k[0]), Predicate: ex("knows"), Object: ex(k[1])})
	}
}

// scenarios maps a name to a thunk building that scenario's algebra.Query,
// so every run is handed a freshly built tree.
var scenarios = map[string]func() *algebra.Query{
	"people":             scenarioPeople,
	"adults_over_28":     scenarioAdultsOver28,
	"optional_city":      scenarioOptionalCity,
	"ask_knows":          scenarioAskKnows,
	"friends_of_friends": scenarioFriendsOfFriends,
	"group_by_city":      scenarioGroupByCity,
	"construct_friends":  scenarioConstructFriends,
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var (
	vs    = term.Variable{Name: "s"}
	vName = term.Variable{Name: "name"}
	vAge  = term.Variable{Name: "age"}
	vCity = term.Variable{Name: "city"}
	vO    = term.Variable{Name: "o"}
)

func scenarioPeople() *algebra.Query {
	return &algebra.Query{
		Type: algebra.Select,
		Variables: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vs},
			{Kind: algebra.ExprVariable, Variable: vName},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: vs, Predicate: ex("name"), Object: vName},
			}},
		},
	}
}

func scenarioAdultsOver28() *algebra.Query {
	return &algebra.Query{
		Type: algebra.Select,
		Variables: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vName},
			{Kind: algebra.ExprVariable, Variable: vAge},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: vs, Predicate: ex("name"), Object: vName},
				{Subject: vs, Predicate: ex("age"), Object: vAge},
			}},
			{Type: algebra.GroupFilter, Expr: algebra.Expr{
				Kind:     algebra.ExprOperation,
				Operator: ">",
				Args: []algebra.Expr{
					{Kind: algebra.ExprVariable, Variable: vAge},
					{Kind: algebra.ExprTerm, Term: intLit(28)},
				},
			}},
		},
		OrderBy: []algebra.OrderTerm{
			{Expr: algebra.Expr{Kind: algebra.ExprVariable, Variable: vAge}, Descending: true},
		},
	}
}

func scenarioOptionalCity() *algebra.Query {
	return &algebra.Query{
		Type: algebra.Select,
		Variables: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vName},
			{Kind: algebra.ExprVariable, Variable: vCity},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: vs, Predicate: ex("name"), Object: vName},
			}},
			{Type: algebra.GroupOptional, Patterns: []algebra.Group{
				{Type: algebra.GroupBGP, Triples: []term.Triple{
					{Subject: vs, Predicate: ex("city"), Object: vCity},
				}},
			}},
		},
	}
}

func scenarioAskKnows() *algebra.Query {
	return &algebra.Query{
		Type: algebra.Ask,
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: ex("alice"), Predicate: ex("knows"), Object: ex("bob")},
			}},
		},
	}
}

// scenarioFriendsOfFriends walks ex:knows+ from alice, exercising the
// property-path stage's transitive closure evaluation.
func scenarioFriendsOfFriends() *algebra.Query {
	path := term.PathOneOrMore{Path: term.PathPredicate{Value: ex("knows")}}
	return &algebra.Query{
		Type: algebra.Select,
		Variables: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vO},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: ex("alice"), Predicate: path, Object: vO},
			}},
		},
		Distinct: true,
	}
}

func scenarioGroupByCity() *algebra.Query {
	return &algebra.Query{
		Type: algebra.Select,
		Variables: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vCity},
			{
				Kind:      algebra.ExprAggregate,
				Aggregate: "COUNT",
				Args:      []algebra.Expr{{Kind: algebra.ExprVariable, Variable: vs}},
				HasAlias:  true,
				Alias:     term.Variable{Name: "n"},
			},
		},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: vs, Predicate: ex("city"), Object: vCity},
			}},
		},
		GroupBy: []algebra.Expr{
			{Kind: algebra.ExprVariable, Variable: vCity},
		},
	}
}

func scenarioConstructFriends() *algebra.Query {
	return &algebra.Query{
		Type:     algebra.Construct,
		Template: []term.Triple{{Subject: vs, Predicate: ex("friendOf"), Object: vO}},
		Where: []algebra.Group{
			{Type: algebra.GroupBGP, Triples: []term.Triple{
				{Subject: vs, Predicate: ex("knows"), Object: vO},
			}},
		},
	}
}
