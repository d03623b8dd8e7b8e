package exec

import (
	"strconv"
	"strings"

	"github.com/minieraf/sparql-engine/graph"
	"github.com/minieraf/sparql-engine/sparqlerr"
	"github.com/minieraf/sparql-engine/term"
)

// Reserved namespaces for magic triples (spec.md section 6). A real
// deployment would let these be configured; fixing them here keeps the
// BGP stage's extraction pass simple and matches how the source engine
// hardcodes its own magic-predicate namespace.
const (
	HintNS   = "https://sparql-engine.invalid/hints#"
	SearchNS = "https://sparql-engine.invalid/search#"
)

func isHintTriple(t term.Triple) (name string, ok bool) {
	p, isIRI := t.Predicate.(term.IRI)
	if !isIRI || !strings.HasPrefix(p.Value, HintNS) {
		return "", false
	}
	return strings.TrimPrefix(p.Value, HintNS), true
}

func isSearchTriple(t term.Triple) (name string, ok bool) {
	p, isIRI := t.Predicate.(term.IRI)
	if !isIRI || !strings.HasPrefix(p.Value, SearchNS) {
		return "", false
	}
	return strings.TrimPrefix(p.Value, SearchNS), true
}

// extractHints pulls query-hint magic triples out of patterns, returning
// the remaining patterns and the extracted name->value hints.
func extractHints(patterns []term.Triple) ([]term.Triple, map[string]term.Term) {
	hints := make(map[string]term.Term)
	var rest []term.Triple
	for _, p := range patterns {
		if name, ok := isHintTriple(p); ok {
			hints[name] = p.Object
			continue
		}
		rest = append(rest, p)
	}
	return rest, hints
}

// searchGroup accumulates one FTS query's magic triples, keyed by their
// shared subject variable; the real triple pattern it augments is the
// first classic pattern whose subject is that same variable.
type searchGroup struct {
	pattern       term.Triple
	variable      term.Variable
	hasPattern    bool
	keywords      []string
	matchAllTerms bool
	minRelevance  *float64
	maxRelevance  *float64
	minRank       *int
	maxRank       *int
	relevanceVar  *term.Variable
	rankVar       *term.Variable
}

// extractSearch pulls full-text-search magic triples out of patterns,
// grouping them by subject variable and returning the remaining classic
// patterns plus the assembled FTSQuery list.
func extractSearch(patterns []term.Triple) ([]term.Triple, []graph.FTSQuery, error) {
	groups := make(map[string]*searchGroup)
	order := []string{}
	var rest []term.Triple

	for _, p := range patterns {
		name, ok := isSearchTriple(p)
		if !ok {
			rest = append(rest, p)
			continue
		}
		subj, ok := p.Subject.(term.Variable)
		if !ok {
			return nil, nil, sparqlerr.UnsupportedPattern("search magic triple subject must be a variable")
		}
		key := subj.Name
		g, exists := groups[key]
		if !exists {
			g = &searchGroup{variable: subj}
			groups[key] = g
			order = append(order, key)
		}
		if err := applySearchField(g, name, p.Object); err != nil {
			return nil, nil, err
		}
	}

	// Associate each search group with the real triple pattern sharing its
	// subject variable (search queries always augment one classic pattern).
	for i, p := range rest {
		if v, ok := p.Subject.(term.Variable); ok {
			if g, exists := groups[v.Name]; exists && !g.hasPattern {
				g.pattern = rest[i]
				g.hasPattern = true
			}
		}
	}

	var queries []graph.FTSQuery
	for _, key := range order {
		g := groups[key]
		if !g.hasPattern {
			return nil, nil, sparqlerr.UnsupportedPattern("search magic triples for ?%s have no matching triple pattern", key)
		}
		queries = append(queries, graph.FTSQuery{
			Pattern:       g.pattern,
			Variable:      g.variable,
			Keywords:      g.keywords,
			MatchAllTerms: g.matchAllTerms,
			MinRelevance:  g.minRelevance,
			MaxRelevance:  g.maxRelevance,
			MinRank:       g.minRank,
			MaxRank:       g.maxRank,
			RelevanceVar:  g.relevanceVar,
			RankVar:       g.rankVar,
		})
	}
	return rest, queries, nil
}

func applySearchField(g *searchGroup, name string, obj term.Term) error {
	switch name {
	case "search":
		lit, ok := obj.(term.Literal)
		if !ok {
			return sparqlerr.UnsupportedPattern("search: operand must be a literal")
		}
		g.keywords = strings.Fields(lit.Lexical)
	case "matchAllTerms":
		lit, ok := obj.(term.Literal)
		if !ok || (lit.Lexical != "true" && lit.Lexical != "false") {
			return sparqlerr.UnsupportedPattern("matchAllTerms: operand must be a boolean literal")
		}
		g.matchAllTerms = lit.Lexical == "true"
	case "minRelevance":
		f, err := parseFloatObj(obj)
		if err != nil {
			return sparqlerr.UnsupportedPattern("minRelevance: %v", err)
		}
		g.minRelevance = &f
	case "maxRelevance":
		f, err := parseFloatObj(obj)
		if err != nil {
			return sparqlerr.UnsupportedPattern("maxRelevance: %v", err)
		}
		g.maxRelevance = &f
	case "minRank":
		n, err := parseNonNegIntObj(obj)
		if err != nil {
			return sparqlerr.UnsupportedPattern("minRank: %v", err)
		}
		g.minRank = &n
	case "maxRank":
		n, err := parseNonNegIntObj(obj)
		if err != nil {
			return sparqlerr.UnsupportedPattern("maxRank: %v", err)
		}
		g.maxRank = &n
	case "relevance":
		v, ok := obj.(term.Variable)
		if !ok {
			return sparqlerr.UnsupportedPattern("relevance: operand must be a variable")
		}
		g.relevanceVar = &v
	case "rank":
		v, ok := obj.(term.Variable)
		if !ok {
			return sparqlerr.UnsupportedPattern("rank: operand must be a variable")
		}
		g.rankVar = &v
	default:
		return sparqlerr.UnsupportedPattern("unknown search magic predicate: %s", name)
	}
	if g.minRelevance != nil && g.maxRelevance != nil && *g.minRelevance > *g.maxRelevance {
		return sparqlerr.UnsupportedPattern("minRelevance must not exceed maxRelevance")
	}
	if g.minRank != nil && g.maxRank != nil && *g.minRank > *g.maxRank {
		return sparqlerr.UnsupportedPattern("minRank must not exceed maxRank")
	}
	return nil
}

func parseFloatObj(obj term.Term) (float64, error) {
	lit, ok := obj.(term.Literal)
	if !ok {
		return 0, sparqlerr.UnsupportedPattern("operand must be a numeric literal")
	}
	return strconv.ParseFloat(lit.Lexical, 64)
}

func parseNonNegIntObj(obj term.Term) (int, error) {
	lit, ok := obj.(term.Literal)
	if !ok {
		return 0, sparqlerr.UnsupportedPattern("operand must be an integer literal")
	}
	n, err := strconv.Atoi(lit.Lexical)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, sparqlerr.UnsupportedPattern("rank bound must be non-negative")
	}
	return n, nil
}

// rewriteBlankNodes replaces every blank node in patterns with a fresh
// variable, returning the rewritten patterns and the synthetic variables
// introduced (to be projected out of final bindings, spec.md section
// 4.3).
func rewriteBlankNodes(patterns []term.Triple, fresh func() term.Variable) ([]term.Triple, []term.Variable) {
	assigned := make(map[string]term.Variable)
	var synthetic []term.Variable
	subst := func(t term.Term) term.Term {
		bn, ok := t.(term.BlankNode)
		if !ok {
			return t
		}
		if v, seen := assigned[bn.ID]; seen {
			return v
		}
		v := fresh()
		assigned[bn.ID] = v
		synthetic = append(synthetic, v)
		return v
	}
	out := make([]term.Triple, len(patterns))
	for i, p := range patterns {
		out[i] = term.Triple{
			Subject:   subst(p.Subject),
			Predicate: p.Predicate, // predicates are never blank nodes in SPARQL
			Object:    subst(p.Object),
		}
	}
	return out, synthetic
}
