package plan

import (
	"github.com/minieraf/sparql-engine/algebra"
	"github.com/minieraf/sparql-engine/sparqlerr"
)

// validateValuesConflicts resolves the Open Question of what happens when
// a VALUES-bound variable is also the target of a BIND in the same WHERE
// scope. BuildValuesStage implements VALUES as a relational join against
// the materialized data table rather than literal substitution into the
// rewritten body, so a BIND targeting the same variable would silently
// overwrite a VALUES binding depending on stage order — instead of
// guessing at an order-dependent semantics, such a query is rejected at
// plan time.
func validateValuesConflicts(groups []algebra.Group) error {
	boundByValues := make(map[string]bool)
	for _, g := range groups {
		if g.Type == algebra.GroupValues {
			for _, v := range g.ValuesVars {
				boundByValues[v.Name] = true
			}
		}
	}
	if len(boundByValues) == 0 {
		return nil
	}
	for _, g := range groups {
		if g.Type == algebra.GroupBind && boundByValues[g.Variable.Name] {
			return sparqlerr.UnsupportedPattern("BIND target ?%s conflicts with a VALUES binding in the same scope", g.Variable.Name)
		}
	}
	return nil
}
