package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minieraf/sparql-engine/term"
)

func registerBuiltinAggregates(r *Registry) {
	r.aggregates["COUNT"] = aggCount
	r.aggregates["SUM"] = aggSum
	r.aggregates["AVG"] = aggAvg
	r.aggregates["MIN"] = aggMin
	r.aggregates["MAX"] = aggMax
	r.aggregates["GROUP_CONCAT"] = aggGroupConcat
	r.aggregates["SAMPLE"] = aggSample
}

func aggCount(terms []term.Term, _ string) (term.Term, error) {
	return term.NewTypedLiteral(strconv.Itoa(len(terms)), term.XSDInteger), nil
}

func numericOf(t term.Term) (float64, bool) {
	lit, ok := t.(term.Literal)
	if !ok {
		return 0, false
	}
	switch lit.Datatype {
	case term.XSDInteger, term.XSDFloat, term.XSDDouble:
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(lit.Lexical, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func aggSum(terms []term.Term, _ string) (term.Term, error) {
	var total float64
	allInt := true
	for _, t := range terms {
		f, ok := numericOf(t)
		if !ok {
			return nil, fmt.Errorf("SUM operand not numeric")
		}
		if lit, _ := t.(term.Literal); lit.Datatype != term.XSDInteger {
			allInt = false
		}
		total += f
	}
	if allInt {
		return term.NewTypedLiteral(strconv.FormatInt(int64(total), 10), term.XSDInteger), nil
	}
	return term.NewTypedLiteral(formatNum(total), term.XSDDouble), nil
}

func aggAvg(terms []term.Term, _ string) (term.Term, error) {
	if len(terms) == 0 {
		return term.NewTypedLiteral("0", term.XSDInteger), nil
	}
	var total float64
	for _, t := range terms {
		f, ok := numericOf(t)
		if !ok {
			return nil, fmt.Errorf("AVG operand not numeric")
		}
		total += f
	}
	return term.NewTypedLiteral(formatNum(total/float64(len(terms))), term.XSDDouble), nil
}

func aggMin(terms []term.Term, _ string) (term.Term, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("MIN over empty group")
	}
	min := terms[0]
	for _, t := range terms[1:] {
		if term.Compare(t, min) < 0 {
			min = t
		}
	}
	return min, nil
}

func aggMax(terms []term.Term, _ string) (term.Term, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("MAX over empty group")
	}
	max := terms[0]
	for _, t := range terms[1:] {
		if term.Compare(t, max) > 0 {
			max = t
		}
	}
	return max, nil
}

func aggGroupConcat(terms []term.Term, separator string) (term.Term, error) {
	if separator == "" {
		separator = " "
	}
	parts := make([]string, len(terms))
	for i, t := range terms {
		s, ok := lexOf(t)
		if !ok {
			s = t.String()
		}
		parts[i] = s
	}
	return term.NewPlainLiteral(strings.Join(parts, separator)), nil
}

func aggSample(terms []term.Term, _ string) (term.Term, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("SAMPLE over empty group")
	}
	return terms[0], nil
}
