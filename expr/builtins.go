package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minieraf/sparql-engine/term"
)

func registerBuiltinOperators(r *Registry) {
	r.operators["="] = opEquals
	r.operators["!="] = opNotEquals
	r.operators["<"] = opCompare(func(c int) bool { return c < 0 })
	r.operators["<="] = opCompare(func(c int) bool { return c <= 0 })
	r.operators[">"] = opCompare(func(c int) bool { return c > 0 })
	r.operators[">="] = opCompare(func(c int) bool { return c >= 0 })
	r.operators["&&"] = opAnd
	r.operators["||"] = opOr
	r.operators["!"] = opNot
	r.operators["+"] = arith(func(a, b float64) float64 { return a + b })
	r.operators["-"] = arith(func(a, b float64) float64 { return a - b })
	r.operators["*"] = arith(func(a, b float64) float64 { return a * b })
	r.operators["/"] = opDivide
	r.operators["UMINUS"] = opUnaryMinus
	r.operators["isIRI"] = opIsIRI
	r.operators["isBlank"] = opIsBlank
	r.operators["isLiteral"] = opIsLiteral
	r.operators["isNumeric"] = opIsNumeric
	r.operators["bound"] = opBound
	r.operators["str"] = opStr
	r.operators["lang"] = opLang
	r.operators["datatype"] = opDatatype
	r.operators["strlen"] = opStrlen
	r.operators["ucase"] = opUcase
	r.operators["lcase"] = opLcase
	r.operators["contains"] = opContains
	r.operators["strstarts"] = opStrStarts
	r.operators["strends"] = opStrEnds
	r.operators["concat"] = opConcat
	r.operators["substr"] = opSubstr
	r.operators["IN"] = opIn
	r.operators["NOTIN"] = opNotIn
	r.operators["COALESCE"] = opCoalesce
	r.operators["IF"] = opIf
	r.operators["sameTerm"] = opSameTerm
}

func boolLit(b bool) term.Term {
	if b {
		return term.NewTypedLiteral("true", term.XSDBoolean)
	}
	return term.NewTypedLiteral("false", term.XSDBoolean)
}

func requireArgs(args []Value, n int) bool {
	if len(args) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if args[i].IsNil() || args[i].Term == nil {
			return false
		}
	}
	return true
}

func opEquals(args []Value) (Value, error) {
	if !requireArgs(args, 2) {
		return Value{}, fmt.Errorf("= requires two bound operands")
	}
	return single(boolLit(term.Compare(args[0].Term, args[1].Term) == 0)), nil
}

func opNotEquals(args []Value) (Value, error) {
	v, err := opEquals(args)
	if err != nil {
		return v, err
	}
	b, _ := termBool(v.Term)
	return single(boolLit(!b)), nil
}

func opCompare(pred func(int) bool) Operator {
	return func(args []Value) (Value, error) {
		if !requireArgs(args, 2) {
			return Value{}, fmt.Errorf("comparison requires two bound operands")
		}
		return single(boolLit(pred(term.Compare(args[0].Term, args[1].Term)))), nil
	}
}

func opAnd(args []Value) (Value, error) {
	for _, a := range args {
		if a.IsNil() || a.Term == nil {
			return Value{}, fmt.Errorf("&& operand unbound")
		}
		b, ok := termBool(a.Term)
		if !ok {
			return Value{}, fmt.Errorf("&& operand not boolean")
		}
		if !b {
			return single(boolLit(false)), nil
		}
	}
	return single(boolLit(true)), nil
}

func opOr(args []Value) (Value, error) {
	for _, a := range args {
		if a.IsNil() || a.Term == nil {
			continue
		}
		if b, ok := termBool(a.Term); ok && b {
			return single(boolLit(true)), nil
		}
	}
	return single(boolLit(false)), nil
}

func opNot(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("! requires a bound operand")
	}
	b, ok := termBool(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("! operand not boolean")
	}
	return single(boolLit(!b)), nil
}

func numArg(v Value) (float64, term.IRI, bool) {
	if v.IsNil() || v.Term == nil {
		return 0, term.IRI{}, false
	}
	lit, ok := v.Term.(term.Literal)
	if !ok {
		return 0, term.IRI{}, false
	}
	f, err := strconv.ParseFloat(lit.Lexical, 64)
	if err != nil {
		return 0, term.IRI{}, false
	}
	return f, lit.Datatype, true
}

func arith(fn func(a, b float64) float64) Operator {
	return func(args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, fmt.Errorf("arithmetic requires two operands")
		}
		a, _, aok := numArg(args[0])
		b, dt, bok := numArg(args[1])
		if !aok || !bok {
			return Value{}, fmt.Errorf("arithmetic operand not numeric")
		}
		result := fn(a, b)
		return single(term.NewTypedLiteral(formatNum(result), widestNumeric(dt))), nil
	}
}

func opDivide(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("/ requires two operands")
	}
	a, _, aok := numArg(args[0])
	b, _, bok := numArg(args[1])
	if !aok || !bok || b == 0 {
		return Value{}, fmt.Errorf("division error")
	}
	return single(term.NewTypedLiteral(formatNum(a/b), term.XSDDouble)), nil
}

func opUnaryMinus(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("unary minus requires an operand")
	}
	a, dt, ok := numArg(args[0])
	if !ok {
		return Value{}, fmt.Errorf("unary minus operand not numeric")
	}
	return single(term.NewTypedLiteral(formatNum(-a), dt)), nil
}

func widestNumeric(dt term.IRI) term.IRI {
	if dt == term.XSDInteger {
		return term.XSDInteger
	}
	return term.XSDDouble
}

func formatNum(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func opIsIRI(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("isIRI requires an operand")
	}
	_, ok := args[0].Term.(term.IRI)
	return single(boolLit(ok)), nil
}

func opIsBlank(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("isBlank requires an operand")
	}
	_, ok := args[0].Term.(term.BlankNode)
	return single(boolLit(ok)), nil
}

func opIsLiteral(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("isLiteral requires an operand")
	}
	_, ok := args[0].Term.(term.Literal)
	return single(boolLit(ok)), nil
}

func opIsNumeric(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("isNumeric requires an operand")
	}
	_, _, ok := numArg(args[0])
	return single(boolLit(ok)), nil
}

// opBound implements BOUND(?var): unlike most operators it must see
// whether the variable was present at all, so it is registered as an
// operator but relies on the compiler having already resolved the
// variable lookup to nil for "absent" — callers compile BOUND's single
// argument through the ordinary variable path, so IsNil() here means
// unbound.
func opBound(args []Value) (Value, error) {
	if len(args) != 1 {
		return Value{}, fmt.Errorf("bound requires one operand")
	}
	return single(boolLit(!args[0].IsNil() && args[0].Term != nil)), nil
}

func opStr(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("str requires an operand")
	}
	switch t := args[0].Term.(type) {
	case term.IRI:
		return single(term.NewPlainLiteral(t.Value)), nil
	case term.Literal:
		return single(term.NewPlainLiteral(t.Lexical)), nil
	default:
		return single(term.NewPlainLiteral(t.String())), nil
	}
}

func opLang(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("lang requires an operand")
	}
	lit, ok := args[0].Term.(term.Literal)
	if !ok {
		return single(term.NewPlainLiteral("")), nil
	}
	return single(term.NewPlainLiteral(lit.Language)), nil
}

func opDatatype(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("datatype requires an operand")
	}
	lit, ok := args[0].Term.(term.Literal)
	if !ok {
		return Value{}, fmt.Errorf("datatype operand not a literal")
	}
	return single(lit.Datatype), nil
}

func lexOf(t term.Term) (string, bool) {
	switch v := t.(type) {
	case term.Literal:
		return v.Lexical, true
	case term.IRI:
		return v.Value, true
	}
	return "", false
}

func opStrlen(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("strlen requires an operand")
	}
	s, ok := lexOf(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("strlen operand not stringlike")
	}
	return single(term.NewTypedLiteral(strconv.Itoa(len([]rune(s))), term.XSDInteger)), nil
}

func opUcase(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("ucase requires an operand")
	}
	s, ok := lexOf(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("ucase operand not stringlike")
	}
	return single(term.NewPlainLiteral(strings.ToUpper(s))), nil
}

func opLcase(args []Value) (Value, error) {
	if !requireArgs(args, 1) {
		return Value{}, fmt.Errorf("lcase requires an operand")
	}
	s, ok := lexOf(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("lcase operand not stringlike")
	}
	return single(term.NewPlainLiteral(strings.ToLower(s))), nil
}

func opContains(args []Value) (Value, error) {
	if !requireArgs(args, 2) {
		return Value{}, fmt.Errorf("contains requires two operands")
	}
	a, aok := lexOf(args[0].Term)
	b, bok := lexOf(args[1].Term)
	if !aok || !bok {
		return Value{}, fmt.Errorf("contains operand not stringlike")
	}
	return single(boolLit(strings.Contains(a, b))), nil
}

func opStrStarts(args []Value) (Value, error) {
	if !requireArgs(args, 2) {
		return Value{}, fmt.Errorf("strstarts requires two operands")
	}
	a, aok := lexOf(args[0].Term)
	b, bok := lexOf(args[1].Term)
	if !aok || !bok {
		return Value{}, fmt.Errorf("strstarts operand not stringlike")
	}
	return single(boolLit(strings.HasPrefix(a, b))), nil
}

func opStrEnds(args []Value) (Value, error) {
	if !requireArgs(args, 2) {
		return Value{}, fmt.Errorf("strends requires two operands")
	}
	a, aok := lexOf(args[0].Term)
	b, bok := lexOf(args[1].Term)
	if !aok || !bok {
		return Value{}, fmt.Errorf("strends operand not stringlike")
	}
	return single(boolLit(strings.HasSuffix(a, b))), nil
}

func opConcat(args []Value) (Value, error) {
	var sb strings.Builder
	for _, a := range args {
		s, ok := lexOf(a.Term)
		if !ok {
			return Value{}, fmt.Errorf("concat operand not stringlike")
		}
		sb.WriteString(s)
	}
	return single(term.NewPlainLiteral(sb.String())), nil
}

func opSubstr(args []Value) (Value, error) {
	if len(args) < 2 {
		return Value{}, fmt.Errorf("substr requires at least two operands")
	}
	s, ok := lexOf(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("substr operand not stringlike")
	}
	start, _, ok := numArg(args[1])
	if !ok {
		return Value{}, fmt.Errorf("substr start not numeric")
	}
	runes := []rune(s)
	from := int(start) - 1
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	length := len(runes) - from
	if len(args) >= 3 {
		l, _, lok := numArg(args[2])
		if lok {
			length = int(l)
		}
	}
	to := from + length
	if to > len(runes) {
		to = len(runes)
	}
	if to < from {
		to = from
	}
	return single(term.NewPlainLiteral(string(runes[from:to]))), nil
}

func opIn(args []Value) (Value, error) {
	if len(args) != 2 || args[0].Term == nil || args[1].List == nil {
		return Value{}, fmt.Errorf("IN requires a term and a list")
	}
	for _, t := range args[1].List {
		if term.Compare(args[0].Term, t) == 0 {
			return single(boolLit(true)), nil
		}
	}
	return single(boolLit(false)), nil
}

func opNotIn(args []Value) (Value, error) {
	v, err := opIn(args)
	if err != nil {
		return v, err
	}
	b, _ := termBool(v.Term)
	return single(boolLit(!b)), nil
}

func opCoalesce(args []Value) (Value, error) {
	for _, a := range args {
		if !a.IsNil() && a.Term != nil {
			return a, nil
		}
	}
	return Value{}, fmt.Errorf("COALESCE: all operands unbound")
}

func opIf(args []Value) (Value, error) {
	if len(args) != 3 {
		return Value{}, fmt.Errorf("IF requires three operands")
	}
	b, ok := termBool(args[0].Term)
	if !ok {
		return Value{}, fmt.Errorf("IF condition not boolean")
	}
	if b {
		return args[1], nil
	}
	return args[2], nil
}

func opSameTerm(args []Value) (Value, error) {
	if !requireArgs(args, 2) {
		return Value{}, fmt.Errorf("sameTerm requires two operands")
	}
	return single(boolLit(term.SameTerm(args[0].Term, args[1].Term))), nil
}
