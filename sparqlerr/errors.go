// Package sparqlerr defines the typed error kinds surfaced by the execution
// core (see spec.md section 7). Each kind is a distinct Go type so callers
// can type-switch on them instead of matching on message text.
package sparqlerr

import "fmt"

// Kind identifies one of the error categories from spec.md section 7.
type Kind string

const (
	KindParse                   Kind = "ParseError"
	KindUnsupportedPattern      Kind = "UnsupportedPattern"
	KindUnsupportedQueryType    Kind = "UnsupportedQueryType"
	KindMissingStage            Kind = "MissingStage"
	KindUnknownFunction         Kind = "UnknownFunction"
	KindAggregationOutsideGroup Kind = "AggregationOutsideGroup"
	KindExpressionEvaluation    Kind = "ExpressionEvaluationError"
	KindGraphBackend            Kind = "GraphBackendError"
	KindCacheStagingDiscarded   Kind = "CacheStagingDiscarded"
)

// Error is the common shape for all typed errors the core raises.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func ParseError(format string, args ...interface{}) *Error {
	return new_(KindParse, format, args...)
}

func UnsupportedPattern(format string, args ...interface{}) *Error {
	return new_(KindUnsupportedPattern, format, args...)
}

func UnsupportedQueryType(format string, args ...interface{}) *Error {
	return new_(KindUnsupportedQueryType, format, args...)
}

func MissingStage(format string, args ...interface{}) *Error {
	return new_(KindMissingStage, format, args...)
}

func UnknownFunction(format string, args ...interface{}) *Error {
	return new_(KindUnknownFunction, format, args...)
}

func AggregationOutsideGroup(format string, args ...interface{}) *Error {
	return new_(KindAggregationOutsideGroup, format, args...)
}

func ExpressionEvaluation(cause error, format string, args ...interface{}) *Error {
	return wrap(KindExpressionEvaluation, cause, format, args...)
}

func GraphBackend(cause error, format string, args ...interface{}) *Error {
	return wrap(KindGraphBackend, cause, format, args...)
}

func CacheStagingDiscarded(format string, args ...interface{}) *Error {
	return new_(KindCacheStagingDiscarded, format, args...)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
