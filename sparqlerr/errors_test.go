package sparqlerr

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := UnknownFunction("no such function: %s", "foo")
	if !Is(err, KindUnknownFunction) {
		t.Error("expected Is to match the constructing kind")
	}
	if Is(err, KindParse) {
		t.Error("expected Is not to match an unrelated kind")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("backend exploded")
	err := GraphBackend(cause, "writing failed")
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the original cause")
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := GraphBackend(cause, "flushing %s", "index")
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error message")
	}
	if !errors.Is(err, err) {
		t.Error("an error must always be errors.Is itself")
	}
}
