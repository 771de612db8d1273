package logging

import (
	"errors"
	"testing"
)

func TestNewOperationErrorNilPassthrough(t *testing.T) {
	if err := NewOperationError("op", "id", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestOperationErrorUnwrap(t *testing.T) {
	sentinel := errors.New("boom")
	err := NewOperationError("store.write", "abc", sentinel)

	if !errors.Is(err, sentinel) {
		t.Fatal("expected errors.Is to find the wrapped error")
	}

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "store.write" || opErr.ID != "abc" {
		t.Fatalf("unexpected fields: %+v", opErr)
	}
	if got := opErr.Error(); got != "store.write (id=abc): boom" {
		t.Fatalf("unexpected message: %s", got)
	}
}
