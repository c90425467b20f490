package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNew_MessageAndKind(t *testing.T) {
	t.Parallel()

	err := New(ErrValidation, "title is required")
	if err.Error() != "title is required" {
		t.Fatalf("message mismatch: %q", err.Error())
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want errors.Is(err, ErrValidation)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("must not match another kind")
	}
}

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("save: %w", New(ErrPersistence, "disk full"))
	if Kind(wrapped) != ErrPersistence {
		t.Fatalf("want ErrPersistence, got %v", Kind(wrapped))
	}
	if Kind(errors.New("plain")) != nil {
		t.Fatalf("plain error must have no kind")
	}
	if Kind(ErrForbidden) != ErrForbidden {
		t.Fatalf("sentinel must be its own kind")
	}
}

func TestRateLimited_RetryAfter(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("login: %w", RateLimited(90*time.Second))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("want ErrRateLimited")
	}
	d, ok := RetryAfter(err)
	if !ok || d != 90*time.Second {
		t.Fatalf("RetryAfter = %v, %v", d, ok)
	}
	if _, ok := RetryAfter(ErrRateLimited); ok {
		t.Fatalf("bare sentinel carries no delay")
	}
}
