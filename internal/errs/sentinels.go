// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("validation")

	// ErrInvalidCredentials is returned for any failed login, whether the
	// username is unknown or the password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorized indicates a missing or expired session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated actor lacks rights on the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict indicates optimistic concurrency failure (base version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrPersistence indicates a durable write did not complete.
	ErrPersistence = errors.New("persistence failure")
)

// kindError carries a user-facing message while matching its sentinel kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New returns an error with message msg that satisfies errors.Is(err, kind).
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind reports which sentinel err belongs to, or nil if none matches.
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation, ErrInvalidCredentials, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrAlreadyExists, ErrRateLimited, ErrVersionConflict, ErrPersistence,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type rateLimitedError struct{ after time.Duration }

func (e *rateLimitedError) Error() string { return "Too many failed login attempts, try again later" }
func (e *rateLimitedError) Unwrap() error { return ErrRateLimited }

// RateLimited returns an ErrRateLimited error that remembers when to retry.
func RateLimited(after time.Duration) error {
	return &rateLimitedError{after: after}
}

// RetryAfter extracts the retry delay from an error built by RateLimited.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *rateLimitedError
	if errors.As(err, &rl) {
		return rl.after, true
	}
	return 0, false
}
