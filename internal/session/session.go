// Package session issues and validates server-held sessions keyed by opaque tokens.
package session

import (
	"context"
	"time"

	"github.com/and161185/bairro-board/internal/crypto"
	"github.com/and161185/bairro-board/internal/model"
)

// DefaultTTL is the absolute lifetime of a session.
const DefaultTTL = 24 * time.Hour

// Manager issues, resolves and destroys sessions.
type Manager interface {
	// Create binds a new token to id. The session expires TTL after creation.
	Create(ctx context.Context, id model.Identity) (model.Session, error)
	// Resolve returns the live session for token, or errs.ErrUnauthorized.
	Resolve(ctx context.Context, token string) (model.Session, error)
	// Destroy removes the session. Unknown tokens are not an error.
	Destroy(ctx context.Context, token string) error
	// DestroyUser removes every session bound to userID.
	DestroyUser(ctx context.Context, userID int64) error
}

// newSession stamps a fresh token and absolute expiry onto id.
func newSession(id model.Identity, now time.Time, ttl time.Duration) (model.Session, error) {
	tok, err := crypto.NewToken()
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		Identity:  id,
		Token:     tok,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}
