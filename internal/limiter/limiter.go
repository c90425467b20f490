// Package limiter throttles repeated failed logins per (username, client IP).
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}

// Policy is the shared lockout configuration.
type Policy struct {
	Window   time.Duration // failures older than this no longer count
	MaxFails int           // failures within Window that trigger a block
	BlockFor time.Duration
}

// DefaultPolicy blocks for 15 minutes after 5 failures within 15 minutes.
var DefaultPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 15 * time.Minute}

func (p Policy) orDefault() Policy {
	if p.Window <= 0 {
		p.Window = DefaultPolicy.Window
	}
	if p.MaxFails <= 0 {
		p.MaxFails = DefaultPolicy.MaxFails
	}
	if p.BlockFor <= 0 {
		p.BlockFor = DefaultPolicy.BlockFor
	}
	return p
}

// HashIP returns a stable hash for an IP string to avoid storing raw addresses.
func HashIP(ip string) []byte {
	h := sha256.Sum256([]byte(ip))
	return h[:]
}

// Nop never blocks.
type Nop struct{}

func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error)   { return true, 0, nil }
func (Nop) Success(context.Context, string, []byte) error                        { return nil }
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) { return false, 0, nil }
