package session

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	byUser   map[int64]map[string]struct{}
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore constructs a store with the given TTL (DefaultTTL when <= 0).
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: map[string]model.Session{},
		byUser:   map[int64]map[string]struct{}{},
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a new session.
func (m *MemoryStore) Create(_ context.Context, id model.Identity) (model.Session, error) {
	s, err := newSession(id, m.now(), m.ttl)
	if err != nil {
		return model.Session{}, err
	}
	m.mu.Lock()
	m.sessions[s.Token] = s
	toks := m.byUser[s.UserID]
	if toks == nil {
		toks = map[string]struct{}{}
		m.byUser[s.UserID] = toks
	}
	toks[s.Token] = struct{}{}
	m.mu.Unlock()
	return s, nil
}

// Resolve returns the session for token; expired sessions are dropped.
func (m *MemoryStore) Resolve(_ context.Context, token string) (model.Session, error) {
	if token == "" {
		return model.Session{}, errs.ErrUnauthorized
	}
	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if !ok {
		return model.Session{}, errs.ErrUnauthorized
	}
	if !m.now().Before(s.ExpiresAt) {
		m.mu.Lock()
		m.remove(token)
		m.mu.Unlock()
		return model.Session{}, errs.ErrUnauthorized
	}
	return s, nil
}

// Destroy removes token.
func (m *MemoryStore) Destroy(_ context.Context, token string) error {
	m.mu.Lock()
	m.remove(token)
	m.mu.Unlock()
	return nil
}

// DestroyUser removes every session of userID.
func (m *MemoryStore) DestroyUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok := range m.byUser[userID] {
		delete(m.sessions, tok)
	}
	delete(m.byUser, userID)
	return nil
}

// remove drops token from both indexes; m.mu must be held.
func (m *MemoryStore) remove(token string) {
	s, ok := m.sessions[token]
	if !ok {
		return
	}
	delete(m.sessions, token)
	if toks := m.byUser[s.UserID]; toks != nil {
		delete(toks, token)
		if len(toks) == 0 {
			delete(m.byUser, s.UserID)
		}
	}
}

// Sweep removes every expired session and reports how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for tok, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			m.remove(tok)
			n++
		}
	}
	return n
}

// RunJanitor calls Sweep every interval until ctx is done.
func (m *MemoryStore) RunJanitor(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
