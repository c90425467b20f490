package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	firstFail    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
	policy  Policy
	now     func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{entries: map[string]*entry{}, policy: p.orDefault(), now: time.Now}
}

func key(username string, ipHash []byte) string {
	return username + "\x00" + string(ipHash)
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (m *Memory) Allow(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key(username, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the (username, ip) pair.
func (m *Memory) Success(_ context.Context, username string, ipHash []byte) error {
	m.mu.Lock()
	delete(m.entries, key(username, ipHash))
	m.mu.Unlock()
	return nil
}

// Failure records a failed attempt and blocks once MaxFails is reached within Window.
func (m *Memory) Failure(_ context.Context, username string, ipHash []byte) (bool, time.Duration, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(username, ipHash)
	e, ok := m.entries[k]
	if !ok || now.Sub(e.firstFail) > m.policy.Window {
		e = &entry{firstFail: now}
		m.entries[k] = e
	}
	e.fails++
	if e.fails >= m.policy.MaxFails {
		e.blockedUntil = now.Add(m.policy.BlockFor)
		e.fails = 0
		e.firstFail = now
		return true, m.policy.BlockFor, nil
	}
	return false, 0, nil
}

// Prune drops entries that are neither blocked nor inside the failure window.
func (m *Memory) Prune() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if !e.blockedUntil.After(now) && now.Sub(e.firstFail) > m.policy.Window {
			delete(m.entries, k)
			n++
		}
	}
	return n
}
