package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/and161185/bairro-board/internal/crypto"
	"github.com/and161185/bairro-board/internal/limiter"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
	"github.com/and161185/bairro-board/internal/repository/memory"
	"github.com/and161185/bairro-board/internal/session"
)

type fakeLimiter struct {
	allowOK    bool
	allowRetry time.Duration
	allowErr   error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, l.allowRetry, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, time.Minute, l.failErr
}

const (
	adminPassword = "admin-pw"
	bizPassword   = "biz-pw"
)

type fixture struct {
	backend  *memory.Backend
	store    *repository.Store
	sessions *session.MemoryStore
	lim      *fakeLimiter
	hasher   *crypto.Hasher
	accounts *AccountServiceImpl
	listings *ListingServiceImpl
}

func testHasher(t *testing.T) *crypto.Hasher {
	t.Helper()
	h, err := crypto.NewHasher(crypto.SchemeBcrypt, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

// newFixture seeds an admin with id 1 and, when withBiz is set, a
// collaborator "biz1" with id 2.
func newFixture(t *testing.T, withBiz bool) *fixture {
	t.Helper()
	h := testHasher(t)
	doc := model.EmptyDocument()
	doc.Users = append(doc.Users, mustUser(t, h, 1, "admin", adminPassword, model.RoleAdmin, "Administrator"))
	if withBiz {
		doc.Users = append(doc.Users, mustUser(t, h, 2, "biz1", bizPassword, model.RoleCollaborator, "Biz One"))
	}
	backend := memory.New(doc)
	log := zaptest.NewLogger(t)
	store := repository.NewStore(backend, log)
	sessions := session.NewMemoryStore(time.Hour)
	lim := &fakeLimiter{allowOK: true}
	return &fixture{
		backend:  backend,
		store:    store,
		sessions: sessions,
		lim:      lim,
		hasher:   h,
		accounts: NewAccountService(store, sessions, h, lim, log),
		listings: NewListingService(store),
	}
}

func mustUser(t *testing.T, h *crypto.Hasher, id int64, username, pw string, role model.Role, name string) model.User {
	t.Helper()
	hash, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	return model.User{
		ID:                 id,
		Username:           username,
		PasswordHash:       hash,
		Role:               role,
		Name:               name,
		CollaboratorNumber: model.CollaboratorNumber(id),
	}
}

func mustCreateAd(t *testing.T, f *fixture, owner int64, title string) model.Ad {
	t.Helper()
	a, err := f.listings.Create(context.Background(), owner, model.AdInput{Category: "food", Title: title, Description: "D"})
	if err != nil {
		t.Fatalf("Create ad: %v", err)
	}
	return a
}

func strPtr(s string) *string { return &s }
