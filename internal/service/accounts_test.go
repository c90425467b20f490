package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
	"github.com/and161185/bairro-board/internal/repository/memory"
	"github.com/and161185/bairro-board/internal/session"
)

func TestAccount_Login_RateLimiterAndCreds(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, _, err := f.accounts.Login(ctx, "", "x", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on empty username, got %v", err)
	}

	f.lim.allowErr = errors.New("lim-err")
	if _, _, err := f.accounts.Login(ctx, "biz1", bizPassword, "1.2.3.4"); err == nil {
		t.Fatalf("want limiter error propagate")
	}
	f.lim.allowErr = nil

	f.lim.allowOK = false
	f.lim.allowRetry = 3 * time.Minute
	_, _, err := f.accounts.Login(ctx, "biz1", bizPassword, "1.2.3.4")
	if !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if d, ok := errs.RetryAfter(err); !ok || d != 3*time.Minute {
		t.Fatalf("RetryAfter = %v %v", d, ok)
	}
	f.lim.allowOK = true

	f.lim.failBlocked = true
	if _, _, err := f.accounts.Login(ctx, "biz1", "wrong", ""); !errors.Is(err, errs.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited on blocked after failure, got %v", err)
	}
	f.lim.failBlocked = false

	sess, u, err := f.accounts.Login(ctx, "biz1", bizPassword, "127.0.0.1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != 2 || u.CollaboratorNumber != "COLLAB-002" || u.Role != model.RoleCollaborator {
		t.Fatalf("bad user: %+v", u)
	}
	if f.lim.successCalls == 0 {
		t.Fatalf("expected Success() to be called")
	}
	resolved, err := f.sessions.Resolve(ctx, sess.Token)
	if err != nil || resolved.UserID != 2 || resolved.CollaboratorNumber != "COLLAB-002" {
		t.Fatalf("session not bound: %+v %v", resolved, err)
	}
}

func TestAccount_Login_UniformFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	_, _, errUnknown := f.accounts.Login(ctx, "ghost", "whatever", "")
	_, _, errWrong := f.accounts.Login(ctx, "biz1", "wrong", "")

	if !errors.Is(errUnknown, errs.ErrInvalidCredentials) || !errors.Is(errWrong, errs.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v / %v", errUnknown, errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("failure messages differ: %q vs %q", errUnknown, errWrong)
	}
	if f.lim.failureCalls != 2 {
		t.Fatalf("both failures must be recorded, got %d", f.lim.failureCalls)
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("failed login created a session")
	}
}

func TestAccount_LogoutAndWhoAmI(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	sess, _, err := f.accounts.Login(ctx, "biz1", bizPassword, "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	me, err := f.accounts.WhoAmI(ctx, sess)
	if err != nil || me.Username != "biz1" || me.Name != "Biz One" {
		t.Fatalf("WhoAmI: %+v %v", me, err)
	}

	if _, err := f.accounts.DeleteCollaborator(ctx, model.RoleAdmin, 2); err != nil {
		t.Fatalf("DeleteCollaborator: %v", err)
	}
	if _, err := f.accounts.WhoAmI(ctx, sess); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound for deleted user, got %v", err)
	}

	if err := f.accounts.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := f.accounts.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("Logout must be idempotent: %v", err)
	}
	if err := f.accounts.Logout(ctx, ""); err != nil {
		t.Fatalf("Logout without token: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, sess.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("session survived logout")
	}
}

func TestAccount_AdminOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	c := model.RoleCollaborator

	checks := map[string]error{}
	_, checks["create"] = f.accounts.CreateCollaborator(ctx, c, model.NewCollaborator{Username: "x", Password: "y", Name: "z"})
	_, checks["update"] = f.accounts.UpdateCollaborator(ctx, c, 2, model.UserPatch{Name: strPtr("n")})
	_, checks["delete"] = f.accounts.DeleteCollaborator(ctx, c, 2)
	_, checks["list"] = f.accounts.ListCollaborators(ctx, c)
	_, checks["ads"] = f.accounts.ListAdsWithOwners(ctx, c)
	for name, err := range checks {
		if !errors.Is(err, errs.ErrForbidden) {
			t.Fatalf("%s: want ErrForbidden, got %v", name, err)
		}
	}
}

func TestAccount_CreateCollaborator(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	for _, in := range []model.NewCollaborator{
		{Password: "pw", Name: "n"},
		{Username: "u", Name: "n"},
		{Username: "u", Password: "pw"},
	} {
		if _, err := f.accounts.CreateCollaborator(ctx, model.RoleAdmin, in); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("%+v: want ErrValidation, got %v", in, err)
		}
	}

	u, err := f.accounts.CreateCollaborator(ctx, model.RoleAdmin, model.NewCollaborator{Username: "biz1", Password: "pw", Name: "Biz One"})
	if err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}
	if u.ID != 2 || u.CollaboratorNumber != "COLLAB-002" || u.Role != model.RoleCollaborator {
		t.Fatalf("bad user: %+v", u)
	}

	stored := f.backend.Snapshot().Users[1]
	if stored.PasswordHash == "pw" || !f.hasher.Verify("pw", stored.PasswordHash) {
		t.Fatalf("password not hashed: %q", stored.PasswordHash)
	}

	if _, err := f.accounts.CreateCollaborator(ctx, model.RoleAdmin, model.NewCollaborator{Username: "biz1", Password: "x", Name: "Dup"}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestAccount_UpdateCollaborator(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 9, model.UserPatch{Name: strPtr("x")}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Username: strPtr("admin")}); !errors.Is(err, errs.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	for _, p := range []model.UserPatch{{Username: strPtr("")}, {Name: strPtr(" ")}, {Password: strPtr("")}} {
		if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, p); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("%+v: want ErrValidation, got %v", p, err)
		}
	}

	before := f.backend.Snapshot().Users[1]
	u, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Name: strPtr("Biz Renamed")})
	if err != nil {
		t.Fatalf("Update name: %v", err)
	}
	after := f.backend.Snapshot().Users[1]
	if u.Name != "Biz Renamed" || after.Username != before.Username || after.PasswordHash != before.PasswordHash {
		t.Fatalf("absent fields changed: %+v", after)
	}
	if after.CollaboratorNumber != before.CollaboratorNumber {
		t.Fatalf("collaborator number changed")
	}

	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Username: strPtr("biz2"), Password: strPtr("new-pw")}); err != nil {
		t.Fatalf("Update username/password: %v", err)
	}
	if _, _, err := f.accounts.Login(ctx, "biz2", "new-pw", ""); err != nil {
		t.Fatalf("login with new credentials: %v", err)
	}
	if _, _, err := f.accounts.Login(ctx, "biz1", bizPassword, ""); !errors.Is(err, errs.ErrInvalidCredentials) {
		t.Fatalf("old credentials must fail, got %v", err)
	}
}

func TestAccount_AdminProtection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 1, model.UserPatch{Username: strPtr("x")}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("rename admin: want ErrValidation, got %v", err)
	}
	if _, err := f.accounts.DeleteCollaborator(ctx, model.RoleAdmin, 1); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("delete admin: want ErrValidation, got %v", err)
	}
	// Same username and other fields are still editable.
	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 1, model.UserPatch{Username: strPtr("admin"), Name: strPtr("Boss")}); err != nil {
		t.Fatalf("update admin name: %v", err)
	}
	if got := f.backend.Snapshot().Users[0]; got.Username != "admin" || got.Name != "Boss" {
		t.Fatalf("admin record: %+v", got)
	}
}

func TestAccount_DeleteCascades(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	mustCreateAd(t, f, 2, "a")
	mustCreateAd(t, f, 2, "b")
	kept := mustCreateAd(t, f, 1, "admin ad")

	n, err := f.accounts.DeleteCollaborator(ctx, model.RoleAdmin, 2)
	if err != nil || n != 2 {
		t.Fatalf("DeleteCollaborator: n=%d err=%v", n, err)
	}
	mine, _ := f.listings.ListByOwner(ctx, 2)
	if len(mine) != 0 {
		t.Fatalf("cascade left ads: %+v", mine)
	}
	all, _ := f.listings.ListAll(ctx)
	if len(all) != 1 || all[0].ID != kept.ID {
		t.Fatalf("unrelated ads touched: %+v", all)
	}
	if _, saves := f.backend.Stats(); saves != 4 {
		t.Fatalf("user and ads must go in one save, saves=%d", saves)
	}

	if _, err := f.accounts.DeleteCollaborator(ctx, model.RoleAdmin, 2); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAccount_ListCollaboratorsStripsHashes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	users, err := f.accounts.ListCollaborators(context.Background(), model.RoleAdmin)
	if err != nil || len(users) != 2 {
		t.Fatalf("ListCollaborators: %+v %v", users, err)
	}
	if users[1].Username != "biz1" {
		t.Fatalf("order: %+v", users)
	}
}

func TestAccount_ListAdsWithOwners(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()
	mustCreateAd(t, f, 2, "owned")

	// an orphan left by an older data file
	if err := f.store.Update(ctx, func(tx *repository.Tx) error {
		return tx.Ads().Insert(model.Ad{ID: 50, UserID: 77, Category: "c", Title: "orphan", Description: "d"})
	}); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	rows, err := f.accounts.ListAdsWithOwners(ctx, model.RoleAdmin)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListAdsWithOwners: %+v %v", rows, err)
	}
	if rows[0].UserName != "Biz One" || rows[0].CollaboratorNumber != "COLLAB-002" {
		t.Fatalf("owner annotation: %+v", rows[0])
	}
	if rows[1].UserName != model.UnknownOwnerName || rows[1].CollaboratorNumber != model.UnknownOwnerNumber {
		t.Fatalf("orphan annotation: %+v", rows[1])
	}
}

func TestAccount_EnsureAdmin(t *testing.T) {
	t.Parallel()
	h := testHasher(t)
	backend := memory.New(nil)
	store := repository.NewStore(backend, zaptest.NewLogger(t))
	s := NewAccountService(store, session.NewMemoryStore(time.Hour), h, nil, nil)
	ctx := context.Background()

	created, err := s.EnsureAdmin(ctx, "admin", "admin123", "Administrator")
	if err != nil || !created {
		t.Fatalf("EnsureAdmin: %v %v", created, err)
	}
	created, err = s.EnsureAdmin(ctx, "admin", "other", "Administrator")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin must be a no-op: %v %v", created, err)
	}

	users := backend.Snapshot().Users
	if len(users) != 1 || users[0].ID != 1 || users[0].Role != model.RoleAdmin || users[0].CollaboratorNumber != "COLLAB-001" {
		t.Fatalf("seeded admin: %+v", users)
	}
	if _, _, err := s.Login(ctx, "admin", "admin123", ""); err != nil {
		t.Fatalf("login as seeded admin: %v", err)
	}

	// next collaborator follows the admin's id
	u, err := s.CreateCollaborator(ctx, model.RoleAdmin, model.NewCollaborator{Username: "biz1", Password: "pw", Name: "Biz One"})
	if err != nil || u.CollaboratorNumber != "COLLAB-002" {
		t.Fatalf("CreateCollaborator: %+v %v", u, err)
	}
}

func TestAccount_ConcurrentCreatesKeepUniqueIDs(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "biz" + strings.Repeat("x", i)
			if _, err := f.accounts.CreateCollaborator(ctx, model.RoleAdmin, model.NewCollaborator{Username: name, Password: "pw", Name: "n"}); err != nil {
				t.Errorf("create %s: %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for _, u := range f.backend.Snapshot().Users {
		if seen[u.ID] {
			t.Fatalf("duplicate id %d", u.ID)
		}
		seen[u.ID] = true
	}
	if len(seen) != 11 {
		t.Fatalf("lost writes: %d users", len(seen))
	}
}

func TestAccount_DeleteRevokesSessionsBeforeIDReuse(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	stale, _, err := f.accounts.Login(ctx, "biz1", bizPassword, "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := f.accounts.DeleteCollaborator(ctx, model.RoleAdmin, 2); err != nil {
		t.Fatalf("DeleteCollaborator: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, stale.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("session of deleted user still resolves: %v", err)
	}

	next, err := f.accounts.CreateCollaborator(ctx, model.RoleAdmin, model.NewCollaborator{Username: "victim", Password: "pw", Name: "Victim"})
	if err != nil {
		t.Fatalf("CreateCollaborator: %v", err)
	}
	if next.ID != 2 {
		t.Fatalf("expected id reuse for this scenario, got %d", next.ID)
	}
	if _, err := f.sessions.Resolve(ctx, stale.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("stale session resurrected for new user: %v", err)
	}
}

func TestAccount_CredentialChangeRevokesSessions(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := context.Background()

	login := func(pw string) model.Session {
		t.Helper()
		s, _, err := f.accounts.Login(ctx, "biz1", pw, "")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		return s
	}

	sess := login(bizPassword)
	name, same := "New Name", "biz1"
	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Name: &name, Username: &same}); err != nil {
		t.Fatalf("Update name: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, sess.Token); err != nil {
		t.Fatalf("name change must keep sessions: %v", err)
	}

	pw := "rotated"
	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Password: &pw}); err != nil {
		t.Fatalf("Update password: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, sess.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("password change must revoke sessions, got %v", err)
	}

	sess = login(pw)
	rename := "biz-renamed"
	if _, err := f.accounts.UpdateCollaborator(ctx, model.RoleAdmin, 2, model.UserPatch{Username: &rename}); err != nil {
		t.Fatalf("Update username: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, sess.Token); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("rename must revoke sessions, got %v", err)
	}
}

type failingRevoke struct {
	*session.MemoryStore
}

func (failingRevoke) DestroyUser(context.Context, int64) error { return errors.New("redis down") }

func TestAccount_DeleteReportsRevokeFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	accounts := NewAccountService(f.store, failingRevoke{f.sessions}, f.hasher, f.lim, zaptest.NewLogger(t))

	if _, err := accounts.DeleteCollaborator(context.Background(), model.RoleAdmin, 2); err == nil {
		t.Fatalf("want revoke failure surfaced")
	}
}
