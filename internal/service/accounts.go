// Package service contains application services for accounts, ads and
// Instagram profiles.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/authz"
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/limiter"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
	"github.com/and161185/bairro-board/internal/session"
)

// PasswordHasher is a one-way verifiable password hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// AccountService defines authentication and collaborator management.
type AccountService interface {
	// Login applies rate-limiting by (username, ip), verifies the password and opens a session.
	Login(ctx context.Context, username, password, ip string) (model.Session, model.PublicUser, error)
	// Logout destroys the session; unknown tokens are not an error.
	Logout(ctx context.Context, token string) error
	// WhoAmI returns the current record of the session's user.
	WhoAmI(ctx context.Context, s model.Session) (model.PublicUser, error)
	// CreateCollaborator adds a collaborator account (admin only).
	CreateCollaborator(ctx context.Context, actor model.Role, in model.NewCollaborator) (model.PublicUser, error)
	// UpdateCollaborator changes the supplied fields of a user (admin only).
	UpdateCollaborator(ctx context.Context, actor model.Role, id int64, p model.UserPatch) (model.PublicUser, error)
	// DeleteCollaborator removes a user and every ad they own (admin only).
	DeleteCollaborator(ctx context.Context, actor model.Role, id int64) (removedAds int, err error)
	// ListCollaborators returns every user (admin only).
	ListCollaborators(ctx context.Context, actor model.Role) ([]model.PublicUser, error)
	// ListAdsWithOwners returns every ad with its owner's display data (admin only).
	ListAdsWithOwners(ctx context.Context, actor model.Role) ([]model.AdWithOwner, error)
	// EnsureAdmin seeds the admin account when none exists.
	EnsureAdmin(ctx context.Context, username, password, name string) (created bool, err error)
}

type AccountServiceImpl struct {
	store    *repository.Store
	sessions session.Manager
	hasher   PasswordHasher
	lim      limiter.Limiter
	log      *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService constructs AccountService with required dependencies.
// A nil limiter disables login throttling.
func NewAccountService(store *repository.Store, sessions session.Manager, hasher PasswordHasher, lim limiter.Limiter, log *zap.Logger) *AccountServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountServiceImpl{store: store, sessions: sessions, hasher: hasher, lim: lim, log: log}
}

var (
	errCollaboratorNotFound = errs.New(errs.ErrNotFound, "Collaborator not found")
	errUsernameTaken        = errs.New(errs.ErrAlreadyExists, "Username already exists")
	errLoginFailed          = errs.New(errs.ErrInvalidCredentials, "Invalid credentials")
)

// Login authenticates with rate limiting by (username, ip). Unknown users and
// wrong passwords fail identically.
func (s *AccountServiceImpl) Login(ctx context.Context, username, password, ip string) (model.Session, model.PublicUser, error) {
	if username == "" || password == "" {
		return model.Session{}, model.PublicUser{}, errs.New(errs.ErrValidation, "Username and password required")
	}
	ipHash := limiter.HashIP(ip)

	allowed, retry, err := s.lim.Allow(ctx, username, ipHash)
	if err != nil {
		return model.Session{}, model.PublicUser{}, err
	}
	if !allowed {
		return model.Session{}, model.PublicUser{}, errs.RateLimited(retry)
	}

	var u model.User
	found := false
	err = s.store.View(ctx, func(tx *repository.Tx) error {
		got, err := tx.Users().ByUsername(username)
		if err == nil {
			u, found = got, true
		}
		return nil
	})
	if err != nil {
		return model.Session{}, model.PublicUser{}, err
	}

	hash := u.PasswordHash
	if !found {
		// keep the cost of a miss equal to a wrong password
		hash = s.dummy()
	}
	if !s.hasher.Verify(password, hash) || !found {
		if blocked, d, ferr := s.lim.Failure(ctx, username, ipHash); ferr == nil && blocked {
			return model.Session{}, model.PublicUser{}, errs.RateLimited(d)
		} else if ferr != nil {
			s.log.Warn("record login failure", zap.Error(ferr))
		}
		return model.Session{}, model.PublicUser{}, errLoginFailed
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, username, ipHash)

	sess, err := s.sessions.Create(ctx, model.Identity{
		UserID:             u.ID,
		Username:           u.Username,
		Role:               u.Role,
		CollaboratorNumber: u.CollaboratorNumber,
	})
	if err != nil {
		return model.Session{}, model.PublicUser{}, err
	}
	return sess, u.Public(), nil
}

func (s *AccountServiceImpl) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password")
		if err != nil {
			s.log.Warn("prepare dummy hash", zap.Error(err))
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Logout destroys the session.
func (s *AccountServiceImpl) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}

// WhoAmI re-reads the session's user so deleted accounts are noticed.
func (s *AccountServiceImpl) WhoAmI(ctx context.Context, sess model.Session) (model.PublicUser, error) {
	var out model.PublicUser
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		u, err := tx.Users().ByID(sess.UserID)
		if err != nil {
			return errs.New(errs.ErrNotFound, "User not found")
		}
		out = u.Public()
		return nil
	})
	return out, err
}

// CreateCollaborator assigns the next id and a collaborator number derived from it.
func (s *AccountServiceImpl) CreateCollaborator(ctx context.Context, actor model.Role, in model.NewCollaborator) (model.PublicUser, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return model.PublicUser{}, err
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" || blank(in.Name) {
		return model.PublicUser{}, errs.New(errs.ErrValidation, "Username, password, and name are required")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, err
	}

	var created model.User
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		users := tx.Users()
		if _, err := users.ByUsername(in.Username); err == nil {
			return errUsernameTaken
		}
		id := users.NextID()
		created = model.User{
			ID:                 id,
			Username:           in.Username,
			PasswordHash:       hash,
			Role:               model.RoleCollaborator,
			Name:               in.Name,
			CollaboratorNumber: model.CollaboratorNumber(id),
		}
		return users.Insert(created)
	})
	if err != nil {
		return model.PublicUser{}, err
	}
	return created.Public(), nil
}

// UpdateCollaborator applies p. The admin's username is immutable, and the
// collaborator number never changes.
func (s *AccountServiceImpl) UpdateCollaborator(ctx context.Context, actor model.Role, id int64, p model.UserPatch) (model.PublicUser, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return model.PublicUser{}, err
	}
	if p.Username != nil {
		trimmed := strings.TrimSpace(*p.Username)
		if trimmed == "" {
			return model.PublicUser{}, errs.New(errs.ErrValidation, "Username cannot be empty")
		}
		p.Username = &trimmed
	}
	if p.Name != nil && blank(*p.Name) {
		return model.PublicUser{}, errs.New(errs.ErrValidation, "Name cannot be empty")
	}
	var hash string
	if p.Password != nil {
		if *p.Password == "" {
			return model.PublicUser{}, errs.New(errs.ErrValidation, "Password cannot be empty")
		}
		h, err := s.hasher.Hash(*p.Password)
		if err != nil {
			return model.PublicUser{}, err
		}
		hash = h
	}

	var (
		updated model.User
		revoke  bool
	)
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		users := tx.Users()
		u, err := users.ByID(id)
		if err != nil {
			return errCollaboratorNotFound
		}
		revoke = p.Password != nil || (p.Username != nil && *p.Username != u.Username)
		if p.Username != nil {
			if err := authz.CheckRename(u, *p.Username); err != nil {
				return err
			}
			if other, err := users.ByUsername(*p.Username); err == nil && other.ID != u.ID {
				return errUsernameTaken
			}
			u.Username = *p.Username
		}
		if p.Name != nil {
			u.Name = *p.Name
		}
		if p.Password != nil {
			u.PasswordHash = hash
		}
		if err := users.Replace(u); err != nil {
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return model.PublicUser{}, err
	}
	if revoke {
		if err := s.revokeSessions(ctx, id); err != nil {
			return model.PublicUser{}, err
		}
	}
	return updated.Public(), nil
}

// DeleteCollaborator removes the user and cascades to their ads in the same save.
func (s *AccountServiceImpl) DeleteCollaborator(ctx context.Context, actor model.Role, id int64) (int, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return 0, err
	}
	removed := 0
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		users := tx.Users()
		u, err := users.ByID(id)
		if err != nil {
			return errCollaboratorNotFound
		}
		if err := authz.CheckDelete(u); err != nil {
			return err
		}
		if err := users.Delete(id); err != nil {
			return err
		}
		removed = tx.Ads().DeleteByOwner(id)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := s.revokeSessions(ctx, id); err != nil {
		return 0, err
	}
	s.log.Info("collaborator deleted", zap.Int64("user_id", id), zap.Int("ads_removed", removed))
	return removed, nil
}

// revokeSessions ends every session of id. Ids are reused after deletion, so a
// surviving session would act as whichever user gets the id next.
func (s *AccountServiceImpl) revokeSessions(ctx context.Context, id int64) error {
	if err := s.sessions.DestroyUser(ctx, id); err != nil {
		s.log.Error("revoke sessions", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// ListCollaborators returns every user, admin included, without password hashes.
func (s *AccountServiceImpl) ListCollaborators(ctx context.Context, actor model.Role) ([]model.PublicUser, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	var out []model.PublicUser
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		users := tx.Users().All()
		out = make([]model.PublicUser, 0, len(users))
		for _, u := range users {
			out = append(out, u.Public())
		}
		return nil
	})
	return out, err
}

// ListAdsWithOwners joins ads with their owners; orphans get sentinel values.
func (s *AccountServiceImpl) ListAdsWithOwners(ctx context.Context, actor model.Role) ([]model.AdWithOwner, error) {
	if err := authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	var out []model.AdWithOwner
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		owners := map[int64]model.User{}
		for _, u := range tx.Users().All() {
			owners[u.ID] = u
		}
		ads := tx.Ads().All()
		out = make([]model.AdWithOwner, 0, len(ads))
		for _, a := range ads {
			row := model.AdWithOwner{Ad: a, UserName: model.UnknownOwnerName, CollaboratorNumber: model.UnknownOwnerNumber}
			if u, ok := owners[a.UserID]; ok {
				row.UserName = u.Name
				row.CollaboratorNumber = u.CollaboratorNumber
			}
			out = append(out, row)
		}
		return nil
	})
	return out, err
}

// EnsureAdmin creates the admin account unless one already exists.
func (s *AccountServiceImpl) EnsureAdmin(ctx context.Context, username, password, name string) (bool, error) {
	if username == "" || password == "" {
		return false, errs.New(errs.ErrValidation, "admin username and password required")
	}
	exists := false
	if err := s.store.View(ctx, func(tx *repository.Tx) error {
		_, exists = tx.Users().Admin()
		return nil
	}); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	created := false
	err = s.store.Update(ctx, func(tx *repository.Tx) error {
		users := tx.Users()
		if _, ok := users.Admin(); ok {
			created = false
			return nil
		}
		if _, err := users.ByUsername(username); err == nil {
			return errUsernameTaken
		}
		id := users.NextID()
		created = true
		return users.Insert(model.User{
			ID:                 id,
			Username:           username,
			PasswordHash:       hash,
			Role:               model.RoleAdmin,
			Name:               name,
			CollaboratorNumber: model.CollaboratorNumber(id),
		})
	})
	if err != nil {
		return false, err
	}
	return created, nil
}
