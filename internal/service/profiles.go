package service

import (
	"context"
	"strings"

	"github.com/and161185/bairro-board/internal/authz"
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/instagram"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
)

// ProfileFetcher returns Instagram profile data; it never fails.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, username string, force bool) instagram.Profile
	ClearCache(username string)
}

// ProfileService exposes Instagram profiles for ad contacts.
type ProfileService interface {
	// Profile returns the profile of username. Private profiles yield ErrForbidden.
	Profile(ctx context.Context, username string, force bool) (instagram.Profile, error)
	// AdProfile resolves the Instagram contact of an ad and returns its profile.
	AdProfile(ctx context.Context, adID int64, force bool) (instagram.Profile, error)
	// ClearCache drops one cached profile, or all of them for an empty username (admin only).
	ClearCache(ctx context.Context, actor model.Role, username string) error
}

type ProfileServiceImpl struct {
	store   *repository.Store
	fetcher ProfileFetcher
}

// NewProfileService constructs ProfileService.
func NewProfileService(store *repository.Store, fetcher ProfileFetcher) *ProfileServiceImpl {
	return &ProfileServiceImpl{store: store, fetcher: fetcher}
}

// Profile validates the handle and fetches it.
func (s *ProfileServiceImpl) Profile(ctx context.Context, username string, force bool) (instagram.Profile, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if !instagram.IsValidUsername(username) {
		return instagram.Profile{}, errs.New(errs.ErrValidation, "Invalid Instagram username")
	}
	return s.fetch(ctx, username, force)
}

// AdProfile looks up the ad and fetches the profile named by its contact field.
func (s *ProfileServiceImpl) AdProfile(ctx context.Context, adID int64, force bool) (instagram.Profile, error) {
	var contact string
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		a, err := tx.Ads().ByID(adID)
		if err != nil {
			return errAdNotFound
		}
		contact = a.Instagram
		return nil
	})
	if err != nil {
		return instagram.Profile{}, err
	}
	username := instagram.UsernameFromContact(contact)
	if username == "" {
		return instagram.Profile{}, errs.New(errs.ErrValidation, "Ad has no Instagram contact")
	}
	return s.fetch(ctx, username, force)
}

func (s *ProfileServiceImpl) fetch(ctx context.Context, username string, force bool) (instagram.Profile, error) {
	p := s.fetcher.FetchProfile(ctx, username, force)
	if !p.IsPublic {
		return p, errs.New(errs.ErrForbidden, instagram.PrivateMessage)
	}
	return p, nil
}

// ClearCache requires the admin role.
func (s *ProfileServiceImpl) ClearCache(_ context.Context, actor model.Role, username string) error {
	if err := authz.RequireAdmin(actor); err != nil {
		return err
	}
	s.fetcher.ClearCache(strings.TrimSpace(username))
	return nil
}
