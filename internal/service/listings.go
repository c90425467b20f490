package service

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/and161185/bairro-board/internal/authz"
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/instagram"
	"github.com/and161185/bairro-board/internal/model"
	"github.com/and161185/bairro-board/internal/repository"
)

// ListingService defines operations over ads.
type ListingService interface {
	// Create stores a new ad owned by ownerID.
	Create(ctx context.Context, ownerID int64, in model.AdInput) (model.Ad, error)
	// ListAll returns every ad.
	ListAll(ctx context.Context) ([]model.Ad, error)
	// ListByCategory returns ads whose category equals category exactly.
	ListByCategory(ctx context.Context, category string) ([]model.Ad, error)
	// ListByOwner returns ads owned by ownerID.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Ad, error)
	// Get returns a single ad.
	Get(ctx context.Context, id int64) (model.Ad, error)
	// Update applies the supplied fields of p if actor may mutate the ad.
	Update(ctx context.Context, id int64, actor model.Actor, p model.AdPatch) (model.Ad, error)
	// Delete removes the ad if actor may mutate it.
	Delete(ctx context.Context, id int64, actor model.Actor) error
}

type ListingServiceImpl struct {
	store *repository.Store
	now   func() time.Time
}

// NewListingService constructs ListingService over store.
func NewListingService(store *repository.Store) *ListingServiceImpl {
	return &ListingServiceImpl{store: store, now: time.Now}
}

var (
	errAdNotFound     = errs.New(errs.ErrNotFound, "Ad not found")
	errOwnerNotFound  = errs.New(errs.ErrNotFound, "User not found")
	errRequiredFields = errs.New(errs.ErrValidation, "Category, title, and description are required")

	whatsappRe = regexp.MustCompile(`^[\d\s()\-+]+$`)
)

// Create validates in and appends the ad with the next id.
func (s *ListingServiceImpl) Create(ctx context.Context, ownerID int64, in model.AdInput) (model.Ad, error) {
	if blank(in.Category) || blank(in.Title) || blank(in.Description) {
		return model.Ad{}, errRequiredFields
	}
	if err := validateContacts(in.Image, in.WhatsApp, in.Instagram); err != nil {
		return model.Ad{}, err
	}

	var created model.Ad
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Users().ByID(ownerID); err != nil {
			return errOwnerNotFound
		}
		ads := tx.Ads()
		created = model.Ad{
			ID:          ads.NextID(),
			UserID:      ownerID,
			Category:    in.Category,
			Title:       in.Title,
			Description: in.Description,
			Image:       in.Image,
			WhatsApp:    in.WhatsApp,
			Instagram:   canonicalInstagram(in.Instagram),
			CreatedAt:   s.now().UTC(),
		}
		if created.Image == "" {
			created.Image = model.PlaceholderImage
		}
		return ads.Insert(created)
	})
	if err != nil {
		return model.Ad{}, err
	}
	return created, nil
}

// ListAll returns every ad in stored order.
func (s *ListingServiceImpl) ListAll(ctx context.Context) ([]model.Ad, error) {
	var out []model.Ad
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		out = tx.Ads().All()
		return nil
	})
	return out, err
}

// ListByCategory performs a case-sensitive exact match.
func (s *ListingServiceImpl) ListByCategory(ctx context.Context, category string) ([]model.Ad, error) {
	var out []model.Ad
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		out = tx.Ads().ByCategory(category)
		return nil
	})
	return out, err
}

// ListByOwner returns the ads of ownerID.
func (s *ListingServiceImpl) ListByOwner(ctx context.Context, ownerID int64) ([]model.Ad, error) {
	var out []model.Ad
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		out = tx.Ads().ByOwner(ownerID)
		return nil
	})
	return out, err
}

// Get returns one ad by id.
func (s *ListingServiceImpl) Get(ctx context.Context, id int64) (model.Ad, error) {
	var out model.Ad
	err := s.store.View(ctx, func(tx *repository.Tx) error {
		a, err := tx.Ads().ByID(id)
		if err != nil {
			return errAdNotFound
		}
		out = a
		return nil
	})
	return out, err
}

// Update merges p into the ad. Absent fields stay untouched; explicitly
// empty category, title or description are rejected. UserID, ID and
// CreatedAt are never changed.
func (s *ListingServiceImpl) Update(ctx context.Context, id int64, actor model.Actor, p model.AdPatch) (model.Ad, error) {
	var updated model.Ad
	err := s.store.Update(ctx, func(tx *repository.Tx) error {
		ads := tx.Ads()
		a, err := ads.ByID(id)
		if err != nil {
			return errAdNotFound
		}
		if !authz.CanMutate(actor.ID, actor.Role, a.UserID) {
			return errs.New(errs.ErrForbidden, "You can only edit your own ads")
		}
		if err := applyAdPatch(&a, p); err != nil {
			return err
		}
		if err := ads.Replace(a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return model.Ad{}, err
	}
	return updated, nil
}

// Delete removes the ad.
func (s *ListingServiceImpl) Delete(ctx context.Context, id int64, actor model.Actor) error {
	return s.store.Update(ctx, func(tx *repository.Tx) error {
		ads := tx.Ads()
		a, err := ads.ByID(id)
		if err != nil {
			return errAdNotFound
		}
		if !authz.CanMutate(actor.ID, actor.Role, a.UserID) {
			return errs.New(errs.ErrForbidden, "You can only delete your own ads")
		}
		return ads.Delete(id)
	})
}

func applyAdPatch(a *model.Ad, p model.AdPatch) error {
	for _, f := range []struct {
		name string
		in   *string
		dst  *string
	}{
		{"Category", p.Category, &a.Category},
		{"Title", p.Title, &a.Title},
		{"Description", p.Description, &a.Description},
	} {
		if f.in == nil {
			continue
		}
		if blank(*f.in) {
			return errs.New(errs.ErrValidation, f.name+" cannot be empty")
		}
		*f.dst = *f.in
	}

	next := *a
	if p.Image != nil {
		next.Image = *p.Image
	}
	if p.WhatsApp != nil {
		next.WhatsApp = *p.WhatsApp
	}
	if p.Instagram != nil {
		next.Instagram = canonicalInstagram(*p.Instagram)
	}
	if err := validateContacts(deref(p.Image), deref(p.WhatsApp), deref(p.Instagram)); err != nil {
		return err
	}
	*a = next
	return nil
}

// canonicalInstagram stores profile URLs as https://www.instagram.com/<user>;
// bare handles are kept as given.
func canonicalInstagram(v string) string {
	if instagram.IsValidURL(v) {
		return instagram.NormalizeURL(v)
	}
	return v
}

// validateContacts checks optional contact fields; empty values pass.
func validateContacts(image, whatsapp, insta string) error {
	if image != "" && !isHTTPURL(image) {
		return errs.New(errs.ErrValidation, "Image must be a valid URL")
	}
	if whatsapp != "" && !whatsappRe.MatchString(whatsapp) {
		return errs.New(errs.ErrValidation, "Invalid WhatsApp number format")
	}
	if insta != "" && !isHTTPURL(insta) && !instagram.IsValidUsername(strings.TrimPrefix(insta, "@")) {
		return errs.New(errs.ErrValidation, "Instagram must be a valid URL or username")
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
