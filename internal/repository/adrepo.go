package repository

import (
	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// Listings is the listing store: a view over the ads of a loaded document.
type Listings struct{ doc *model.Document }

// All returns a copy of every ad in stored order.
func (l *Listings) All() []model.Ad {
	out := make([]model.Ad, len(l.doc.Ads))
	copy(out, l.doc.Ads)
	return out
}

// ByID loads an ad by ID.
func (l *Listings) ByID(id int64) (model.Ad, error) {
	if i := l.index(id); i >= 0 {
		return l.doc.Ads[i], nil
	}
	return model.Ad{}, errs.ErrNotFound
}

// ByCategory returns ads whose category equals category exactly.
func (l *Listings) ByCategory(category string) []model.Ad {
	return l.filter(func(a model.Ad) bool { return a.Category == category })
}

// ByOwner returns ads owned by userID.
func (l *Listings) ByOwner(userID int64) []model.Ad {
	return l.filter(func(a model.Ad) bool { return a.UserID == userID })
}

// NextID returns max existing id + 1, or 1 when there are no ads.
func (l *Listings) NextID() int64 {
	var max int64
	for _, a := range l.doc.Ads {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

// Insert appends an ad with a unique positive id.
func (l *Listings) Insert(a model.Ad) error {
	if a.ID <= 0 {
		return errs.ErrValidation
	}
	if l.index(a.ID) >= 0 {
		return errs.ErrAlreadyExists
	}
	l.doc.Ads = append(l.doc.Ads, a)
	return nil
}

// Replace overwrites the ad with a.ID.
func (l *Listings) Replace(a model.Ad) error {
	i := l.index(a.ID)
	if i < 0 {
		return errs.ErrNotFound
	}
	l.doc.Ads[i] = a
	return nil
}

// Delete removes the ad with id.
func (l *Listings) Delete(id int64) error {
	i := l.index(id)
	if i < 0 {
		return errs.ErrNotFound
	}
	l.doc.Ads = append(l.doc.Ads[:i], l.doc.Ads[i+1:]...)
	return nil
}

// DeleteByOwner removes every ad owned by userID and reports how many went.
func (l *Listings) DeleteByOwner(userID int64) int {
	kept := l.doc.Ads[:0]
	removed := 0
	for _, a := range l.doc.Ads {
		if a.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	l.doc.Ads = kept
	return removed
}

func (l *Listings) filter(keep func(model.Ad) bool) []model.Ad {
	out := []model.Ad{}
	for _, a := range l.doc.Ads {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (l *Listings) index(id int64) int {
	for i, a := range l.doc.Ads {
		if a.ID == id {
			return i
		}
	}
	return -1
}
