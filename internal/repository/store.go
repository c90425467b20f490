// Package repository implements the persistence unit shared by the credential
// and listing stores, and defines the interface concrete backends implement.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// maxSaveAttempts bounds load-mutate-save retries on backend version conflicts.
const maxSaveAttempts = 3

// Backend is durable storage for the whole document.
type Backend interface {
	// Load reads the full state. Missing storage yields an empty document, not an error.
	Load(ctx context.Context) (*model.Document, error)
	// Save overwrites the full state. Backends with optimistic concurrency
	// return errs.ErrVersionConflict when doc.Version is stale.
	Save(ctx context.Context, doc *model.Document) error
}

// Store serializes read-modify-write cycles over a Backend. It is the only
// component that talks to the backend.
type Store struct {
	backend Backend
	log     *zap.Logger
	mu      sync.RWMutex
}

// NewStore wraps backend into a persistence unit.
func NewStore(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log}
}

// Tx is the in-memory state of one read or read-modify-write cycle.
type Tx struct{ doc *model.Document }

// Users returns the credential store view.
func (t *Tx) Users() *Credentials { return &Credentials{doc: t.doc} }

// Ads returns the listing store view.
func (t *Tx) Ads() *Listings { return &Listings{doc: t.doc} }

// View runs fn over a freshly loaded document. Changes made by fn are discarded.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.load(ctx)
	if err != nil {
		s.log.Error("load document, continuing with empty state", zap.Error(err))
		doc = model.EmptyDocument()
	}
	return fn(&Tx{doc: doc})
}

// Update loads the document, runs fn, and saves the result while holding the
// write lock. Nothing is saved when fn fails. fn may run more than once if
// the backend reports a version conflict, so it must not keep state across calls.
// An unreadable document is never overwritten: Update fails with ErrPersistence.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		doc, err := s.load(ctx)
		if err != nil {
			s.log.Error("load document before update", zap.Error(err))
			return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
		}
		tx := &Tx{doc: doc}
		if err := fn(tx); err != nil {
			return err
		}
		err = s.backend.Save(ctx, tx.doc)
		if err == nil {
			return nil
		}
		if errors.Is(err, errs.ErrVersionConflict) && attempt < maxSaveAttempts {
			s.log.Warn("document changed concurrently, retrying", zap.Int("attempt", attempt))
			continue
		}
		s.log.Error("save document", zap.Error(err), zap.Int("attempt", attempt))
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
}

func (s *Store) load(ctx context.Context) (*model.Document, error) {
	doc, err := s.backend.Load(ctx)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return model.EmptyDocument(), nil
	}
	doc.Normalize()
	return doc, nil
}
