// Package memory is an in-process document backend for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// Backend keeps the document in memory and copies it on every load and save.
type Backend struct {
	mu  sync.Mutex
	doc *model.Document

	// LoadErr and SaveErr, when set, are returned instead of touching state.
	LoadErr error
	SaveErr error

	// CheckVersion makes Save reject stale documents with errs.ErrVersionConflict.
	CheckVersion bool

	loads int
	saves int
}

// New returns a backend seeded with doc (nil for an empty one).
func New(doc *model.Document) *Backend {
	if doc == nil {
		doc = model.EmptyDocument()
	}
	doc.Normalize()
	return &Backend{doc: doc.Clone()}
}

// Load returns a copy of the stored document.
func (b *Backend) Load(_ context.Context) (*model.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.LoadErr != nil {
		return nil, b.LoadErr
	}
	return b.doc.Clone(), nil
}

// Save replaces the stored document with a copy of doc.
func (b *Backend) Save(_ context.Context, doc *model.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.SaveErr != nil {
		return b.SaveErr
	}
	if b.CheckVersion && doc.Version != b.doc.Version {
		return errs.ErrVersionConflict
	}
	next := doc.Clone()
	next.Version = b.doc.Version + 1
	b.doc = next
	return nil
}

// Snapshot returns a copy of the current state without counting as a load.
func (b *Backend) Snapshot() *model.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.doc.Clone()
}

// Bump advances the stored version, simulating a write by another process.
func (b *Backend) Bump() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc.Version++
}

// Stats reports how many loads and saves were attempted.
func (b *Backend) Stats() (loads, saves int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads, b.saves
}
