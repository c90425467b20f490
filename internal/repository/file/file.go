// Package file stores the document as a single JSON file on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/bairro-board/internal/model"
)

// Backend reads and writes one JSON file. Writes go through a temporary file
// in the same directory followed by a rename, so readers never see a partial document.
type Backend struct {
	path string
}

// New returns a backend for path. The file need not exist yet.
func New(path string) *Backend { return &Backend{path: path} }

// Load parses the file. A missing file is an empty document.
func (b *Backend) Load(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.EmptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	doc := &model.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	doc.Normalize()
	return doc, nil
}

// Save serializes doc with two-space indentation and replaces the file.
func (b *Backend) Save(ctx context.Context, doc *model.Document) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := doc.Clone()
	out.Normalize()
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}
