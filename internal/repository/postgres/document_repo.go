package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/bairro-board/internal/errs"
	"github.com/and161185/bairro-board/internal/model"
)

// DocumentRepo keeps the whole document in documents.body under a fixed id.
// documents.ver guards read-modify-write cycles across processes.
type DocumentRepo struct {
	db *DB
	id string
}

// NewDocumentRepo constructs a document repository for row id.
func NewDocumentRepo(db *DB, id string) *DocumentRepo { return &DocumentRepo{db: db, id: id} }

// Load selects the document row; no row is an empty document at version 0.
func (r *DocumentRepo) Load(ctx context.Context) (*model.Document, error) {
	const q = `SELECT body, ver FROM documents WHERE id=$1`
	var (
		body []byte
		ver  int64
	)
	if err := r.db.Pool.QueryRow(ctx, q, r.id).Scan(&body, &ver); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EmptyDocument(), nil
		}
		return nil, err
	}
	doc := &model.Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.id, err)
	}
	doc.Normalize()
	doc.Version = ver
	return doc, nil
}

// Save upserts the row only if its version still equals doc.Version.
func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	out := doc.Clone()
	out.Normalize()
	body, err := json.Marshal(out)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO documents (id, body, ver)
VALUES ($1, $2, 1)
ON CONFLICT (id) DO UPDATE
SET body = EXCLUDED.body, ver = documents.ver + 1, updated_at = now()
WHERE documents.ver = $3`
	tag, err := r.db.Pool.Exec(ctx, q, r.id, body, doc.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrVersionConflict
	}
	return nil
}
