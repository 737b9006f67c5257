package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/josuedanielbust/docucol/internal/documents/models"
)

// PostgresStore persists document metadata in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the documents table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	title        TEXT NOT NULL,
	key          TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size         BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_user_id_idx ON documents (user_id)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `
INSERT INTO documents (id, user_id, title, key, content_type, size, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.Title, doc.Key, doc.ContentType, doc.Size, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	const query = `
SELECT id, user_id, title, key, content_type, size, created_at
FROM documents WHERE id = $1`

	var doc models.Document
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.UserID, &doc.Title, &doc.Key, &doc.ContentType, &doc.Size, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return &doc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const query = `
SELECT id, user_id, title, key, content_type, size, created_at
FROM documents WHERE user_id = $1 ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents for %s: %w", userID, err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Key, &doc.ContentType, &doc.Size, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) DeleteByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const query = `
DELETE FROM documents WHERE user_id = $1
RETURNING id, user_id, title, key, content_type, size, created_at`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("delete documents for %s: %w", userID, err)
	}
	defer rows.Close()

	var removed []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Key, &doc.ContentType, &doc.Size, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan removed document: %w", err)
		}
		removed = append(removed, doc)
	}
	return removed, rows.Err()
}
