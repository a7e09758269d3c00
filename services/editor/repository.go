package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict is returned by Save when the stored document changed
// since it was read.
var ErrVersionConflict = errors.New("document version conflict")

// Repository handles document persistence in PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// InitSchema creates the documents table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vrm_documents (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL DEFAULT '',
			content    TEXT NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Create stores a new document at version 1.
func (r *Repository) Create(ctx context.Context, name, content string) (*Document, error) {
	doc := Document{ID: uuid.NewString(), Name: name, Content: content}
	err := r.db.QueryRow(ctx, `
		INSERT INTO vrm_documents (id, name, content)
		VALUES ($1, $2, $3)
		RETURNING version, created_at, updated_at
	`, doc.ID, name, content).Scan(&doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return &doc, nil
}

// Get retrieves a document by ID. Returns nil, nil if not found, including
// for ids that are not UUIDs.
func (r *Repository) Get(ctx context.Context, id string) (*Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var doc Document
	err := r.db.QueryRow(ctx, `
		SELECT id, name, content, version, created_at, updated_at
		FROM vrm_documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Name, &doc.Content, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// Save replaces the content if the stored version still equals expected
// and returns the new version.
func (r *Repository) Save(ctx context.Context, id, content string, expected int64) (int64, error) {
	var version int64
	err := r.db.QueryRow(ctx, `
		UPDATE vrm_documents
		SET content = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $3
		RETURNING version
	`, id, content, expected).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s at version %d", ErrVersionConflict, id, expected)
	}
	if err != nil {
		return 0, fmt.Errorf("save document: %w", err)
	}
	return version, nil
}

// InitDB creates the schema. Called from main on startup.
func InitDB(ctx context.Context, pool *pgxpool.Pool) error {
	return NewRepository(pool).InitSchema(ctx)
}
