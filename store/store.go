// Package store is the SOPify document store. It persists SOP, Feedback,
// Contact, and User documents in SQLite. Steps live inside their parent SOP
// row as an ordered JSON array — they have no identity beyond array
// position, matching the document model.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sopify/sopify/idgen"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("store: not found")

// ValidationError reports a missing or invalid required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("store: missing required field %q", e.Field)
}

// Store wraps the SQLite database holding all SOPify documents.
type Store struct {
	db    *sql.DB
	newID idgen.Generator
}

const schema = `
CREATE TABLE IF NOT EXISTS sops (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    description        TEXT NOT NULL,
    steps              TEXT NOT NULL DEFAULT '[]',
    image_filename     TEXT,
    image_path         TEXT,
    image_content_type TEXT,
    image_size         INTEGER,
    from_extension     INTEGER NOT NULL DEFAULT 0,
    url                TEXT NOT NULL DEFAULT '',
    timestamp          INTEGER NOT NULL DEFAULT 0,
    created_at         INTEGER NOT NULL,
    updated_at         INTEGER NOT NULL,
    created_by         TEXT
);
CREATE INDEX IF NOT EXISTS idx_sops_updated ON sops(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_sops_user ON sops(created_by);

CREATE TABLE IF NOT EXISTS feedback (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL,
    detail     TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    INTEGER NOT NULL
);
`

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets a custom document id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// New creates a Store and applies the schema.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: DB is required")
	}
	s := &Store{db: db, newID: idgen.Default}
	for _, o := range opts {
		o(s)
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("store: schema: %w", err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle for components that share the database
// (event log, retention).
func (s *Store) DB() *sql.DB { return s.db }
