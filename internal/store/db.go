// Package store provides PostgreSQL persistence for tracked tariff documents.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// schema creates the tariff_documents table. The unique index on url backs
// the at-most-one-row-per-url invariant; the application-level upsert relies
// on it under concurrent runs.
const schema = `
CREATE TABLE IF NOT EXISTS tariff_documents (
	id BIGSERIAL PRIMARY KEY,
	utility_name TEXT NOT NULL,
	url TEXT NOT NULL,
	document_name TEXT,
	hash TEXT,
	last_checked TIMESTAMPTZ,
	tariff_last_updated TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	link_text TEXT,
	etag TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS tariff_documents_url_key
	ON tariff_documents (url);

CREATE INDEX IF NOT EXISTS tariff_documents_utility_status_idx
	ON tariff_documents (utility_name, status);
`

// InitSchema creates the tariff_documents table and indexes if absent.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
