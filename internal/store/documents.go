package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const documentColumns = `id, utility_name, url, document_name, hash, last_checked,
	tariff_last_updated, status, link_text, etag, created_at, updated_at`

// GetByURL returns the tracked document for a URL, or nil when the URL has
// never been observed.
func (db *DB) GetByURL(ctx context.Context, url string) (*TrackedDocument, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM tariff_documents WHERE url = $1`, url)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document by url: %w", err)
	}
	return doc, nil
}

// Upsert records a detection result for a URL. A URL never seen before is
// inserted as ACTIVE and isNew is true; an existing row is updated in place
// (fingerprint, last_checked, tariff_last_updated, etag) preserving id. The
// row always comes out ACTIVE: a detection result is only recorded for a
// currently selected URL, so re-selecting a previously superseded document
// re-activates its row. The row lock taken inside the transaction serializes
// concurrent writes per url, and re-applying the same result is a no-op
// update, so the operation is idempotent under retry.
func (db *DB) Upsert(ctx context.Context, p UpsertParams) (*TrackedDocument, bool, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existingID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM tariff_documents WHERE url = $1 FOR UPDATE`,
		p.URL,
	).Scan(&existingID)

	isNew := false
	var row pgx.Row
	switch {
	case err == nil:
		row = tx.QueryRow(ctx,
			`UPDATE tariff_documents
			 SET hash = $2, last_checked = $3, tariff_last_updated = $4,
			     etag = $5, document_name = COALESCE(NULLIF($6, ''), document_name),
			     link_text = COALESCE(NULLIF($7, ''), link_text),
			     status = $8, updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+documentColumns,
			existingID, p.Hash, p.LastChecked, p.TariffLastUpdated,
			nilIfEmpty(p.ETag), p.DocumentName, p.LinkText, StatusActive)
	case errors.Is(err, pgx.ErrNoRows):
		isNew = true
		row = tx.QueryRow(ctx,
			`INSERT INTO tariff_documents
			     (utility_name, url, document_name, hash, last_checked,
			      tariff_last_updated, status, link_text, etag)
			 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9)
			 RETURNING `+documentColumns,
			p.UtilityName, p.URL, p.DocumentName, p.Hash, p.LastChecked,
			p.TariffLastUpdated, StatusActive, p.LinkText, nilIfEmpty(p.ETag))
	default:
		return nil, false, fmt.Errorf("failed to lock document row: %w", err)
	}

	doc, err := scanDocument(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return doc, isNew, nil
}

// MarkObsolete flips a document's status to OBSOLETE without deleting
// history.
func (db *DB) MarkObsolete(ctx context.Context, url string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE tariff_documents SET status = $1, updated_at = NOW() WHERE url = $2`,
		StatusObsolete, url)
	if err != nil {
		return fmt.Errorf("failed to mark document obsolete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no tracked document for url %s", url)
	}
	return nil
}

// Supersede marks every ACTIVE document of a utility as OBSOLETE except those
// in keepURLs. Called only after a replacement has been successfully recorded,
// so a failed fetch never strands a utility without an ACTIVE row. Returns the
// number of rows transitioned.
func (db *DB) Supersede(ctx context.Context, utilityName string, keepURLs []string) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE tariff_documents SET status = $1, updated_at = NOW()
		 WHERE utility_name = $2 AND status = $3 AND NOT (url = ANY($4))`,
		StatusObsolete, utilityName, StatusActive, keepURLs)
	if err != nil {
		return 0, fmt.Errorf("failed to supersede documents for %s: %w", utilityName, err)
	}
	return tag.RowsAffected(), nil
}

// SupersedeOthers keeps a single URL ACTIVE for a utility.
func (db *DB) SupersedeOthers(ctx context.Context, utilityName, keepURL string) (int64, error) {
	return db.Supersede(ctx, utilityName, []string{keepURL})
}

// ActiveForUtility returns the ACTIVE documents of a utility ordered by id.
func (db *DB) ActiveForUtility(ctx context.Context, utilityName string) ([]TrackedDocument, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM tariff_documents
		 WHERE utility_name = $1 AND status = $2 ORDER BY id`,
		utilityName, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// ListByUtility returns all documents of a utility, active and obsolete,
// newest first.
func (db *DB) ListByUtility(ctx context.Context, utilityName string) ([]TrackedDocument, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM tariff_documents
		 WHERE utility_name = $1 ORDER BY id DESC`,
		utilityName)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func collectDocuments(rows pgx.Rows) ([]TrackedDocument, error) {
	var docs []TrackedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

func scanDocument(row pgx.Row) (*TrackedDocument, error) {
	var doc TrackedDocument
	err := row.Scan(
		&doc.ID, &doc.UtilityName, &doc.URL, &doc.DocumentName, &doc.Hash,
		&doc.LastChecked, &doc.TariffLastUpdated, &doc.Status, &doc.LinkText,
		&doc.ETag, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
