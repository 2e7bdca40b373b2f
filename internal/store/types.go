package store

import "time"

// Status is the lifecycle state of a tracked document.
type Status string

// Document lifecycle states. A document is ACTIVE while it is the current
// canonical tariff for its utility; it becomes OBSOLETE when a newer document
// supersedes it. History is kept via status, never by deletion.
const (
	StatusActive   Status = "ACTIVE"
	StatusObsolete Status = "OBSOLETE"
)

// TrackedDocument is one row of tariff_documents: the current and historical
// change state of a single URL under observation.
type TrackedDocument struct {
	ID                int64      `json:"id"`
	UtilityName       string     `json:"utility_name"`
	URL               string     `json:"url"`
	DocumentName      *string    `json:"document_name,omitempty"`
	Hash              *string    `json:"hash,omitempty"` // nil before first successful fetch
	LastChecked       *time.Time `json:"last_checked,omitempty"`
	TariffLastUpdated *time.Time `json:"tariff_last_updated,omitempty"`
	Status            Status     `json:"status"`
	LinkText          *string    `json:"link_text,omitempty"`
	ETag              *string    `json:"etag,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// UpsertParams carries the detection result being recorded for a URL.
type UpsertParams struct {
	UtilityName       string
	URL               string
	DocumentName      string
	LinkText          string
	Hash              string
	ETag              string
	LastChecked       time.Time
	TariffLastUpdated *time.Time
}
