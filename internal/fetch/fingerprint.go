// Package fetch - fingerprint.go computes content fingerprints for fetched
// documents.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint holds the content digest and lightweight remote metadata for a
// document retrieved from a URL.
type Fingerprint struct {
	Digest         string // hex-encoded SHA-256 of the exact retrieved bytes
	ETag           string
	RemoteModified *time.Time
	Size           int64
}

// Digest returns the hex-encoded SHA-256 digest of data. Identical bytes
// always yield identical digests; no normalization is applied.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint downloads the document at urlStr and returns its content
// fingerprint together with the remote modification metadata the server
// exposed. Retries follow the fetcher's attempt budget.
func (f *Fetcher) Fingerprint(ctx context.Context, urlStr string) (*Fingerprint, error) {
	resp, err := f.Get(ctx, urlStr)
	if err != nil {
		return nil, err
	}

	return &Fingerprint{
		Digest:         Digest(resp.Body),
		ETag:           resp.ETag,
		RemoteModified: resp.LastModified,
		Size:           int64(len(resp.Body)),
	}, nil
}
