// Package detect decides whether a tracked document's content has changed
// since it was last observed.
package detect

import (
	"context"
	"time"

	"github.com/jonathan/tariff-monitor/internal/fetch"
)

// Prior is the last-known state of a tracked URL, used to decide whether a
// fresh fetch represents a change.
type Prior struct {
	Fingerprint    string // hex digest from the last successful fetch
	ETag           string
	RemoteModified *time.Time
}

// Result is the outcome of one change detection attempt.
type Result struct {
	Fingerprint    string
	ETag           string
	RemoteModified *time.Time
	Size           int64
	Changed        bool
	QuickHit       bool // true when the quick probe answered without a fetch
}

// Fingerprinter is the fetch capability the detector depends on.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, url string) (*fetch.Fingerprint, error)
	Probe(ctx context.Context, url string, state fetch.ProbeState) fetch.ProbeOutcome
}

// Detector performs change detection against a fetcher.
type Detector struct {
	fetcher Fingerprinter
}

// New creates a Detector backed by the given fetcher.
func New(fetcher Fingerprinter) *Detector {
	return &Detector{fetcher: fetcher}
}

// Detect determines whether the document at url differs from prior.
//
// In quick mode, a conditional probe may short-circuit: when the remote
// validators prove the content unchanged, the prior fingerprint is reused and
// no download happens. The probe is conservative — any inconclusive or
// "changed" outcome falls through to a full fetch, so a quick-mode run can
// never report changed=false for content that actually differs.
//
// A first observation (prior is nil or has no fingerprint) always counts as
// changed.
func (d *Detector) Detect(ctx context.Context, url string, prior *Prior, quick bool) (*Result, error) {
	if quick && prior != nil && prior.Fingerprint != "" {
		state := fetch.ProbeState{ETag: prior.ETag, LastModified: prior.RemoteModified}
		if d.fetcher.Probe(ctx, url, state) == fetch.ProbeUnchanged {
			return &Result{
				Fingerprint:    prior.Fingerprint,
				ETag:           prior.ETag,
				RemoteModified: prior.RemoteModified,
				Changed:        false,
				QuickHit:       true,
			}, nil
		}
	}

	fp, err := d.fetcher.Fingerprint(ctx, url)
	if err != nil {
		return nil, err
	}

	changed := prior == nil || prior.Fingerprint == "" || fp.Digest != prior.Fingerprint
	return &Result{
		Fingerprint:    fp.Digest,
		ETag:           fp.ETag,
		RemoteModified: fp.RemoteModified,
		Size:           fp.Size,
		Changed:        changed,
	}, nil
}
