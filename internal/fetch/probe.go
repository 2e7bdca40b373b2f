// Package fetch - probe.go implements the conditional metadata probe used by
// quick mode to avoid full downloads.
package fetch

import (
	"context"
	"net/http"
	"time"
)

// ProbeOutcome is the result of a conditional metadata probe.
type ProbeOutcome int

const (
	// ProbeInconclusive means the remote gave no usable validator; callers
	// must fall through to a full fetch.
	ProbeInconclusive ProbeOutcome = iota
	// ProbeUnchanged means the remote provably has not changed relative to
	// the supplied state.
	ProbeUnchanged
	// ProbeChanged means the remote validators differ from the supplied
	// state; content has likely changed.
	ProbeChanged
)

func (o ProbeOutcome) String() string {
	switch o {
	case ProbeUnchanged:
		return "unchanged"
	case ProbeChanged:
		return "changed"
	default:
		return "inconclusive"
	}
}

// ProbeState is the last-known remote metadata for a tracked URL.
type ProbeState struct {
	ETag         string
	LastModified *time.Time
}

// Probe issues a HEAD request and compares the remote validators (ETag,
// Last-Modified) against state. Any error or missing validator yields
// ProbeInconclusive: the probe must never claim a change that did not happen,
// but it may always decline to answer.
func (f *Fetcher) Probe(ctx context.Context, urlStr string, state ProbeState) ProbeOutcome {
	if state.ETag == "" && state.LastModified == nil {
		return ProbeInconclusive
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, urlStr, nil)
	if err != nil {
		return ProbeInconclusive
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return ProbeInconclusive
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return ProbeInconclusive
	}

	// ETag is the stronger validator; prefer it when both sides have one.
	if etag := resp.Header.Get("ETag"); etag != "" && state.ETag != "" {
		if etag == state.ETag {
			return ProbeUnchanged
		}
		return ProbeChanged
	}

	if state.LastModified != nil {
		if remote := parseHTTPTime(resp.Header.Get("Last-Modified")); remote != nil {
			if !remote.After(*state.LastModified) {
				return ProbeUnchanged
			}
			return ProbeChanged
		}
	}

	return ProbeInconclusive
}
