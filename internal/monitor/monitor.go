// Package monitor orchestrates a batch monitoring run: for every configured
// source page it resolves candidate documents, asks the selector which are the
// canonical tariffs, detects changes per selected URL, and records the results
// in the document store.
package monitor

import (
	"context"
	"log"
	"net/url"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/tariff-monitor/internal/detect"
	"github.com/jonathan/tariff-monitor/internal/resolve"
	"github.com/jonathan/tariff-monitor/internal/run"
	"github.com/jonathan/tariff-monitor/internal/selection"
	"github.com/jonathan/tariff-monitor/internal/sources"
	"github.com/jonathan/tariff-monitor/internal/store"
)

// DefaultConcurrency bounds how many sources are processed at once.
const DefaultConcurrency = 4

// DocumentStore is the persistence capability the monitor depends on.
type DocumentStore interface {
	GetByURL(ctx context.Context, url string) (*store.TrackedDocument, error)
	Upsert(ctx context.Context, p store.UpsertParams) (*store.TrackedDocument, bool, error)
	Supersede(ctx context.Context, utilityName string, keepURLs []string) (int64, error)
}

// ChangeDetector decides whether a URL's content differs from its prior state.
type ChangeDetector interface {
	Detect(ctx context.Context, url string, prior *detect.Prior, quick bool) (*detect.Result, error)
}

// Monitor wires the run pipeline together. Sources are processed concurrently;
// the documents of a single source are processed in order.
type Monitor struct {
	Resolver    resolve.Resolver
	Selector    selection.Selector
	Detector    ChangeDetector
	Store       DocumentStore
	Concurrency int
	Quick       bool
	Verbose     bool
}

// Run processes every source in list and returns the aggregated record.
//
// Per-source failures (resolution, selection) and per-URL fetch failures are
// recorded in the source's outcome and never abort the run. Store failures
// are fatal: once persistence is broken there is nothing useful a run can do,
// and the partial record is returned alongside the error.
func (m *Monitor) Run(ctx context.Context, sourceListPath string, list []sources.Source) (*run.Record, error) {
	rec := run.NewRecord(sourceListPath, m.Quick, len(list))

	concurrency := m.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, src := range list {
		g.Go(func() error {
			outcome, err := m.processSource(gctx, src)
			rec.Sources[i] = outcome
			return err
		})
	}

	err := g.Wait()
	rec.Finish()
	return rec, err
}

// processSource runs the resolve → select → detect → persist pipeline for one
// source page. The returned error is non-nil only for store failures.
func (m *Monitor) processSource(ctx context.Context, src sources.Source) (run.SourceOutcome, error) {
	outcome := run.SourceOutcome{SourceName: src.Name, SourceURL: src.URL}

	if m.Verbose {
		log.Printf("[%s] resolving candidates from %s", src.Name, src.URL)
	}

	candidates, err := m.Resolver.Resolve(ctx, src.URL)
	if err != nil {
		outcome.RecordFailure(err)
		return outcome, nil
	}
	outcome.CandidatesFound = len(candidates)

	result, err := m.Selector.Select(ctx, src.Name, candidates)
	if err != nil {
		// A selector failure means no documents this run, not a crash.
		outcome.RecordFailure(err)
		return outcome, nil
	}
	outcome.CandidatesSelected = len(result.Selected)
	outcome.Rationale = result.Rationale

	linkText := make(map[string]string, len(candidates))
	for _, c := range candidates {
		linkText[c.URL] = c.LinkText
	}

	keepURLs := make([]string, 0, len(result.Selected))
	recorded := false

	for _, sel := range result.Selected {
		keepURLs = append(keepURLs, sel.URL)

		ok, storeErr := m.processDocument(ctx, src.Name, sel, linkText[sel.URL], &outcome)
		if storeErr != nil {
			return outcome, storeErr
		}
		recorded = recorded || ok
	}

	// Previously ACTIVE documents are superseded only once at least one
	// replacement has been recorded. Selected URLs stay in the keep set even
	// when their fetch failed, so a transient failure never obsoletes the
	// document it was refreshing.
	if recorded {
		n, err := m.Store.Supersede(ctx, src.Name, keepURLs)
		if err != nil {
			return outcome, err
		}
		if m.Verbose && n > 0 {
			log.Printf("[%s] superseded %d previously active document(s)", src.Name, n)
		}
	}

	return outcome, nil
}

// processDocument detects and persists one selected URL. It reports whether
// the document was successfully recorded; the returned error is non-nil only
// for store failures.
func (m *Monitor) processDocument(ctx context.Context, utilityName string, sel selection.SelectedDocument, linkText string, outcome *run.SourceOutcome) (bool, error) {
	existing, err := m.Store.GetByURL(ctx, sel.URL)
	if err != nil {
		return false, err
	}

	var prior *detect.Prior
	if existing != nil && existing.Hash != nil {
		prior = &detect.Prior{
			Fingerprint:    *existing.Hash,
			RemoteModified: existing.TariffLastUpdated,
		}
		if existing.ETag != nil {
			prior.ETag = *existing.ETag
		}
	}

	res, err := m.Detector.Detect(ctx, sel.URL, prior, m.Quick)
	if err != nil {
		if m.Verbose {
			log.Printf("[%s] fetch failed for %s: %v", utilityName, sel.URL, err)
		}
		outcome.RecordSelection(run.SelectionOutcome{
			URL:       sel.URL,
			Rationale: sel.Rationale,
			Err:       err.Error(),
		}, false)
		return false, nil
	}

	doc, isNew, err := m.Store.Upsert(ctx, store.UpsertParams{
		UtilityName:       utilityName,
		URL:               sel.URL,
		DocumentName:      documentNameFromURL(sel.URL),
		LinkText:          linkText,
		Hash:              res.Fingerprint,
		ETag:              res.ETag,
		LastChecked:       time.Now().UTC(),
		TariffLastUpdated: res.RemoteModified,
	})
	if err != nil {
		return false, err
	}

	if m.Verbose {
		log.Printf("[%s] %s changed=%t quick_hit=%t", utilityName, sel.URL, res.Changed, res.QuickHit)
	}

	outcome.RecordSelection(run.SelectionOutcome{
		URL:            sel.URL,
		Rationale:      sel.Rationale,
		Changed:        res.Changed,
		Status:         doc.Status,
		RemoteModified: res.RemoteModified,
		QuickHit:       res.QuickHit,
	}, isNew)
	return true, nil
}

// documentNameFromURL derives a display name from the URL's final path
// segment.
func documentNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "unknown.pdf"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "unknown.pdf"
	}
	return name
}
