// Package run accumulates the outcomes of one batch monitoring run and
// renders them into a report. A Record lives only for the duration of a run;
// nothing here touches the document store.
package run

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/tariff-monitor/internal/store"
)

// SelectionOutcome is the result of processing one selected URL.
type SelectionOutcome struct {
	URL            string       `json:"url"`
	Rationale      string       `json:"rationale,omitempty"`
	Changed        bool         `json:"changed"`
	Status         store.Status `json:"status,omitempty"`
	RemoteModified *time.Time   `json:"remote_modified,omitempty"`
	QuickHit       bool         `json:"quick_hit,omitempty"`
	Err            string       `json:"error,omitempty"` // non-empty when the fetch failed
}

// SourceOutcome accumulates one source page's results, in processing order.
type SourceOutcome struct {
	SourceName         string             `json:"source_name"`
	SourceURL          string             `json:"source_url"`
	CandidatesFound    int                `json:"candidates_found"`
	CandidatesSelected int                `json:"candidates_selected"`
	Rationale          string             `json:"rationale,omitempty"`
	Selections         []SelectionOutcome `json:"selections,omitempty"`
	Added              int                `json:"added"`
	Updated            int                `json:"updated"`
	Errors             int                `json:"errors"`
	Err                string             `json:"error,omitempty"` // source-level failure (resolution or selection)
}

// RecordFailure notes a source-level failure. The source still appears in the
// report; the failure counts as one error.
func (s *SourceOutcome) RecordFailure(err error) {
	s.Err = err.Error()
	s.Errors++
}

// RecordSelection appends a selection outcome and updates the counters:
// added when the store reported a new record, updated when an existing
// record's content changed, neither when content was unchanged. A failed
// fetch counts only as an error.
func (s *SourceOutcome) RecordSelection(sel SelectionOutcome, isNew bool) {
	s.Selections = append(s.Selections, sel)
	switch {
	case sel.Err != "":
		s.Errors++
	case isNew:
		s.Added++
	case sel.Changed:
		s.Updated++
	}
}

// Record is the ephemeral aggregate of one batch invocation.
type Record struct {
	RunID          uuid.UUID       `json:"run_id"`
	SourceListPath string          `json:"source_list"`
	QuickMode      bool            `json:"quick_mode"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Sources        []SourceOutcome `json:"sources"`
}

// NewRecord creates a Record with one pre-allocated slot per source. Slots
// are written by position so the report order always matches the input
// order, even when sources are processed concurrently.
func NewRecord(sourceListPath string, quick bool, numSources int) *Record {
	return &Record{
		RunID:          uuid.New(),
		SourceListPath: sourceListPath,
		QuickMode:      quick,
		StartedAt:      time.Now().UTC(),
		Sources:        make([]SourceOutcome, numSources),
	}
}

// Finish stamps the record's completion time.
func (r *Record) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// TotalAdded sums added counts across sources.
func (r *Record) TotalAdded() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Added
	}
	return total
}

// TotalUpdated sums updated counts across sources.
func (r *Record) TotalUpdated() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Updated
	}
	return total
}

// TotalErrors sums error counts across sources.
func (r *Record) TotalErrors() int {
	total := 0
	for _, s := range r.Sources {
		total += s.Errors
	}
	return total
}
