package run

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/tariff-monitor/internal/store"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord("sources.json", true, 3)

	assert.NotEqual(t, uuid.Nil, r.RunID)
	assert.Equal(t, "sources.json", r.SourceListPath)
	assert.True(t, r.QuickMode)
	assert.Len(t, r.Sources, 3)
	assert.False(t, r.StartedAt.IsZero())
	assert.True(t, r.FinishedAt.IsZero())

	r.Finish()
	assert.False(t, r.FinishedAt.IsZero())
}

func TestRecordSelection_Counters(t *testing.T) {
	var src SourceOutcome

	src.RecordSelection(SelectionOutcome{URL: "https://a.example/new.pdf", Changed: true, Status: store.StatusActive}, true)
	src.RecordSelection(SelectionOutcome{URL: "https://a.example/changed.pdf", Changed: true, Status: store.StatusActive}, false)
	src.RecordSelection(SelectionOutcome{URL: "https://a.example/same.pdf", Changed: false, Status: store.StatusActive}, false)
	src.RecordSelection(SelectionOutcome{URL: "https://a.example/broken.pdf", Err: "fetch failed"}, false)

	assert.Equal(t, 1, src.Added)
	assert.Equal(t, 1, src.Updated)
	assert.Equal(t, 1, src.Errors)
	assert.Len(t, src.Selections, 4)
}

func TestRecordSelection_UnchangedCountsNothing(t *testing.T) {
	var src SourceOutcome

	src.RecordSelection(SelectionOutcome{URL: "https://a.example/doc.pdf", Changed: true}, true)
	// The same document observed again with identical content.
	src.RecordSelection(SelectionOutcome{URL: "https://a.example/doc.pdf", Changed: false}, false)

	assert.Equal(t, 1, src.Added)
	assert.Equal(t, 0, src.Updated)
}

func TestRecordFailure(t *testing.T) {
	var src SourceOutcome
	src.RecordFailure(assert.AnError)

	assert.Equal(t, assert.AnError.Error(), src.Err)
	assert.Equal(t, 1, src.Errors)
}

func TestTotals(t *testing.T) {
	r := NewRecord("sources.json", false, 2)
	r.Sources[0] = SourceOutcome{Added: 2, Updated: 1}
	r.Sources[1] = SourceOutcome{Added: 1, Errors: 3}

	assert.Equal(t, 3, r.TotalAdded())
	assert.Equal(t, 1, r.TotalUpdated())
	assert.Equal(t, 3, r.TotalErrors())
}

func TestRecord_PreservesSourceOrder(t *testing.T) {
	r := NewRecord("sources.json", false, 3)

	// Filled out of order, as a concurrent run would.
	r.Sources[2] = SourceOutcome{SourceName: "C"}
	r.Sources[0] = SourceOutcome{SourceName: "A"}
	r.Sources[1] = SourceOutcome{SourceName: "B"}

	require.Len(t, r.Sources, 3)
	assert.Equal(t, "A", r.Sources[0].SourceName)
	assert.Equal(t, "B", r.Sources[1].SourceName)
	assert.Equal(t, "C", r.Sources[2].SourceName)
}
