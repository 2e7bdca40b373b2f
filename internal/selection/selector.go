// Package selection decides which discovered candidate URLs are the canonical
// tariff documents for a utility. The core treats the selector's rationale as
// opaque text: it is stored and reported, never interpreted.
package selection

import (
	"context"
	"fmt"

	"github.com/jonathan/tariff-monitor/internal/resolve"
)

// SelectedDocument is one URL the selector chose to track, with its
// selection rationale.
type SelectedDocument struct {
	URL       string `json:"url"`
	Rationale string `json:"rationale"`
}

// Result is the outcome of selecting documents for one utility.
type Result struct {
	Selected  []SelectedDocument `json:"selected"`
	Rationale string             `json:"overall_rationale"`
}

// Selector chooses which candidates to track for a utility. Implementations
// must be safe for use across goroutines.
type Selector interface {
	Select(ctx context.Context, utilityName string, candidates []resolve.Candidate) (*Result, error)
}

// Error represents a selector failure. The monitor treats it as zero
// candidates selected for the source, never as a crash.
type Error struct {
	UtilityName string
	Message     string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("selection error for %s: %s: %v", e.UtilityName, e.Message, e.Cause)
	}
	return fmt.Sprintf("selection error for %s: %s", e.UtilityName, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
