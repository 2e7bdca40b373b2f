// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/tariff-monitor/internal/run"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs a human-readable summary of a finished run.
func (p *Printer) PrintRunSummary(rec *run.Record) {
	if rec == nil {
		return
	}

	var sb strings.Builder

	mode := "full"
	if rec.QuickMode {
		mode = "quick"
	}
	sb.WriteString(fmt.Sprintf("Run:     %s\n", rec.RunID))
	sb.WriteString(fmt.Sprintf("Mode:    %s\n", mode))
	sb.WriteString(fmt.Sprintf("Sources: %d\n", len(rec.Sources)))
	sb.WriteString(fmt.Sprintf("Totals:  %d added, %d updated, %d errors",
		rec.TotalAdded(), rec.TotalUpdated(), rec.TotalErrors()))

	p.printBox("Run Summary", sb.String())
}

// PrintSourceOutcome outputs a human-readable summary of one source's results.
func (p *Printer) PrintSourceOutcome(src *run.SourceOutcome) {
	if src == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Found:    %d candidates\n", src.CandidatesFound))
	sb.WriteString(fmt.Sprintf("Selected: %d\n", src.CandidatesSelected))

	if src.Err != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", src.Err))
	}

	if len(src.Selections) > 0 {
		sb.WriteString("\nDocuments:\n")
		count := min(len(src.Selections), maxItemsToShow)
		for i := 0; i < count; i++ {
			sel := src.Selections[i]
			switch {
			case sel.Err != "":
				sb.WriteString(fmt.Sprintf("  • %s (error)\n", sel.URL))
			case sel.Changed:
				sb.WriteString(fmt.Sprintf("  • %s (changed)\n", sel.URL))
			default:
				sb.WriteString(fmt.Sprintf("  • %s (unchanged)\n", sel.URL))
			}
		}
		if len(src.Selections) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(src.Selections)-maxItemsToShow))
		}
	}

	sb.WriteString(fmt.Sprintf("\nCounts: %d added, %d updated, %d errors",
		src.Added, src.Updated, src.Errors))

	p.printBox(src.SourceName, sb.String())
}
