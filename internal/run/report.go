package run

import (
	"fmt"
	"strings"
	"time"
)

// summaryRationaleLimit caps the rationale column in the summary table.
// Truncation is cosmetic only; the full text appears in the detail section.
const summaryRationaleLimit = 80

// RenderMarkdown renders a run record as a Markdown report: a header, a
// per-source summary table, and a detail section per source. The renderer is
// pure; calling it twice on the same record yields identical output.
func RenderMarkdown(r *Record) string {
	var sb strings.Builder

	mode := "full"
	if r.QuickMode {
		mode = "quick"
	}

	sb.WriteString("# Tariff Monitor Report\n\n")
	fmt.Fprintf(&sb, "- Run ID: `%s`\n", r.RunID)
	fmt.Fprintf(&sb, "- Source list: `%s`\n", r.SourceListPath)
	fmt.Fprintf(&sb, "- Mode: %s\n", mode)
	fmt.Fprintf(&sb, "- Started: %s\n", r.StartedAt.Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "- Finished: %s (%s)\n", r.FinishedAt.Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(&sb, "- Totals: %d added, %d updated, %d errors\n\n", r.TotalAdded(), r.TotalUpdated(), r.TotalErrors())

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| # | Source | Found | Selected | Rationale | Added | Updated | Errors |\n")
	sb.WriteString("|---|--------|-------|----------|-----------|-------|---------|--------|\n")
	for i, src := range r.Sources {
		ordinal := i + 1
		fmt.Fprintf(&sb, "| %d | [%s](#%s) | %d | %d | %s | %d | %d | %d |\n",
			ordinal,
			escapeCell(src.SourceName),
			anchorFor(ordinal, src.SourceName),
			src.CandidatesFound,
			src.CandidatesSelected,
			escapeCell(truncate(src.Rationale, summaryRationaleLimit)),
			src.Added,
			src.Updated,
			src.Errors,
		)
	}
	sb.WriteString("\n")

	for i, src := range r.Sources {
		renderSourceDetail(&sb, i+1, src)
	}

	return sb.String()
}

func renderSourceDetail(sb *strings.Builder, ordinal int, src SourceOutcome) {
	fmt.Fprintf(sb, "## %d. %s\n\n", ordinal, src.SourceName)
	fmt.Fprintf(sb, "Source page: <%s>\n\n", src.SourceURL)
	fmt.Fprintf(sb, "Candidates found: %d, selected: %d.\n\n", src.CandidatesFound, src.CandidatesSelected)
	if src.Err != "" {
		fmt.Fprintf(sb, "**Error:** %s\n\n", src.Err)
	}
	if src.Rationale != "" {
		fmt.Fprintf(sb, "%s\n\n", src.Rationale)
	}

	if len(src.Selections) == 0 {
		sb.WriteString("No documents were selected for this source.\n\n")
		return
	}

	for _, sel := range src.Selections {
		if sel.Err != "" {
			fmt.Fprintf(sb, "- <%s> — **error**: %s\n", sel.URL, sel.Err)
			continue
		}
		line := fmt.Sprintf("- <%s> — %s, status %s", sel.URL, changedLabel(sel), sel.Status)
		if sel.RemoteModified != nil {
			line += fmt.Sprintf(", remote modified %s", sel.RemoteModified.Format("2006-01-02"))
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		if sel.Rationale != "" {
			fmt.Fprintf(sb, "  - %s\n", sel.Rationale)
		}
	}
	sb.WriteString("\n")
}

func changedLabel(sel SelectionOutcome) string {
	if !sel.Changed {
		if sel.QuickHit {
			return "unchanged (quick probe)"
		}
		return "unchanged"
	}
	return "changed"
}

// anchorFor builds the GitHub-style anchor for a "## N. Name" heading.
func anchorFor(ordinal int, name string) string {
	heading := fmt.Sprintf("%d. %s", ordinal, name)
	var sb strings.Builder
	for _, r := range strings.ToLower(heading) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-':
			sb.WriteRune('-')
		}
	}
	return sb.String()
}

// truncate shortens s to limit runes. Slicing runes, not bytes, keeps a
// multi-byte character from being cut in half at the boundary.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}

// escapeCell keeps table cells on one row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
