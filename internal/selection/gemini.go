package selection

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/tariff-monitor/internal/llm"
	"github.com/jonathan/tariff-monitor/internal/prompts"
	"github.com/jonathan/tariff-monitor/internal/resolve"
	"github.com/jonathan/tariff-monitor/internal/schemas"
)

//go:embed selection_result.schema.json
var resultSchema string

// LLMSelector selects tariff documents using an LLM. The model's JSON output
// is validated against a schema and cross-checked against the candidate list
// before it is trusted.
type LLMSelector struct {
	client llm.Client
}

// NewLLMSelector creates a selector backed by the given LLM client.
func NewLLMSelector(client llm.Client) *LLMSelector {
	return &LLMSelector{client: client}
}

// Select asks the LLM which candidates are the utility's canonical tariff
// documents. URLs not present in the candidate list are dropped: the model
// may only pick, never invent.
func (s *LLMSelector) Select(ctx context.Context, utilityName string, candidates []resolve.Candidate) (*Result, error) {
	if len(candidates) == 0 {
		return &Result{Selected: []SelectedDocument{}}, nil
	}

	prompt := buildSelectionPrompt(utilityName, candidates)
	responseText, err := s.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, &Error{UtilityName: utilityName, Message: "LLM generation failed", Cause: err}
	}

	result, err := parseSelectionResponse(responseText, candidates)
	if err != nil {
		return nil, &Error{UtilityName: utilityName, Message: "failed to parse selection response", Cause: err}
	}
	return result, nil
}

// buildSelectionPrompt renders the selection prompt for a candidate list.
func buildSelectionPrompt(utilityName string, candidates []resolve.Candidate) string {
	var sb strings.Builder
	for _, c := range candidates {
		sb.WriteString(fmt.Sprintf("- URL: %s\n  Text: %s\n", c.URL, c.LinkText))
		if c.Context != "" {
			sb.WriteString(fmt.Sprintf("  Context: %s\n", c.Context))
		}
	}

	template := prompts.MustGet("selection.json", "select-documents")
	return prompts.Format(template, map[string]string{
		"UtilityName": utilityName,
		"Candidates":  sb.String(),
	})
}

// parseSelectionResponse validates and decodes the model's JSON output,
// keeping only URLs that appear in the candidate list.
func parseSelectionResponse(responseText string, candidates []resolve.Candidate) (*Result, error) {
	responseText = llm.CleanJSONBlock(responseText)

	if err := schemas.ValidateJSONString(resultSchema, responseText); err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal([]byte(responseText), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal selection JSON: %w", err)
	}

	known := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		known[c.URL] = true
	}

	kept := make([]SelectedDocument, 0, len(result.Selected))
	seen := make(map[string]bool)
	for _, sel := range result.Selected {
		if !known[sel.URL] || seen[sel.URL] {
			continue
		}
		seen[sel.URL] = true
		kept = append(kept, sel)
	}
	result.Selected = kept

	return &result, nil
}
