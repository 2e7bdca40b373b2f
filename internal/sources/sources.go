// Package sources loads the list of utility source pages a batch run
// monitors.
package sources

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Source is one utility source page to monitor.
type Source struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
}

var validate = validator.New()

// Load reads a JSON source-list file: an array of {name, url} objects.
// Every entry must carry a non-empty name and a well-formed URL; a malformed
// list is rejected as a whole so a run never starts against partial input.
func Load(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source list %s: %w", path, err)
	}

	var list []Source
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse source list %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("source list %s is empty", path)
	}

	seenURLs := make(map[string]bool, len(list))
	seenNames := make(map[string]bool, len(list))
	for i, s := range list {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("invalid source at index %d (%q): %w", i, s.Name, err)
		}
		if seenURLs[s.URL] {
			return nil, fmt.Errorf("duplicate source url at index %d: %s", i, s.URL)
		}
		seenURLs[s.URL] = true
		// Supersession is scoped per utility name; two sources sharing a name
		// would obsolete each other's documents on every run.
		if seenNames[s.Name] {
			return nil, fmt.Errorf("duplicate source name at index %d: %s", i, s.Name)
		}
		seenNames[s.Name] = true
	}

	return list, nil
}
