// Package llm provides the LLM client abstraction used for document
// selection.
package llm

// ModelTier represents the capability level of a model.
type ModelTier string

const (
	// TierLite is for simple tasks: classification and selection.
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning with structured output.
	TierStandard ModelTier = "standard"
)

// Config holds the model configuration for the application.
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model configuration.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
	}
}

// GetModel returns the model name for a tier, falling back to the lite tier.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}
