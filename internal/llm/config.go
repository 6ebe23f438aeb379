// Package llm provides centralized LLM configuration, provider clients, and the structured invoker
// used by the generation pipeline.
package llm

import (
	"fmt"
	"maps"
	"strings"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for cheap checks such as the topic gate
	TierLite ModelTier = "lite"
	// TierStandard is for bullet writing and unification
	TierStandard ModelTier = "standard"
	// TierAdvanced is for topic planning over a whole experience
	TierAdvanced ModelTier = "advanced"
)

// tierOrder lists tiers from most to least capable
var tierOrder = []ModelTier{TierAdvanced, TierStandard, TierLite}

// Provider names an LLM backend
type Provider string

const (
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI also covers OpenAI-compatible endpoints selected through Config.BaseURL
	ProviderOpenAI Provider = "openai"
)

const defaultTemperature = 0.1

// Config selects the provider and the model used for each tier
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	BaseURL         string
	Temperature     float64 // 0 means defaultTemperature
	MaxOutputTokens int32   // 0 leaves the provider limit
}

// DefaultConfig returns the Gemini defaults
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

func DefaultGeminiConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

func DefaultOpenAIConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Models: map[ModelTier]string{
			TierLite:     "gpt-4o-mini",
			TierStandard: "gpt-4o-mini",
			TierAdvanced: "gpt-4o",
		},
	}
}

// ConfigFor returns the defaults for a provider. Unknown providers get the Gemini defaults.
func ConfigFor(provider Provider) *Config {
	if provider == ProviderOpenAI {
		return DefaultOpenAIConfig()
	}
	return DefaultGeminiConfig()
}

// ParseTier maps a tier name such as "Advanced" to its ModelTier
func ParseTier(name string) (ModelTier, error) {
	tier := ModelTier(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range tierOrder {
		if tier == known {
			return tier, nil
		}
	}
	return "", fmt.Errorf("unknown model tier %q", name)
}

// GetModel returns the model for a tier. A tier without a model steps down to the next less
// capable tier that has one; an unknown tier starts from TierStandard.
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	start := 1
	for i, known := range tierOrder {
		if known == tier {
			start = i + 1
		}
	}
	for _, next := range tierOrder[min(start, len(tierOrder)):] {
		if model := c.Models[next]; model != "" {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of the config that uses model for tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	next := *c
	next.Models = maps.Clone(c.Models)
	if next.Models == nil {
		next.Models = make(map[ModelTier]string, 1)
	}
	next.Models[tier] = model
	return &next
}

// WithOverrides applies tier-name to model overrides such as {"advanced": "llama3.1:70b"}
func (c *Config) WithOverrides(overrides map[string]string) (*Config, error) {
	next := c
	for name, model := range overrides {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, err
		}
		next = next.WithModel(tier, model)
	}
	return next, nil
}

func (c *Config) temperature() float64 {
	if c.Temperature <= 0 {
		return defaultTemperature
	}
	return c.Temperature
}
