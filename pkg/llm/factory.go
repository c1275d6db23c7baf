package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds the provider settings for creating a client.
type Config struct {
	Provider string // "openai" (default, covers compatible endpoints) or "anthropic"
	Endpoint string // base URL override for OpenAI-compatible endpoints
	Model    string // model name, e.g. "gpt-4o" or "claude-sonnet-4-0"
	APIKey   string // optional for local OpenAI-compatible endpoints
}

// Configured reports whether the config names a usable provider.
func (c *Config) Configured() bool {
	return c != nil && c.Model != ""
}

// NewClient creates a client for the configured provider. An empty provider
// defaults to OpenAI-compatible, which also covers local inference servers
// through the Endpoint override.
func NewClient(cfg *Config, logger *zap.Logger) (LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm config is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want %s or %s)", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
}
