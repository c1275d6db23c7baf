// Package llm provides the natural-language-to-SQL translation clients.
package llm

import (
	"context"
)

// LLMClient is the provider-neutral completion interface. Use it for
// dependency injection so tests can substitute a mock.
type LLMClient interface {
	// GenerateResponse returns the model's completion for a prompt under the
	// given system message.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (string, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}
