// Package reasoning abstracts the LLM behind a Provider interface: a
// single prompt-in, JSON-shaped-text-out call. The live backing speaks the
// OpenAI-compatible chat completions wire API; the mock backing returns
// deterministic stubs and is a first-class runtime mode used for load
// testing and reproduction, not a test hook.
package reasoning

import (
	"context"

	"github.com/edgewatch/vigil/pkg/config"
)

// Provider generates a structured response for a prompt pair.
// Implementations must be safe for concurrent use; the per-call deadline
// comes from ctx and from the provider's configured timeout, whichever is
// shorter. Deadline expiry surfaces as a call failure.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// New selects a provider implementation from the reasoning config.
func New(cfg config.ReasoningConfig) Provider {
	if cfg.Mode == config.ReasoningModeMock {
		return NewMockProvider()
	}
	return NewHTTPProvider(cfg)
}
