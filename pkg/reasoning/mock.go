package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
)

// MockProvider returns deterministic finding-shaped JSON without any I/O.
// The same prompt pair always yields the same response.
type MockProvider struct{}

// NewMockProvider creates the deterministic stub provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Generate returns a fixed-shape JSON response. A short hash of the prompts
// is embedded so distinct inputs are distinguishable in logs and tests
// while staying fully deterministic.
func (m *MockProvider) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(systemPrompt))
	_, _ = h.Write([]byte(userPrompt))
	tag := fmt.Sprintf("%08x", h.Sum32())

	resp := map[string]any{
		"analysis":        fmt.Sprintf("Mock analysis (%s): no anomalous behavior beyond the reported signal.", tag),
		"confidence":      0.85,
		"key_findings":    []string{fmt.Sprintf("Mock finding %s", tag)},
		"recommendations": []string{"Continue monitoring"},
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
