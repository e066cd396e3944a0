package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgewatch/vigil/pkg/models"
	"github.com/edgewatch/vigil/pkg/reasoning"
)

// Analyst examines one signal through the lens of its role. Analysts are
// stateless and shared across requests; Analyze is safe for concurrent use.
type Analyst struct {
	role     Role
	provider reasoning.Provider
	mock     bool
}

// New creates an analyst for the given role. When mock is true the
// provider is skipped entirely and Analyze returns the role's pre-formed
// stub finding with confidence 0.85.
func New(role Role, provider reasoning.Provider, mock bool) *Analyst {
	return &Analyst{role: role, provider: provider, mock: mock}
}

// NewAll creates the full analyst set, one per role, keyed by agent name.
func NewAll(provider reasoning.Provider, mock bool) map[string]*Analyst {
	out := make(map[string]*Analyst, len(Roles()))
	for _, role := range Roles() {
		out[role.Name] = New(role, provider, mock)
	}
	return out
}

// Name returns the analyst's agent name.
func (a *Analyst) Name() string {
	return a.role.Name
}

// Analyze produces the analyst's finding for the signal. It never returns
// an error: provider failures, parse failures, and ctx expiry all degrade
// to the sentinel finding.
func (a *Analyst) Analyze(ctx context.Context, signal models.ThreatSignal, bag Context) models.AgentFinding {
	start := time.Now()

	if a.mock {
		return models.AgentFinding{
			AgentName:        a.role.Name,
			Analysis:         a.role.mockAnalysis(signal),
			Confidence:       0.85,
			KeyFindings:      []string{fmt.Sprintf("Reviewed %s signal from %s", signal.ThreatType, signal.SourceIP)},
			Recommendations:  []string{"Continue monitoring"},
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}
	}

	raw, err := a.provider.Generate(ctx, a.role.systemPrompt, a.role.buildPrompt(signal, bag))
	if err != nil {
		slog.Warn("Analyst provider call failed",
			"agent", a.role.Name, "signal_id", signal.ID, "error", err)
		return models.NewSentinelFinding(a.role.Name, time.Since(start).Milliseconds())
	}

	finding, err := a.parseFinding(raw)
	if err != nil {
		slog.Warn("Analyst response parse failed",
			"agent", a.role.Name, "signal_id", signal.ID, "error", err)
		return models.NewSentinelFinding(a.role.Name, time.Since(start).Milliseconds())
	}

	finding.ProcessingTimeMs = time.Since(start).Milliseconds()
	return finding
}

// providerFinding is the JSON shape the provider is prompted to return.
type providerFinding struct {
	Analysis        string   `json:"analysis"`
	Confidence      float64  `json:"confidence"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
}

// parseFinding extracts and decodes the JSON object from the provider's
// response. The provider is untrusted: prose around the object is
// tolerated, out-of-range confidence is clamped.
func (a *Analyst) parseFinding(raw string) (models.AgentFinding, error) {
	jsonPart, err := extractJSON(raw)
	if err != nil {
		return models.AgentFinding{}, err
	}

	var pf providerFinding
	if err := json.Unmarshal([]byte(jsonPart), &pf); err != nil {
		return models.AgentFinding{}, fmt.Errorf("invalid finding JSON: %w", err)
	}
	if pf.Analysis == "" {
		return models.AgentFinding{}, fmt.Errorf("finding missing analysis text")
	}

	confidence := pf.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return models.AgentFinding{
		AgentName:       a.role.Name,
		Analysis:        pf.Analysis,
		Confidence:      confidence,
		KeyFindings:     pf.KeyFindings,
		Recommendations: pf.Recommendations,
	}, nil
}

// extractJSON returns the substring from the first '{' to the last '}'.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in provider response")
	}
	return raw[start : end+1], nil
}
