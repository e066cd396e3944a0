package analyst

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/vigil/pkg/models"
)

// stubProvider returns a canned response or error.
type stubProvider struct {
	response string
	err      error
}

func (s *stubProvider) Generate(_ context.Context, _, _ string) (string, error) {
	return s.response, s.err
}

func testSignal() models.ThreatSignal {
	return models.ThreatSignal{
		ID:                "sig-1",
		ThreatType:        models.ThreatBotTraffic,
		CustomerName:      "acme",
		SourceIP:          "203.0.113.1",
		RequestCount:      100,
		TimeWindowMinutes: 10,
	}
}

func TestAnalyst_MockMode(t *testing.T) {
	for _, role := range Roles() {
		t.Run(role.Name, func(t *testing.T) {
			a := New(role, nil, true)
			finding := a.Analyze(context.Background(), testSignal(), Context{})

			assert.Equal(t, role.Name, finding.AgentName)
			assert.InDelta(t, 0.85, finding.Confidence, 1e-9)
			assert.NotEmpty(t, finding.Analysis)
			assert.NotEmpty(t, finding.KeyFindings)
			assert.False(t, finding.IsSentinel())
		})
	}
}

func TestAnalyst_MockPriorityDeterministic(t *testing.T) {
	a := New(Roles()[4], nil, true)
	require.Equal(t, models.AgentPriority, a.Name())

	s := testSignal()
	s.ThreatType = models.ThreatCredentialStuffing
	finding := a.Analyze(context.Background(), s, Context{})
	assert.Contains(t, finding.Analysis, "High priority")

	s.ThreatType = models.ThreatGeoAnomaly
	finding = a.Analyze(context.Background(), s, Context{})
	assert.Contains(t, finding.Analysis, "Medium priority")
}

func TestAnalyst_ParsesProviderJSON(t *testing.T) {
	p := &stubProvider{response: `Here is my assessment:
{"analysis": "Sustained scraping pattern.", "confidence": 0.92, "key_findings": ["high rpm"], "recommendations": ["rate limit"]}
Let me know if you need more.`}
	a := New(historicalRole, p, false)

	finding := a.Analyze(context.Background(), testSignal(), Context{})
	assert.Equal(t, models.AgentHistorical, finding.AgentName)
	assert.Equal(t, "Sustained scraping pattern.", finding.Analysis)
	assert.InDelta(t, 0.92, finding.Confidence, 1e-9)
	assert.Equal(t, []string{"high rpm"}, finding.KeyFindings)
	assert.False(t, finding.IsSentinel())
}

func TestAnalyst_ClampsConfidence(t *testing.T) {
	p := &stubProvider{response: `{"analysis": "x", "confidence": 1.7}`}
	a := New(configRole, p, false)
	finding := a.Analyze(context.Background(), testSignal(), Context{})
	assert.InDelta(t, 1.0, finding.Confidence, 1e-9)
}

func TestAnalyst_SentinelOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"provider error", &stubProvider{err: errors.New("boom")}},
		{"no json", &stubProvider{response: "I cannot help with that."}},
		{"malformed json", &stubProvider{response: `{"analysis": `}},
		{"missing analysis", &stubProvider{response: `{"confidence": 0.5}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(devopsRole, tt.provider, false)
			finding := a.Analyze(context.Background(), testSignal(), Context{})

			assert.True(t, finding.IsSentinel())
			assert.Equal(t, models.AgentDevops, finding.AgentName)
			assert.Equal(t, []string{"Error"}, finding.KeyFindings)
			assert.Equal(t, []string{"Manual review required"}, finding.Recommendations)
		})
	}
}

func TestNewAll(t *testing.T) {
	set := NewAll(&stubProvider{}, true)
	require.Len(t, set, 5)
	for _, name := range models.AgentNames {
		require.Contains(t, set, name)
		assert.Equal(t, name, set[name].Name())
	}
}

func TestExtractJSON(t *testing.T) {
	out, err := extractJSON(`prefix {"a": {"b": 1}} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, out)

	_, err = extractJSON("no object here")
	assert.Error(t, err)
}
