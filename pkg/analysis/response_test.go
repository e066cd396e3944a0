package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgewatch/vigil/pkg/models"
)

func planSignal(threat models.ThreatType) models.ThreatSignal {
	return models.ThreatSignal{
		ID:                "sig-plan",
		ThreatType:        threat,
		CustomerName:      "acme",
		SourceIP:          "198.51.100.9",
		RequestCount:      2000,
		TimeWindowMinutes: 5,
	}
}

func realThreatScore() models.FPScore {
	return models.FPScore{Score: 0.2, Confidence: 0.7, Recommendation: models.RecommendLikelyRealThreat}
}

var allThreats = []models.ThreatType{
	models.ThreatBotTraffic, models.ThreatCredentialStuffing, models.ThreatAccountTakeover,
	models.ThreatDataScraping, models.ThreatGeoAnomaly, models.ThreatRateLimitBreach,
	models.ThreatBruteForce,
}

var actionableSeverities = []models.Severity{
	models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow,
}

func TestResponseEngine_TemplateCoverage(t *testing.T) {
	e := NewResponseEngine()
	for _, threat := range allThreats {
		for _, severity := range actionableSeverities {
			t.Run(fmt.Sprintf("%s_%s", threat, severity), func(t *testing.T) {
				plan := e.GeneratePlan(planSignal(threat), severity, realThreatScore(), nil, nil)

				assert.NotEmpty(t, plan.PrimaryAction.ActionType)
				assert.NotEqual(t, models.ActionNone, plan.PrimaryAction.ActionType)
				assert.NotEmpty(t, plan.PrimaryAction.Target)
				assert.NotEmpty(t, plan.PrimaryAction.Reason)
				assert.Equal(t, slaMinutes[severity], plan.SLAMinutes)
				assert.Equal(t, plan.SLAMinutes/2, plan.AutoEscalateAfterMinutes)
				assert.LessOrEqual(t, plan.AutoEscalateAfterMinutes, plan.SLAMinutes)
				assert.NotEmpty(t, plan.EscalationPath)

				for _, action := range append([]models.ResponseAction{plan.PrimaryAction}, plan.SecondaryActions...) {
					assert.NotEqual(t, action.AutoExecutable, action.RequiresApproval,
						"auto_executable and requires_approval must be mutually exclusive")
				}
			})
		}
	}
}

func TestResponseEngine_KnownTemplates(t *testing.T) {
	e := NewResponseEngine()

	plan := e.GeneratePlan(planSignal(models.ThreatCredentialStuffing), models.SeverityCritical, realThreatScore(), nil, nil)
	assert.Equal(t, models.ActionBlockIP, plan.PrimaryAction.ActionType)
	assert.Equal(t, models.UrgencyImmediate, plan.PrimaryAction.Urgency)
	require.Len(t, plan.SecondaryActions, 2)
	assert.Equal(t, models.ActionChallenge, plan.SecondaryActions[0].ActionType)
	assert.Equal(t, models.ActionEscalate, plan.SecondaryActions[1].ActionType)

	plan = e.GeneratePlan(planSignal(models.ThreatRateLimitBreach), models.SeverityMedium, realThreatScore(), nil, nil)
	assert.Equal(t, models.ActionRateLimit, plan.PrimaryAction.ActionType)
	assert.Equal(t, models.UrgencyNormal, plan.PrimaryAction.Urgency)
	require.Len(t, plan.SecondaryActions, 1)
	assert.Equal(t, models.ActionMonitor, plan.SecondaryActions[0].ActionType)
}

func TestResponseEngine_InfoSeverityFallback(t *testing.T) {
	e := NewResponseEngine()
	plan := e.GeneratePlan(planSignal(models.ThreatBotTraffic), models.SeverityInfo, realThreatScore(), nil, nil)

	assert.Equal(t, models.ActionMonitor, plan.PrimaryAction.ActionType)
	assert.Equal(t, models.UrgencyNormal, plan.PrimaryAction.Urgency)
	assert.Empty(t, plan.SecondaryActions)
	assert.Equal(t, 480, plan.SLAMinutes)
}

func TestResponseEngine_FalsePositiveOverride(t *testing.T) {
	e := NewResponseEngine()
	fp := models.FPScore{
		Score:          0.82,
		Confidence:     0.9,
		Recommendation: models.RecommendLikelyFalsePositive,
		Explanation:    "benign crawler",
	}
	plan := e.GeneratePlan(planSignal(models.ThreatCredentialStuffing), models.SeverityCritical, fp, nil, nil)

	assert.Equal(t, models.ActionMonitor, plan.PrimaryAction.ActionType)
	assert.Equal(t, models.UrgencyLow, plan.PrimaryAction.Urgency)
	assert.Equal(t, "198.51.100.9", plan.PrimaryAction.Target)
	assert.True(t, plan.PrimaryAction.AutoExecutable)
	assert.False(t, plan.PrimaryAction.RequiresApproval)
	assert.Equal(t, map[string]any{"duration_minutes": 30}, plan.PrimaryAction.Parameters)
	assert.Empty(t, plan.SecondaryActions)
	assert.Equal(t, []string{"SOC Tier 1"}, plan.EscalationPath)
	assert.Equal(t, 240, plan.SLAMinutes)
	assert.Equal(t, 120, plan.AutoEscalateAfterMinutes)
	assert.Contains(t, plan.Notes, "benign crawler")
}

func TestResponseEngine_FPOverrideBoundary(t *testing.T) {
	e := NewResponseEngine()

	// Exactly 0.7 triggers the override.
	fp := models.FPScore{Score: 0.7, Confidence: 0.8}
	plan := e.GeneratePlan(planSignal(models.ThreatBruteForce), models.SeverityCritical, fp, nil, nil)
	assert.Equal(t, models.ActionMonitor, plan.PrimaryAction.ActionType)

	// Just below keeps the severity template.
	fp.Score = 0.699
	plan = e.GeneratePlan(planSignal(models.ThreatBruteForce), models.SeverityCritical, fp, nil, nil)
	assert.Equal(t, models.ActionBlockIP, plan.PrimaryAction.ActionType)
}

func TestResponseEngine_AutoBlockPolicy(t *testing.T) {
	e := NewResponseEngine()
	signal := planSignal(models.ThreatBruteForce)

	plan := e.GeneratePlan(signal, models.SeverityHigh, realThreatScore(), nil, nil)
	assert.False(t, plan.PrimaryAction.AutoExecutable)
	assert.True(t, plan.PrimaryAction.RequiresApproval)

	cfg := &models.CustomerConfig{CustomerName: "acme", AutoBlockEnabled: true}
	plan = e.GeneratePlan(signal, models.SeverityHigh, realThreatScore(), cfg, nil)
	assert.Equal(t, models.ActionBlockIP, plan.PrimaryAction.ActionType)
	assert.True(t, plan.PrimaryAction.AutoExecutable)
	assert.False(t, plan.PrimaryAction.RequiresApproval)

	// Policy only loosens block_ip; quarantine stays gated.
	plan = e.GeneratePlan(planSignal(models.ThreatAccountTakeover), models.SeverityCritical, realThreatScore(), cfg, nil)
	assert.Equal(t, models.ActionQuarantine, plan.PrimaryAction.ActionType)
	assert.False(t, plan.PrimaryAction.AutoExecutable)
}

func TestResponseEngine_ActionTargets(t *testing.T) {
	e := NewResponseEngine()

	signal := planSignal(models.ThreatAccountTakeover)
	signal.RawData = map[string]any{"user_id": "user-42"}
	plan := e.GeneratePlan(signal, models.SeverityCritical, realThreatScore(), nil, nil)
	assert.Equal(t, "user-42", plan.PrimaryAction.Target)
	// block_ip secondary targets the IP.
	assert.Equal(t, signal.SourceIP, plan.SecondaryActions[0].Target)
	// escalate targets the tenant.
	assert.Equal(t, "acme", plan.SecondaryActions[1].Target)

	// Without a user id quarantine falls back to the tenant.
	signal.RawData = nil
	plan = e.GeneratePlan(signal, models.SeverityCritical, realThreatScore(), nil, nil)
	assert.Equal(t, "acme", plan.PrimaryAction.Target)
}

func TestResponseEngine_ConfidenceAndImpact(t *testing.T) {
	e := NewResponseEngine()
	signal := planSignal(models.ThreatBruteForce)

	plan := e.GeneratePlan(signal, models.SeverityCritical, realThreatScore(), nil, nil)
	assert.InDelta(t, 0.8, plan.PrimaryAction.Confidence, 1e-9)
	assert.Equal(t, models.ImpactHigh, plan.PrimaryAction.EstimatedImpact)

	plan = e.GeneratePlan(signal, models.SeverityMedium, realThreatScore(), nil, nil)
	assert.InDelta(t, 0.6, plan.PrimaryAction.Confidence, 1e-9)
}

func TestResponseEngine_RollbackFlags(t *testing.T) {
	e := NewResponseEngine()
	plan := e.GeneratePlan(planSignal(models.ThreatCredentialStuffing), models.SeverityCritical, realThreatScore(), nil, nil)

	assert.True(t, plan.PrimaryAction.RollbackPossible)
	// escalate cannot be rolled back.
	escalate := plan.SecondaryActions[1]
	require.Equal(t, models.ActionEscalate, escalate.ActionType)
	assert.False(t, escalate.RollbackPossible)
}

func TestResponseEngine_EscalationPath(t *testing.T) {
	e := NewResponseEngine()
	cfg := &models.CustomerConfig{
		CustomerName:       "acme",
		EscalationContacts: []string{"secops@acme.example", "oncall@acme.example", "cto@acme.example"},
	}

	plan := e.GeneratePlan(planSignal(models.ThreatBruteForce), models.SeverityCritical, realThreatScore(), cfg, nil)
	assert.Contains(t, plan.EscalationPath, "CISO")
	// Customer contacts are capped at two and appended last.
	require.Len(t, plan.EscalationPath, 6)
	assert.Equal(t, "secops@acme.example", plan.EscalationPath[4])
	assert.Equal(t, "oncall@acme.example", plan.EscalationPath[5])
	assert.NotContains(t, plan.EscalationPath, "cto@acme.example")

	plan = e.GeneratePlan(planSignal(models.ThreatBruteForce), models.SeverityHigh, realThreatScore(), nil, nil)
	assert.NotContains(t, plan.EscalationPath, "CISO")

	// Appending contacts must not mutate the shared severity tables.
	assert.Len(t, escalationPaths[models.SeverityCritical], 4)
}

func TestResponseEngine_Pure(t *testing.T) {
	e := NewResponseEngine()
	signal := planSignal(models.ThreatDataScraping)
	cfg := &models.CustomerConfig{CustomerName: "acme", AutoBlockEnabled: true}

	first := e.GeneratePlan(signal, models.SeverityHigh, realThreatScore(), cfg, nil)
	second := e.GeneratePlan(signal, models.SeverityHigh, realThreatScore(), cfg, nil)
	assert.Equal(t, first, second)
}
