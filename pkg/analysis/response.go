package analysis

import (
	"fmt"

	"github.com/edgewatch/vigil/pkg/models"
)

// actionTemplate is one (action, urgency) pair in the response table.
type actionTemplate struct {
	action  models.ActionType
	urgency models.Urgency
}

type templateKey struct {
	threat   models.ThreatType
	severity models.Severity
}

// responseTemplates maps (threat type, severity) to an ordered action list.
// The first entry becomes the primary action. Covers every threat type for
// severities critical..low; info falls through to the monitor fallback.
var responseTemplates = map[templateKey][]actionTemplate{
	{models.ThreatBotTraffic, models.SeverityCritical}: {{models.ActionRateLimit, models.UrgencyImmediate}, {models.ActionChallenge, models.UrgencyUrgent}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatBotTraffic, models.SeverityHigh}:     {{models.ActionRateLimit, models.UrgencyUrgent}, {models.ActionChallenge, models.UrgencyNormal}},
	{models.ThreatBotTraffic, models.SeverityMedium}:   {{models.ActionChallenge, models.UrgencyNormal}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatBotTraffic, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyLow}},

	{models.ThreatCredentialStuffing, models.SeverityCritical}: {{models.ActionBlockIP, models.UrgencyImmediate}, {models.ActionChallenge, models.UrgencyImmediate}, {models.ActionEscalate, models.UrgencyUrgent}},
	{models.ThreatCredentialStuffing, models.SeverityHigh}:     {{models.ActionBlockIP, models.UrgencyUrgent}, {models.ActionChallenge, models.UrgencyUrgent}},
	{models.ThreatCredentialStuffing, models.SeverityMedium}:   {{models.ActionRateLimit, models.UrgencyNormal}, {models.ActionChallenge, models.UrgencyNormal}},
	{models.ThreatCredentialStuffing, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyNormal}},

	{models.ThreatAccountTakeover, models.SeverityCritical}: {{models.ActionQuarantine, models.UrgencyImmediate}, {models.ActionBlockIP, models.UrgencyImmediate}, {models.ActionEscalate, models.UrgencyUrgent}},
	{models.ThreatAccountTakeover, models.SeverityHigh}:     {{models.ActionQuarantine, models.UrgencyUrgent}, {models.ActionChallenge, models.UrgencyUrgent}},
	{models.ThreatAccountTakeover, models.SeverityMedium}:   {{models.ActionChallenge, models.UrgencyNormal}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatAccountTakeover, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyNormal}},

	{models.ThreatDataScraping, models.SeverityCritical}: {{models.ActionBlockIP, models.UrgencyImmediate}, {models.ActionRateLimit, models.UrgencyUrgent}},
	{models.ThreatDataScraping, models.SeverityHigh}:     {{models.ActionRateLimit, models.UrgencyUrgent}, {models.ActionChallenge, models.UrgencyNormal}},
	{models.ThreatDataScraping, models.SeverityMedium}:   {{models.ActionRateLimit, models.UrgencyNormal}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatDataScraping, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyLow}},

	{models.ThreatGeoAnomaly, models.SeverityCritical}: {{models.ActionChallenge, models.UrgencyImmediate}, {models.ActionEscalate, models.UrgencyUrgent}},
	{models.ThreatGeoAnomaly, models.SeverityHigh}:     {{models.ActionChallenge, models.UrgencyUrgent}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatGeoAnomaly, models.SeverityMedium}:   {{models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatGeoAnomaly, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyLow}},

	{models.ThreatRateLimitBreach, models.SeverityCritical}: {{models.ActionRateLimit, models.UrgencyImmediate}, {models.ActionBlockIP, models.UrgencyUrgent}},
	{models.ThreatRateLimitBreach, models.SeverityHigh}:     {{models.ActionRateLimit, models.UrgencyUrgent}},
	{models.ThreatRateLimitBreach, models.SeverityMedium}:   {{models.ActionRateLimit, models.UrgencyNormal}, {models.ActionMonitor, models.UrgencyNormal}},
	{models.ThreatRateLimitBreach, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyLow}},

	{models.ThreatBruteForce, models.SeverityCritical}: {{models.ActionBlockIP, models.UrgencyImmediate}, {models.ActionQuarantine, models.UrgencyUrgent}, {models.ActionEscalate, models.UrgencyUrgent}},
	{models.ThreatBruteForce, models.SeverityHigh}:     {{models.ActionBlockIP, models.UrgencyUrgent}, {models.ActionChallenge, models.UrgencyUrgent}},
	{models.ThreatBruteForce, models.SeverityMedium}:   {{models.ActionChallenge, models.UrgencyNormal}, {models.ActionRateLimit, models.UrgencyNormal}},
	{models.ThreatBruteForce, models.SeverityLow}:      {{models.ActionMonitor, models.UrgencyNormal}},
}

// autoExecutableDefaults: traffic-shaping actions run unattended,
// destructive or trust-granting ones need a human.
var autoExecutableDefaults = map[models.ActionType]bool{
	models.ActionRateLimit:  true,
	models.ActionChallenge:  true,
	models.ActionMonitor:    true,
	models.ActionEscalate:   true,
	models.ActionBlockIP:    false,
	models.ActionWhitelist:  false,
	models.ActionQuarantine: false,
}

var actionImpacts = map[models.ActionType]models.Impact{
	models.ActionBlockIP:    models.ImpactHigh,
	models.ActionQuarantine: models.ImpactHigh,
	models.ActionRateLimit:  models.ImpactMedium,
	models.ActionChallenge:  models.ImpactMedium,
	models.ActionWhitelist:  models.ImpactMedium,
	models.ActionMonitor:    models.ImpactLow,
	models.ActionEscalate:   models.ImpactLow,
}

var slaMinutes = map[models.Severity]int{
	models.SeverityCritical: 15,
	models.SeverityHigh:     30,
	models.SeverityMedium:   60,
	models.SeverityLow:      240,
	models.SeverityInfo:     480,
}

var escalationPaths = map[models.Severity][]string{
	models.SeverityCritical: {"SOC Tier 2", "SOC Manager", "CISO", "Customer Success"},
	models.SeverityHigh:     {"SOC Tier 2", "SOC Manager", "Customer Success"},
	models.SeverityMedium:   {"SOC Tier 1", "SOC Tier 2"},
	models.SeverityLow:      {"SOC Tier 1"},
	models.SeverityInfo:     {"SOC Tier 1"},
}

// maxCustomerContacts caps how many tenant contacts are appended to the
// escalation path.
const maxCustomerContacts = 2

// ResponseEngine maps (threat type, severity, FP score) plus the customer
// policy to a response plan. Pure and deterministic.
type ResponseEngine struct{}

// NewResponseEngine creates the engine. It is stateless and sharable.
func NewResponseEngine() *ResponseEngine {
	return &ResponseEngine{}
}

// GeneratePlan builds the response plan for one analyzed signal.
func (e *ResponseEngine) GeneratePlan(
	signal models.ThreatSignal,
	severity models.Severity,
	fp models.FPScore,
	customerCfg *models.CustomerConfig,
	findings map[string]models.AgentFinding,
) models.ResponsePlan {
	if fp.Score >= 0.7 {
		return e.falsePositivePlan(signal, fp)
	}

	templates := responseTemplates[templateKey{signal.ThreatType, severity}]
	if len(templates) == 0 {
		templates = []actionTemplate{{models.ActionMonitor, models.UrgencyNormal}}
	}

	actions := make([]models.ResponseAction, 0, len(templates))
	for _, tmpl := range templates {
		actions = append(actions, e.buildAction(signal, severity, tmpl, customerCfg))
	}

	sla := slaMinutes[severity]
	plan := models.ResponsePlan{
		PrimaryAction:            actions[0],
		SecondaryActions:         actions[1:],
		EscalationPath:           escalationPath(severity, customerCfg),
		SLAMinutes:               sla,
		AutoEscalateAfterMinutes: sla / 2,
		Notes:                    fmt.Sprintf("Plan generated from %s/%s response template.", signal.ThreatType, severity),
	}
	return plan
}

// falsePositivePlan is the minimal plan used when the FP score crosses the
// override threshold: watch, don't disrupt.
func (e *ResponseEngine) falsePositivePlan(signal models.ThreatSignal, fp models.FPScore) models.ResponsePlan {
	return models.ResponsePlan{
		PrimaryAction: models.ResponseAction{
			ActionType:       models.ActionMonitor,
			Urgency:          models.UrgencyLow,
			Target:           signal.SourceIP,
			Reason:           fmt.Sprintf("Likely false positive (score %.3f); monitoring only", fp.Score),
			Confidence:       fp.Confidence,
			AutoExecutable:   true,
			RequiresApproval: false,
			EstimatedImpact:  models.ImpactLow,
			RollbackPossible: true,
			Parameters:       map[string]any{"duration_minutes": 30},
		},
		SecondaryActions:         []models.ResponseAction{},
		EscalationPath:           []string{"SOC Tier 1"},
		SLAMinutes:               240,
		AutoEscalateAfterMinutes: 120,
		Notes:                    "False-positive override: " + fp.Explanation,
	}
}

func (e *ResponseEngine) buildAction(
	signal models.ThreatSignal,
	severity models.Severity,
	tmpl actionTemplate,
	customerCfg *models.CustomerConfig,
) models.ResponseAction {
	autoExec := autoExecutableDefaults[tmpl.action]

	// Tenant policy: auto-block customers let block_ip run unattended.
	if tmpl.action == models.ActionBlockIP && customerCfg != nil && customerCfg.AutoBlockEnabled {
		autoExec = true
	}

	confidence := 0.6
	if severity == models.SeverityCritical || severity == models.SeverityHigh {
		confidence = 0.8
	}

	return models.ResponseAction{
		ActionType:       tmpl.action,
		Urgency:          tmpl.urgency,
		Target:           actionTarget(tmpl.action, signal),
		Reason:           fmt.Sprintf("%s response to %s severity %s", tmpl.action, severity, signal.ThreatType),
		Confidence:       confidence,
		AutoExecutable:   autoExec,
		RequiresApproval: !autoExec,
		EstimatedImpact:  actionImpacts[tmpl.action],
		RollbackPossible: tmpl.action != models.ActionEscalate,
		Parameters:       actionParameters(tmpl.action),
	}
}

// actionTarget resolves what an action addresses: network actions target
// the source IP, quarantine targets the affected user when known, and
// everything else targets the tenant.
func actionTarget(action models.ActionType, signal models.ThreatSignal) string {
	switch action {
	case models.ActionBlockIP, models.ActionRateLimit, models.ActionChallenge, models.ActionMonitor:
		return signal.SourceIP
	case models.ActionQuarantine:
		if userID := signal.RawString("user_id"); userID != "" {
			return userID
		}
		return signal.CustomerName
	default:
		return signal.CustomerName
	}
}

func actionParameters(action models.ActionType) map[string]any {
	switch action {
	case models.ActionBlockIP:
		return map[string]any{"duration_minutes": 60, "scope": "customer"}
	case models.ActionRateLimit:
		return map[string]any{"requests_per_minute": 10, "duration_minutes": 30}
	case models.ActionChallenge:
		return map[string]any{"challenge_type": "captcha", "duration_minutes": 60}
	case models.ActionMonitor:
		return map[string]any{"duration_minutes": 60, "alert_threshold": 100}
	case models.ActionWhitelist:
		return map[string]any{"duration_minutes": 1440}
	case models.ActionEscalate:
		return map[string]any{"escalation_level": "Tier 2"}
	case models.ActionQuarantine:
		return map[string]any{"notify_user": true}
	}
	return nil
}

func escalationPath(severity models.Severity, customerCfg *models.CustomerConfig) []string {
	base := escalationPaths[severity]
	path := make([]string, len(base))
	copy(path, base)

	if customerCfg != nil {
		contacts := customerCfg.EscalationContacts
		if len(contacts) > maxCustomerContacts {
			contacts = contacts[:maxCustomerContacts]
		}
		path = append(path, contacts...)
	}
	return path
}
