package models

// ActionType identifies a recommended mitigation.
type ActionType string

const (
	ActionBlockIP    ActionType = "block_ip"
	ActionRateLimit  ActionType = "rate_limit"
	ActionChallenge  ActionType = "challenge"
	ActionWhitelist  ActionType = "whitelist"
	ActionMonitor    ActionType = "monitor"
	ActionEscalate   ActionType = "escalate"
	ActionQuarantine ActionType = "quarantine"
	ActionNone       ActionType = "none"
)

// Urgency ranks how quickly an action should be taken.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyNormal    Urgency = "normal"
	UrgencyLow       Urgency = "low"
)

// Impact estimates the customer-facing blast radius of an action.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// ResponseAction is one recommended action. The system recommends,
// an external actor executes. AutoExecutable and RequiresApproval are
// mutually exclusive: auto-executable actions never need approval.
type ResponseAction struct {
	ActionType       ActionType     `json:"action_type"`
	Urgency          Urgency        `json:"urgency"`
	Target           string         `json:"target"`
	Reason           string         `json:"reason"`
	Confidence       float64        `json:"confidence"`
	AutoExecutable   bool           `json:"auto_executable"`
	RequiresApproval bool           `json:"requires_approval"`
	EstimatedImpact  Impact         `json:"estimated_impact"`
	RollbackPossible bool           `json:"rollback_possible"`
	Parameters       map[string]any `json:"parameters,omitempty"`
}

// ResponsePlan groups the recommended actions for one signal.
// AutoEscalateAfterMinutes never exceeds SLAMinutes.
type ResponsePlan struct {
	PrimaryAction            ResponseAction   `json:"primary_action"`
	SecondaryActions         []ResponseAction `json:"secondary_actions"`
	EscalationPath           []string         `json:"escalation_path"`
	SLAMinutes               int              `json:"sla_minutes"`
	AutoEscalateAfterMinutes int              `json:"auto_escalate_after_minutes"`
	Notes                    string           `json:"notes"`
}
