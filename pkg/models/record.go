package models

import "time"

// Severity ranks the final assessed severity of a signal.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// EnhancedAnalysisRecord is the final synthesized output of the pipeline:
// the signal, all five findings keyed by analyst name, the FP score, the
// response plan, the timeline, and the coordinator's synthesized fields.
//
// Once written to the shared store the record is owned by the store; the
// coordinator hands over a value and never mutates it afterwards.
type EnhancedAnalysisRecord struct {
	Signal   ThreatSignal            `json:"signal"`
	Findings map[string]AgentFinding `json:"findings"`
	FPScore  FPScore                 `json:"fp_score"`
	Plan     ResponsePlan            `json:"response_plan"`
	Timeline InvestigationTimeline   `json:"timeline"`

	Severity              Severity  `json:"severity"`
	ExecutiveSummary      string    `json:"executive_summary"`
	CustomerNarrative     string    `json:"customer_narrative"`
	MitreTactics          []string  `json:"mitre_tactics"`
	MitreTechniques       []string  `json:"mitre_techniques"`
	RequiresHumanReview   bool      `json:"requires_human_review"`
	ReviewReason          string    `json:"review_reason,omitempty"`
	TotalProcessingTimeMs int64     `json:"total_processing_time_ms"`
	AnalyzedAt            time.Time `json:"analyzed_at"`
}

// ID returns the record's fingerprint, which is the signal id.
func (r *EnhancedAnalysisRecord) ID() string {
	return r.Signal.ID
}
