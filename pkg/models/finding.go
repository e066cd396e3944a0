package models

// Analyst agent names, also the keys of EnhancedAnalysisRecord.Findings.
const (
	AgentHistorical = "historical"
	AgentConfig     = "config"
	AgentDevops     = "devops"
	AgentContext    = "context"
	AgentPriority   = "priority"
)

// AgentNames lists the five analysts in their canonical order.
var AgentNames = []string{AgentHistorical, AgentConfig, AgentDevops, AgentContext, AgentPriority}

// AgentFinding is one analyst's structured output for one signal.
// Never mutated after the analyst returns it.
type AgentFinding struct {
	AgentName        string   `json:"agent_name"`
	Analysis         string   `json:"analysis"`
	Confidence       float64  `json:"confidence"`
	KeyFindings      []string `json:"key_findings"`
	Recommendations  []string `json:"recommendations"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// NewSentinelFinding builds the fixed-shape finding substituted when an
// analyst fails or exceeds its deadline. Zero confidence marks it as
// untrusted for downstream scoring; the pipeline itself never fails on it.
func NewSentinelFinding(agentName string, elapsedMs int64) AgentFinding {
	return AgentFinding{
		AgentName:        agentName,
		Analysis:         "Analysis unavailable: agent failed or timed out",
		Confidence:       0,
		KeyFindings:      []string{"Error"},
		Recommendations:  []string{"Manual review required"},
		ProcessingTimeMs: elapsedMs,
	}
}

// IsSentinel reports whether f is the failure sentinel.
func (f AgentFinding) IsSentinel() bool {
	return f.Confidence == 0 && len(f.KeyFindings) == 1 && f.KeyFindings[0] == "Error"
}
