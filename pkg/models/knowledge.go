package models

import "time"

// Incident is a previously resolved threat case used for historical
// comparison and false-positive rate estimation.
type Incident struct {
	ID           string     `json:"id"`
	ThreatType   ThreatType `json:"threat_type"`
	CustomerName string     `json:"customer_name"`
	SourceIP     string     `json:"source_ip"`
	ResolvedAsFP bool       `json:"resolved_as_fp"`
	Resolution   string     `json:"resolution"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// CustomerConfig is a tenant's analysis and response policy.
type CustomerConfig struct {
	CustomerName       string   `json:"customer_name"`
	Tier               string   `json:"tier"`
	AutoBlockEnabled   bool     `json:"auto_block_enabled"`
	RateLimitThreshold int      `json:"rate_limit_threshold"`
	EscalationContacts []string `json:"escalation_contacts"`
	AllowedIPRanges    []string `json:"allowed_ip_ranges,omitempty"`
}

// InfraEvent is a recent infrastructure change or incident that may
// explain anomalous traffic (deploys, config pushes, failovers).
type InfraEvent struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	Service     string    `json:"service"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// IntelItem is an external threat-intelligence entry matched by keyword.
type IntelItem struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Severity string   `json:"severity"`
}
