package models

import (
	"sort"
	"time"
)

// TimelineEventType marks which investigation phase an event belongs to.
type TimelineEventType string

const (
	EventDetection   TimelineEventType = "detection"
	EventEnrichment  TimelineEventType = "enrichment"
	EventAnalysis    TimelineEventType = "analysis"
	EventCorrelation TimelineEventType = "correlation"
	EventDecision    TimelineEventType = "decision"
	EventAction      TimelineEventType = "action"
	EventEscalation  TimelineEventType = "escalation"
)

// TimelineEvent is one point in the synthesized investigation timeline.
type TimelineEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   TimelineEventType `json:"event_type"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Source      string            `json:"source"`
	Data        map[string]any    `json:"data,omitempty"`
	Severity    string            `json:"severity,omitempty"`
}

// InvestigationTimeline is the ordered event sequence for one analysis.
// Events are sorted by timestamp non-decreasing.
type InvestigationTimeline struct {
	Events     []TimelineEvent `json:"events"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	DurationMs int64           `json:"duration_ms"`
}

// Sort orders the events by timestamp, preserving the insertion order of
// events with identical timestamps.
func (t *InvestigationTimeline) Sort() {
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Timestamp.Before(t.Events[j].Timestamp)
	})
}
