package analysis

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/edgewatch/vigil/pkg/models"
)

// Phase offsets relative to the signal's detection timestamp. They model
// the logical ordering of the investigation, not measured latencies.
const (
	offsetEnrichmentFirst  = 50 * time.Millisecond
	offsetAnalysisStart    = 100 * time.Millisecond
	offsetAnalysisEnd      = 150 * time.Millisecond
	offsetFPAnalysis       = 800 * time.Millisecond
	offsetCorrelation      = 850 * time.Millisecond
	offsetCorrelationExtra = 870 * time.Millisecond
	offsetDecision         = 900 * time.Millisecond
	offsetPrimaryAction    = 950 * time.Millisecond
	offsetSecondaryStep    = 10 * time.Millisecond
	offsetEscalation       = 1000 * time.Millisecond
)

var enrichmentSources = []struct {
	title  string
	source string
}{
	{"Historical incident lookup", "historical_db"},
	{"Customer configuration loaded", "customer_config"},
	{"Infrastructure events fetched", "infra_events"},
	{"Threat intelligence queried", "threat_intel"},
}

var enrichmentOffsets = []time.Duration{
	50 * time.Millisecond, 70 * time.Millisecond, 85 * time.Millisecond, 100 * time.Millisecond,
}

// TimelineBuilder synthesizes the phase-ordered investigation timeline.
// Pure function of its inputs and the current clock: only EndTime and
// DurationMs vary between calls with identical inputs.
type TimelineBuilder struct{}

// NewTimelineBuilder creates the builder. It is stateless and sharable.
func NewTimelineBuilder() *TimelineBuilder {
	return &TimelineBuilder{}
}

// Build synthesizes the timeline for one analyzed signal.
func (b *TimelineBuilder) Build(
	signal models.ThreatSignal,
	findings map[string]models.AgentFinding,
	fp models.FPScore,
	plan models.ResponsePlan,
	severity models.Severity,
) models.InvestigationTimeline {
	t0 := signal.DetectedAt
	tl := models.InvestigationTimeline{StartTime: t0}

	tl.Events = append(tl.Events, models.TimelineEvent{
		Timestamp:   t0,
		EventType:   models.EventDetection,
		Title:       fmt.Sprintf("%s detected", signal.ThreatType),
		Description: fmt.Sprintf("%d requests from %s over %d minutes for customer %s", signal.RequestCount, signal.SourceIP, signal.TimeWindowMinutes, signal.CustomerName),
		Source:      "detection_pipeline",
		Data:        map[string]any{"source_ip": signal.SourceIP, "request_count": signal.RequestCount},
	})

	for i, src := range enrichmentSources {
		tl.Events = append(tl.Events, models.TimelineEvent{
			Timestamp:   t0.Add(enrichmentOffsets[i]),
			EventType:   models.EventEnrichment,
			Title:       src.title,
			Description: fmt.Sprintf("Context gathered from %s", src.source),
			Source:      src.source,
		})
	}

	b.appendAnalysisEvents(&tl, t0, findings)

	tl.Events = append(tl.Events, models.TimelineEvent{
		Timestamp:   t0.Add(offsetFPAnalysis),
		EventType:   models.EventAnalysis,
		Title:       "False-positive analysis completed",
		Description: fp.Explanation,
		Source:      "fp_analyzer",
		Data: map[string]any{
			"score":          fp.Score,
			"recommendation": string(fp.Recommendation),
		},
	})

	b.appendCorrelationEvents(&tl, t0, findings)

	tl.Events = append(tl.Events, models.TimelineEvent{
		Timestamp:   t0.Add(offsetDecision),
		EventType:   models.EventDecision,
		Title:       fmt.Sprintf("Severity assessed as %s", severity),
		Description: fmt.Sprintf("Final severity %s assigned from analyst consensus", severity),
		Source:      "coordinator",
		Severity:    string(severity),
	})

	b.appendResponseEvents(&tl, t0, plan)

	tl.Sort()
	tl.EndTime = time.Now().UTC()
	tl.DurationMs = tl.EndTime.Sub(tl.StartTime).Milliseconds()
	return tl
}

// appendAnalysisEvents emits one event per analyst inside the parallel
// execution window. The jitter is a hash of the agent name so the
// timeline stays deterministic for identical inputs.
func (b *TimelineBuilder) appendAnalysisEvents(tl *models.InvestigationTimeline, t0 time.Time, findings map[string]models.AgentFinding) {
	window := offsetAnalysisEnd - offsetAnalysisStart
	for _, name := range models.AgentNames {
		finding, ok := findings[name]
		if !ok {
			continue
		}
		jitter := time.Duration(int64(hashName(name)) % int64(window))
		tl.Events = append(tl.Events, models.TimelineEvent{
			Timestamp:   t0.Add(offsetAnalysisStart + jitter),
			EventType:   models.EventAnalysis,
			Title:       fmt.Sprintf("%s analysis completed", name),
			Description: finding.Analysis,
			Source:      name + "_agent",
			Data: map[string]any{
				"confidence":         finding.Confidence,
				"key_findings":       topFindings(finding.KeyFindings, 3),
				"processing_time_ms": finding.ProcessingTimeMs,
			},
		})
	}
}

func (b *TimelineBuilder) appendCorrelationEvents(tl *models.InvestigationTimeline, t0 time.Time, findings map[string]models.AgentFinding) {
	tl.Events = append(tl.Events, models.TimelineEvent{
		Timestamp:   t0.Add(offsetCorrelation),
		EventType:   models.EventCorrelation,
		Title:       "Cross-agent correlation",
		Description: "Analyst findings merged and cross-referenced",
		Source:      "coordinator",
	})

	historical, ok := findings[models.AgentHistorical]
	if ok && !historical.IsSentinel() && len(historical.KeyFindings) > 0 {
		tl.Events = append(tl.Events, models.TimelineEvent{
			Timestamp:   t0.Add(offsetCorrelationExtra),
			EventType:   models.EventCorrelation,
			Title:       "Historical pattern correlation",
			Description: fmt.Sprintf("Current signal matched against %d historical findings", len(historical.KeyFindings)),
			Source:      "historical_agent",
		})
	}
}

func (b *TimelineBuilder) appendResponseEvents(tl *models.InvestigationTimeline, t0 time.Time, plan models.ResponsePlan) {
	tl.Events = append(tl.Events, models.TimelineEvent{
		Timestamp:   t0.Add(offsetPrimaryAction),
		EventType:   models.EventAction,
		Title:       fmt.Sprintf("Primary action: %s", plan.PrimaryAction.ActionType),
		Description: plan.PrimaryAction.Reason,
		Source:      "response_engine",
		Data: map[string]any{
			"target":          plan.PrimaryAction.Target,
			"urgency":         string(plan.PrimaryAction.Urgency),
			"auto_executable": plan.PrimaryAction.AutoExecutable,
		},
	})

	for i, action := range plan.SecondaryActions {
		tl.Events = append(tl.Events, models.TimelineEvent{
			Timestamp:   t0.Add(offsetPrimaryAction + time.Duration(i+1)*offsetSecondaryStep),
			EventType:   models.EventAction,
			Title:       fmt.Sprintf("Secondary action: %s", action.ActionType),
			Description: action.Reason,
			Source:      "response_engine",
		})
	}

	if len(plan.EscalationPath) > 0 {
		tl.Events = append(tl.Events, models.TimelineEvent{
			Timestamp:   t0.Add(offsetEscalation),
			EventType:   models.EventEscalation,
			Title:       "Escalation path established",
			Description: fmt.Sprintf("%d escalation tiers on standby, first: %s", len(plan.EscalationPath), plan.EscalationPath[0]),
			Source:      "response_engine",
			Data:        map[string]any{"path": plan.EscalationPath, "sla_minutes": plan.SLAMinutes},
		})
	}
}

func hashName(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}

func topFindings(findings []string, n int) []string {
	if len(findings) <= n {
		return findings
	}
	return findings[:n]
}
