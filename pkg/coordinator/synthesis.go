package coordinator

import (
	"fmt"
	"strings"

	"github.com/edgewatch/vigil/pkg/models"
)

// maxSummaryFindings caps how many key findings the executive summary
// quotes across all analysts.
const maxSummaryFindings = 3

// executiveSummary renders the one-sentence operator summary: severity,
// threat type, customer, up to three key findings (at most two per
// analyst, canonical analyst order), and the FP qualifier suffix.
func executiveSummary(
	signal models.ThreatSignal,
	findings map[string]models.AgentFinding,
	fp models.FPScore,
	severity models.Severity,
) string {
	var quoted []string
	for _, name := range models.AgentNames {
		finding, ok := findings[name]
		if !ok || finding.IsSentinel() {
			continue
		}
		for i, kf := range finding.KeyFindings {
			if i == 2 || len(quoted) == maxSummaryFindings {
				break
			}
			quoted = append(quoted, kf)
		}
		if len(quoted) == maxSummaryFindings {
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s severity %s against customer %s", strings.ToUpper(string(severity)[:1])+string(severity)[1:], signal.ThreatType, signal.CustomerName)
	if len(quoted) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(quoted, "; "))
	}
	b.WriteString(".")

	switch {
	case fp.Score >= 0.7:
		b.WriteString(" (Likely false positive)")
	case fp.Score <= 0.3:
		b.WriteString(" (High confidence threat)")
	}
	return b.String()
}

// customerNarrative renders the tenant-facing explanation. A likely false
// positive gets reassurance; a real threat names the primary action.
func customerNarrative(signal models.ThreatSignal, fp models.FPScore, plan models.ResponsePlan) string {
	if fp.Score >= 0.7 {
		return fmt.Sprintf(
			"Our analysis of the %s activity detected on your account indicates this is most likely benign traffic. "+
				"No disruptive action has been taken; we will continue monitoring the source.",
			signal.ThreatType)
	}
	return fmt.Sprintf(
		"We detected %s activity targeting your account from %s and have initiated a %s response. "+
			"Our security team is tracking this incident to resolution.",
		signal.ThreatType, signal.SourceIP, plan.PrimaryAction.ActionType)
}

// reviewDecision evaluates the human-review triggers. The FP review band
// is [0.3, 0.7): a score of exactly 0.7 activates the response override
// instead, so it does not by itself force review.
func reviewDecision(severity models.Severity, fp models.FPScore, plan models.ResponsePlan) (bool, string) {
	var reasons []string
	if severity == models.SeverityCritical {
		reasons = append(reasons, "severity is critical")
	}
	if fp.Score >= 0.3 && fp.Score < 0.7 {
		reasons = append(reasons, fmt.Sprintf("false-positive score %.3f is inconclusive", fp.Score))
	}
	if plan.PrimaryAction.RequiresApproval {
		reasons = append(reasons, fmt.Sprintf("primary action %s requires approval", plan.PrimaryAction.ActionType))
	}
	if len(reasons) == 0 {
		return false, ""
	}
	return true, strings.Join(reasons, "; ")
}

// decideSeverity maps the priority analyst's assessment text to a
// severity by substring match, most severe first. A sentinel or missing
// priority finding defaults to medium.
func decideSeverity(findings map[string]models.AgentFinding) models.Severity {
	priority, ok := findings[models.AgentPriority]
	if !ok || priority.IsSentinel() {
		return models.SeverityMedium
	}

	text := strings.ToLower(priority.Analysis)
	switch {
	case strings.Contains(text, "critical"):
		return models.SeverityCritical
	case strings.Contains(text, "high"):
		return models.SeverityHigh
	case strings.Contains(text, "low"):
		return models.SeverityLow
	default:
		return models.SeverityMedium
	}
}
