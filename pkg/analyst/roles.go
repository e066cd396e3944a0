// Package analyst implements the five specialized signal examiners:
// historical, config, devops, context, and priority. Each analyst builds a
// role-specific prompt over the signal and its context bag, asks the
// reasoning provider, and parses the response into an AgentFinding.
// Failures never escape: any provider error, parse failure, or deadline
// expiry yields the sentinel finding.
package analyst

import (
	"fmt"
	"strings"

	"github.com/edgewatch/vigil/pkg/models"
)

// Context is the per-analyst context bag assembled by the coordinator.
// Each role reads only its own slice; the priority analyst gets an empty bag.
type Context struct {
	Incidents      []models.Incident
	CustomerConfig *models.CustomerConfig
	InfraEvents    []models.InfraEvent
	Intel          []models.IntelItem
}

// Role defines one analyst variant: its name, system role, and how it
// renders the signal and context into a user prompt.
type Role struct {
	Name         string
	systemPrompt string
	buildPrompt  func(signal models.ThreatSignal, bag Context) string
	mockAnalysis func(signal models.ThreatSignal) string
}

// Roles returns the five analyst roles in canonical order.
func Roles() []Role {
	return []Role{historicalRole, configRole, devopsRole, contextRole, priorityRole}
}

const promptJSONContract = `Respond with a single JSON object:
{"analysis": "<2-4 sentence assessment>", "confidence": <0..1>, "key_findings": ["..."], "recommendations": ["..."]}`

func signalSummary(s models.ThreatSignal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Threat signal %s:\n", s.ID)
	fmt.Fprintf(&b, "- type: %s\n", s.ThreatType)
	fmt.Fprintf(&b, "- customer: %s (%s)\n", s.CustomerName, s.CustomerID)
	fmt.Fprintf(&b, "- source IP: %s\n", s.SourceIP)
	if s.UserAgent != "" {
		fmt.Fprintf(&b, "- user agent: %s\n", s.UserAgent)
	}
	fmt.Fprintf(&b, "- volume: %d requests over %d minutes\n", s.RequestCount, s.TimeWindowMinutes)
	fmt.Fprintf(&b, "- detected at: %s\n", s.DetectedAt.Format("2006-01-02T15:04:05Z07:00"))
	for k, v := range s.RawData {
		fmt.Fprintf(&b, "- raw %s: %v\n", k, v)
	}
	return b.String()
}

var historicalRole = Role{
	Name: models.AgentHistorical,
	systemPrompt: "You are a security analyst specializing in historical incident correlation. " +
		"Compare the current threat signal against past incidents for the same customer and threat type, " +
		"and assess whether the pattern matches previously resolved cases. " + promptJSONContract,
	buildPrompt: func(s models.ThreatSignal, bag Context) string {
		var b strings.Builder
		b.WriteString(signalSummary(s))
		if len(bag.Incidents) == 0 {
			b.WriteString("\nNo similar past incidents on record.\n")
		} else {
			fmt.Fprintf(&b, "\nSimilar past incidents (%d):\n", len(bag.Incidents))
			for _, inc := range bag.Incidents {
				disposition := "real threat"
				if inc.ResolvedAsFP {
					disposition = "false positive"
				}
				fmt.Fprintf(&b, "- %s from %s: resolved as %s (%s)\n", inc.ID, inc.SourceIP, disposition, inc.Resolution)
			}
		}
		return b.String()
	},
	mockAnalysis: func(s models.ThreatSignal) string {
		return fmt.Sprintf("Historical comparison for %s traffic from %s shows recurring patterns for this customer.", s.ThreatType, s.SourceIP)
	},
}

var configRole = Role{
	Name: models.AgentConfig,
	systemPrompt: "You are a security analyst specializing in customer configuration review. " +
		"Assess whether the signal is explained or aggravated by the customer's tier, rate-limit thresholds, " +
		"allow-lists, and response policy. " + promptJSONContract,
	buildPrompt: func(s models.ThreatSignal, bag Context) string {
		var b strings.Builder
		b.WriteString(signalSummary(s))
		if bag.CustomerConfig == nil {
			b.WriteString("\nNo configuration on record for this customer.\n")
		} else {
			cfg := bag.CustomerConfig
			fmt.Fprintf(&b, "\nCustomer configuration:\n- tier: %s\n- auto-block: %t\n- rate-limit threshold: %d rpm\n",
				cfg.Tier, cfg.AutoBlockEnabled, cfg.RateLimitThreshold)
			if len(cfg.AllowedIPRanges) > 0 {
				fmt.Fprintf(&b, "- allowed ranges: %s\n", strings.Join(cfg.AllowedIPRanges, ", "))
			}
		}
		return b.String()
	},
	mockAnalysis: func(s models.ThreatSignal) string {
		return fmt.Sprintf("Customer %s configuration reviewed; observed volume relative to the configured thresholds.", s.CustomerName)
	},
}

var devopsRole = Role{
	Name: models.AgentDevops,
	systemPrompt: "You are a security analyst specializing in infrastructure correlation. " +
		"Determine whether recent deploys, config changes, or failovers could explain the anomalous traffic. " + promptJSONContract,
	buildPrompt: func(s models.ThreatSignal, bag Context) string {
		var b strings.Builder
		b.WriteString(signalSummary(s))
		if len(bag.InfraEvents) == 0 {
			b.WriteString("\nNo infrastructure events in the last hour.\n")
		} else {
			b.WriteString("\nRecent infrastructure events:\n")
			for _, ev := range bag.InfraEvents {
				fmt.Fprintf(&b, "- [%s] %s: %s\n", ev.EventType, ev.Service, ev.Description)
			}
		}
		return b.String()
	},
	mockAnalysis: func(s models.ThreatSignal) string {
		return "Recent infrastructure changes reviewed; no deployment correlates with the traffic onset."
	},
}

var contextRole = Role{
	Name: models.AgentContext,
	systemPrompt: "You are a threat-intelligence analyst. Correlate the signal with external intel: " +
		"active campaigns, known-bad infrastructure, and published indicators. " + promptJSONContract,
	buildPrompt: func(s models.ThreatSignal, bag Context) string {
		var b strings.Builder
		b.WriteString(signalSummary(s))
		if len(bag.Intel) == 0 {
			b.WriteString("\nNo matching threat intelligence.\n")
		} else {
			b.WriteString("\nMatching threat intelligence:\n")
			for _, item := range bag.Intel {
				fmt.Fprintf(&b, "- [%s/%s] %s\n", item.Source, item.Severity, item.Summary)
			}
		}
		return b.String()
	},
	mockAnalysis: func(s models.ThreatSignal) string {
		return fmt.Sprintf("External intelligence checked for %s indicators relevant to this source.", s.ThreatType)
	},
}

var priorityRole = Role{
	Name: models.AgentPriority,
	systemPrompt: "You are a SOC shift lead. Assign a priority to this signal. " +
		"Your analysis must contain exactly one of the words: critical, high, medium, or low. " + promptJSONContract,
	buildPrompt: func(s models.ThreatSignal, _ Context) string {
		return signalSummary(s)
	},
	mockAnalysis: func(s models.ThreatSignal) string {
		// Deterministic stand-in for the shift lead's call: credential
		// threats rank high, everything else medium.
		switch s.ThreatType {
		case models.ThreatCredentialStuffing, models.ThreatAccountTakeover, models.ThreatBruteForce:
			return "High priority: credential-oriented attack pattern against customer accounts."
		default:
			return "Medium priority: anomalous traffic without direct account compromise indicators."
		}
	},
}
