// Package analysis holds the three deterministic post-fan-out analyzers:
// false-positive scoring, response planning, and timeline synthesis.
// All three are pure rule-driven functions of their inputs — no I/O, no
// randomness — so identical inputs always produce identical outputs.
package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/edgewatch/vigil/pkg/models"
)

// fpBaselines is the per-threat-type baseline false-positive rate.
var fpBaselines = map[models.ThreatType]float64{
	models.ThreatBotTraffic:         0.35,
	models.ThreatCredentialStuffing: 0.15,
	models.ThreatAccountTakeover:    0.10,
	models.ThreatRateLimitBreach:    0.45,
	models.ThreatGeoAnomaly:         0.55,
	models.ThreatDataScraping:       0.40,
	models.ThreatBruteForce:         0.20,
}

// benignBotAgents are user-agent substrings of verified crawlers and
// monitors; their presence argues for a false positive.
var benignBotAgents = []string{
	"googlebot", "bingbot", "slackbot", "facebookexternalhit",
	"twitterbot", "linkedinbot", "pingdom", "uptimerobot",
}

// suspiciousAgents are user-agent substrings of common attack tooling.
var suspiciousAgents = []string{"python-requests", "curl", "wget", "scanner"}

// benignIPPrefixes are published crawler ranges (Google, Microsoft).
var benignIPPrefixes = []string{"66.249.", "157.55.", "40.77."}

// privateIPPrefixes mark internal traffic, usually misrouted monitoring.
var privateIPPrefixes = []string{"10.", "192.168."}

// benignEndpoints are health-check paths that trip volume detectors.
var benignEndpoints = map[string]bool{
	"/health": true, "/ping": true, "/status": true, "/ready": true,
}

// indicatorWeightScale converts the summed indicator weights into a score
// adjustment on top of the baseline.
const indicatorWeightScale = 0.3

// FPAnalyzer computes a false-positive score from signal features, agent
// findings, and historical resolutions.
type FPAnalyzer struct{}

// NewFPAnalyzer creates the analyzer. It is stateless and sharable.
func NewFPAnalyzer() *FPAnalyzer {
	return &FPAnalyzer{}
}

// Analyze scores the signal. Score 0 means certain threat, 1 means certain
// false positive.
func (a *FPAnalyzer) Analyze(signal models.ThreatSignal, findings map[string]models.AgentFinding, incidents []models.Incident) models.FPScore {
	score := models.FPScore{
		SimilarResolvedFP:   countResolvedFP(incidents),
		SimilarResolvedReal: len(incidents) - countResolvedFP(incidents),
	}

	score.Indicators = append(score.Indicators, userAgentIndicators(signal)...)
	score.Indicators = append(score.Indicators, ipIndicators(signal)...)
	score.Indicators = append(score.Indicators, volumeIndicators(signal)...)

	historical, fpRate := historicalIndicators(signal, incidents)
	score.Indicators = append(score.Indicators, historical...)
	score.HistoricalFPRate = fpRate

	score.Indicators = append(score.Indicators, confidenceIndicators(findings)...)
	score.Indicators = append(score.Indicators, endpointIndicators(signal)...)

	var weightSum float64
	for _, ind := range score.Indicators {
		weightSum += ind.Weight
	}

	baseline := fpBaselines[signal.ThreatType]
	score.Score = round3(clamp01(baseline + indicatorWeightScale*weightSum))
	score.Confidence = round3(scoreConfidence(len(incidents), len(score.Indicators)))
	score.Recommendation = models.RecommendationForScore(score.Score)
	score.Explanation = explanationFor(score.Recommendation)

	return score
}

func userAgentIndicators(signal models.ThreatSignal) []models.FPIndicator {
	ua := strings.ToLower(signal.UserAgent)
	if ua == "" {
		return nil
	}
	for _, benign := range benignBotAgents {
		if strings.Contains(ua, benign) {
			return []models.FPIndicator{{
				Name:        "known_benign_bot",
				Weight:      0.4,
				Description: fmt.Sprintf("User agent matches verified crawler %q", benign),
				Source:      "user_agent",
			}}
		}
	}
	for _, suspicious := range suspiciousAgents {
		if strings.Contains(ua, suspicious) {
			return []models.FPIndicator{{
				Name:        "suspicious_user_agent",
				Weight:      -0.2,
				Description: fmt.Sprintf("User agent matches attack tooling %q", suspicious),
				Source:      "user_agent",
			}}
		}
	}
	return nil
}

func ipIndicators(signal models.ThreatSignal) []models.FPIndicator {
	for _, prefix := range benignIPPrefixes {
		if strings.HasPrefix(signal.SourceIP, prefix) {
			return []models.FPIndicator{{
				Name:        "known_benign_ip_range",
				Weight:      0.5,
				Description: fmt.Sprintf("Source IP in published crawler range %s", prefix),
				Source:      "source_ip",
			}}
		}
	}
	for _, prefix := range privateIPPrefixes {
		if strings.HasPrefix(signal.SourceIP, prefix) {
			return []models.FPIndicator{{
				Name:        "internal_ip_range",
				Weight:      0.3,
				Description: "Source IP is RFC1918 internal address space",
				Source:      "source_ip",
			}}
		}
	}
	return nil
}

func volumeIndicators(signal models.ThreatSignal) []models.FPIndicator {
	rpm := signal.RequestsPerMinute()
	switch {
	case rpm < 10:
		return []models.FPIndicator{{
			Name:        "low_request_volume",
			Weight:      0.2,
			Description: fmt.Sprintf("Request rate %.1f rpm is below attack-scale volume", rpm),
			Source:      "request_volume",
		}}
	case rpm > 1000:
		return []models.FPIndicator{{
			Name:        "high_request_volume",
			Weight:      -0.3,
			Description: fmt.Sprintf("Request rate %.1f rpm is attack-scale volume", rpm),
			Source:      "request_volume",
		}}
	}
	return nil
}

func historicalIndicators(signal models.ThreatSignal, incidents []models.Incident) ([]models.FPIndicator, *float64) {
	if len(incidents) == 0 {
		return nil, nil
	}

	fpCount := countResolvedFP(incidents)
	fpRate := float64(fpCount) / float64(len(incidents))

	var out []models.FPIndicator
	switch {
	case fpRate > 0.5:
		out = append(out, models.FPIndicator{
			Name:        "high_historical_fp_rate",
			Weight:      0.3,
			Description: fmt.Sprintf("%.0f%% of similar incidents resolved as false positives", fpRate*100),
			Source:      "historical",
		})
	case fpRate < 0.2:
		out = append(out, models.FPIndicator{
			Name:        "low_historical_fp_rate",
			Weight:      -0.3,
			Description: fmt.Sprintf("Only %.0f%% of similar incidents resolved as false positives", fpRate*100),
			Source:      "historical",
		})
	}

	customerTotal, customerFP := 0, 0
	for _, inc := range incidents {
		if inc.CustomerName == signal.CustomerName {
			customerTotal++
			if inc.ResolvedAsFP {
				customerFP++
			}
		}
	}
	if customerTotal >= 3 && customerFP >= 2 {
		out = append(out, models.FPIndicator{
			Name:        "repeat_customer_fp_pattern",
			Weight:      0.25,
			Description: fmt.Sprintf("Customer has %d prior similar incidents, %d resolved as false positives", customerTotal, customerFP),
			Source:      "historical",
		})
	}

	return out, &fpRate
}

func confidenceIndicators(findings map[string]models.AgentFinding) []models.FPIndicator {
	if len(findings) == 0 {
		return nil
	}

	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	mean := sum / float64(len(findings))

	switch {
	case mean < 0.5:
		return []models.FPIndicator{{
			Name:        "low_agent_confidence",
			Weight:      0.2,
			Description: fmt.Sprintf("Mean analyst confidence %.2f is low", mean),
			Source:      "agent_findings",
		}}
	case mean > 0.85:
		return []models.FPIndicator{{
			Name:        "high_agent_confidence",
			Weight:      -0.2,
			Description: fmt.Sprintf("Mean analyst confidence %.2f is high", mean),
			Source:      "agent_findings",
		}}
	}
	return nil
}

func endpointIndicators(signal models.ThreatSignal) []models.FPIndicator {
	endpoint := signal.RawString("endpoint")
	if benignEndpoints[endpoint] {
		return []models.FPIndicator{{
			Name:        "benign_endpoint",
			Weight:      0.4,
			Description: fmt.Sprintf("Traffic targets health-check endpoint %s", endpoint),
			Source:      "raw_data",
		}}
	}
	return nil
}

// scoreConfidence starts at 0.5 and grows with the evidence volume:
// up to +0.3 from historical incidents, up to +0.2 from indicators.
func scoreConfidence(incidentCount, indicatorCount int) float64 {
	c := 0.5
	c += math.Min(0.3, 0.05*float64(incidentCount))
	c += math.Min(0.2, 0.04*float64(indicatorCount))
	return math.Min(c, 1.0)
}

func explanationFor(rec models.Recommendation) string {
	switch rec {
	case models.RecommendLikelyFalsePositive:
		return "Multiple indicators suggest this is benign activity misclassified as a threat. Review before taking disruptive action."
	case models.RecommendNeedsReview:
		return "Evidence is mixed; an analyst should review this signal before the response plan is executed."
	default:
		return "Indicators are consistent with genuine malicious activity. The response plan should proceed."
	}
}

func countResolvedFP(incidents []models.Incident) int {
	n := 0
	for _, inc := range incidents {
		if inc.ResolvedAsFP {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
