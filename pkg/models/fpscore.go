package models

// Recommendation buckets an FP score into an operator-facing disposition.
type Recommendation string

const (
	RecommendLikelyFalsePositive Recommendation = "likely_false_positive"
	RecommendNeedsReview         Recommendation = "needs_review"
	RecommendLikelyRealThreat    Recommendation = "likely_real_threat"
)

// RecommendationForScore maps a score to its bucket:
// likely_false_positive at >= 0.7, needs_review in [0.4, 0.7),
// likely_real_threat below 0.4.
func RecommendationForScore(score float64) Recommendation {
	switch {
	case score >= 0.7:
		return RecommendLikelyFalsePositive
	case score >= 0.4:
		return RecommendNeedsReview
	default:
		return RecommendLikelyRealThreat
	}
}

// FPIndicator is one weighted piece of evidence for or against the signal
// being a false positive. Positive weights push toward false positive.
type FPIndicator struct {
	Name        string  `json:"name"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
}

// FPScore is the false-positive assessment of one signal.
// Score 0 means certain threat, 1 means certain false positive.
type FPScore struct {
	Score               float64        `json:"score"`
	Confidence          float64        `json:"confidence"`
	Indicators          []FPIndicator  `json:"indicators"`
	HistoricalFPRate    *float64       `json:"historical_fp_rate,omitempty"`
	SimilarResolvedFP   int            `json:"similar_resolved_as_fp"`
	SimilarResolvedReal int            `json:"similar_resolved_as_real"`
	Recommendation      Recommendation `json:"recommendation"`
	Explanation         string         `json:"explanation"`
}
