// Package models defines the domain types shared across the analysis
// pipeline: the inbound threat signal, per-analyst findings, the
// false-positive score, the response plan, the investigation timeline,
// and the final enhanced analysis record.
package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ThreatType categorizes an inbound threat signal.
type ThreatType string

const (
	ThreatBotTraffic         ThreatType = "bot_traffic"
	ThreatCredentialStuffing ThreatType = "credential_stuffing"
	ThreatAccountTakeover    ThreatType = "account_takeover"
	ThreatDataScraping       ThreatType = "data_scraping"
	ThreatGeoAnomaly         ThreatType = "geo_anomaly"
	ThreatRateLimitBreach    ThreatType = "rate_limit_breach"
	ThreatBruteForce         ThreatType = "brute_force"
)

// ThreatTypes lists every valid threat type.
var ThreatTypes = []ThreatType{
	ThreatBotTraffic,
	ThreatCredentialStuffing,
	ThreatAccountTakeover,
	ThreatDataScraping,
	ThreatGeoAnomaly,
	ThreatRateLimitBreach,
	ThreatBruteForce,
}

// Valid reports whether t is one of the enumerated threat types.
func (t ThreatType) Valid() bool {
	for _, known := range ThreatTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ThreatSignal is the immutable input to the analysis pipeline.
// Once ingested (Normalize + Validate) it is read-only.
type ThreatSignal struct {
	ID                string         `json:"id"`
	ThreatType        ThreatType     `json:"threat_type" validate:"required,oneof=bot_traffic credential_stuffing account_takeover data_scraping geo_anomaly rate_limit_breach brute_force"`
	CustomerName      string         `json:"customer_name" validate:"required"`
	CustomerID        string         `json:"customer_id"`
	SourceIP          string         `json:"source_ip" validate:"required"`
	UserAgent         string         `json:"user_agent,omitempty"`
	RequestCount      int            `json:"request_count" validate:"min=0"`
	TimeWindowMinutes int            `json:"time_window_minutes" validate:"min=1"`
	DetectedAt        time.Time      `json:"detected_at"`
	RawData           map[string]any `json:"raw_data,omitempty"`
}

var signalValidator = validator.New()

// Normalize assigns the fields the caller may omit: a fresh id and a UTC
// detection timestamp. Existing values are preserved.
func (s *ThreatSignal) Normalize() {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.DetectedAt.IsZero() {
		s.DetectedAt = time.Now().UTC()
	} else {
		s.DetectedAt = s.DetectedAt.UTC()
	}
}

// Validate checks the signal against the schema invariants. The returned
// error is suitable for surfacing verbatim in a 422 response.
func (s *ThreatSignal) Validate() error {
	if err := signalValidator.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			f := errs[0]
			if f.Field() == "ThreatType" {
				return fmt.Errorf("invalid threat_type %q: must be one of %v", s.ThreatType, ThreatTypes)
			}
			return fmt.Errorf("invalid signal: field %s failed %q constraint", f.Field(), f.Tag())
		}
		return fmt.Errorf("invalid signal: %w", err)
	}
	return nil
}

// RequestsPerMinute returns the signal's request rate. The window is
// clamped to a minimum of one minute so the rate is always defined.
func (s *ThreatSignal) RequestsPerMinute() float64 {
	window := s.TimeWindowMinutes
	if window < 1 {
		window = 1
	}
	return float64(s.RequestCount) / float64(window)
}

// RawString returns raw_data[key] when it is a string, or "" otherwise.
func (s *ThreatSignal) RawString(key string) string {
	if s.RawData == nil {
		return ""
	}
	if v, ok := s.RawData[key].(string); ok {
		return v
	}
	return ""
}
