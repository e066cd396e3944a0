package knowledge

import (
	"fmt"
	"time"

	"github.com/edgewatch/vigil/pkg/models"
)

// NewSeededStore returns a store preloaded with reference data covering
// every threat type and a spread of customers, so mock-mode end-to-end
// runs produce meaningful analyses.
func NewSeededStore() *Store {
	s := NewStore()
	now := time.Now().UTC()

	seedCustomers(s)
	seedIncidents(s, now)
	seedInfraEvents(s, now)
	seedIntel(s)

	return s
}

func seedCustomers(s *Store) {
	s.SetCustomerConfig(models.CustomerConfig{
		CustomerName:       "acme",
		Tier:               "enterprise",
		AutoBlockEnabled:   false,
		RateLimitThreshold: 1000,
		EscalationContacts: []string{"acme-soc@example.com", "acme-oncall@example.com"},
		AllowedIPRanges:    []string{"10.0.0.0/8"},
	})
	s.SetCustomerConfig(models.CustomerConfig{
		CustomerName:       "globex",
		Tier:               "enterprise",
		AutoBlockEnabled:   true,
		RateLimitThreshold: 500,
		EscalationContacts: []string{"globex-security@example.com"},
	})
	s.SetCustomerConfig(models.CustomerConfig{
		CustomerName:       "initech",
		Tier:               "standard",
		AutoBlockEnabled:   false,
		RateLimitThreshold: 200,
	})
}

func seedIncidents(s *Store, now time.Time) {
	// Per threat type: a mix of real threats and resolved false positives.
	// bot_traffic skews FP (crawlers), credential_stuffing skews real.
	cases := []struct {
		threat models.ThreatType
		fp     int
		real   int
	}{
		{models.ThreatBotTraffic, 4, 1},
		{models.ThreatCredentialStuffing, 1, 5},
		{models.ThreatAccountTakeover, 1, 4},
		{models.ThreatDataScraping, 2, 3},
		{models.ThreatGeoAnomaly, 3, 1},
		{models.ThreatRateLimitBreach, 3, 2},
		{models.ThreatBruteForce, 1, 3},
	}
	customers := []string{"acme", "globex", "initech"}

	n := 0
	for _, c := range cases {
		for _, customer := range customers {
			for i := 0; i < c.fp; i++ {
				n++
				s.AddIncident(models.Incident{
					ID:           fmt.Sprintf("inc-%04d", n),
					ThreatType:   c.threat,
					CustomerName: customer,
					SourceIP:     fmt.Sprintf("198.51.100.%d", n%250),
					ResolvedAsFP: true,
					Resolution:   "confirmed benign after review",
					OccurredAt:   now.Add(-time.Duration(n) * time.Hour),
				})
			}
			for i := 0; i < c.real; i++ {
				n++
				s.AddIncident(models.Incident{
					ID:           fmt.Sprintf("inc-%04d", n),
					ThreatType:   c.threat,
					CustomerName: customer,
					SourceIP:     fmt.Sprintf("203.0.113.%d", n%250),
					ResolvedAsFP: false,
					Resolution:   "mitigated",
					OccurredAt:   now.Add(-time.Duration(n) * time.Hour),
				})
			}
		}
	}
}

func seedInfraEvents(s *Store, now time.Time) {
	s.AddInfraEvent(models.InfraEvent{
		ID:          "infra-001",
		EventType:   "deploy",
		Service:     "edge-gateway",
		Description: "edge-gateway v2.14.0 rollout",
		OccurredAt:  now.Add(-25 * time.Minute),
	})
	s.AddInfraEvent(models.InfraEvent{
		ID:          "infra-002",
		EventType:   "config_change",
		Service:     "waf",
		Description: "WAF ruleset update: tightened rate-limit rules",
		OccurredAt:  now.Add(-45 * time.Minute),
	})
	s.AddInfraEvent(models.InfraEvent{
		ID:          "infra-003",
		EventType:   "failover",
		Service:     "auth-service",
		Description: "auth-service region failover drill",
		OccurredAt:  now.Add(-3 * time.Hour),
	})
}

func seedIntel(s *Store) {
	s.AddIntel(models.IntelItem{
		ID:       "intel-001",
		Source:   "abuse-feed",
		Summary:  "Credential stuffing campaign targeting SaaS login endpoints",
		Keywords: []string{"credential_stuffing", "acme", "login"},
		Severity: "high",
	})
	s.AddIntel(models.IntelItem{
		ID:       "intel-002",
		Source:   "crawler-registry",
		Summary:  "Verified search-engine crawler IP ranges updated",
		Keywords: []string{"bot_traffic", "crawler"},
		Severity: "info",
	})
	s.AddIntel(models.IntelItem{
		ID:       "intel-003",
		Source:   "dark-web-monitor",
		Summary:  "Combo list including globex user emails observed",
		Keywords: []string{"account_takeover", "globex", "brute_force"},
		Severity: "high",
	})
	s.AddIntel(models.IntelItem{
		ID:       "intel-004",
		Source:   "scraper-watch",
		Summary:  "Headless-browser scraping toolkit update evades UA checks",
		Keywords: []string{"data_scraping"},
		Severity: "medium",
	})
}
