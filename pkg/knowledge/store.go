// Package knowledge provides read-only lookups over past incidents,
// customer configuration, recent infrastructure events, and external
// threat intelligence. The reference implementation is in-memory and
// sub-millisecond; failures are reported through the ok flag so the
// coordinator can decide how to degrade.
package knowledge

import (
	"strings"
	"sync"
	"time"

	"github.com/edgewatch/vigil/pkg/models"
)

// Store holds the lookup datasets. All methods are safe for concurrent
// use and side-effect-free.
type Store struct {
	mu          sync.RWMutex
	incidents   []models.Incident
	customers   map[string]models.CustomerConfig
	infraEvents []models.InfraEvent
	intel       []models.IntelItem
}

// NewStore creates an empty store. Use NewSeededStore for a store
// preloaded with reference data.
func NewStore() *Store {
	return &Store{customers: make(map[string]models.CustomerConfig)}
}

// SimilarIncidents returns resolved incidents matching the threat type and
// customer. The ok flag is false only on lookup failure, not on an empty
// result.
func (s *Store) SimilarIncidents(threatType models.ThreatType, customerName string) ([]models.Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Incident
	for _, inc := range s.incidents {
		if inc.ThreatType == threatType && inc.CustomerName == customerName {
			out = append(out, inc)
		}
	}
	return out, true
}

// CustomerConfig returns the tenant policy for a customer. The ok flag is
// false when the customer is unknown.
func (s *Store) CustomerConfig(customerName string) (models.CustomerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.customers[customerName]
	return cfg, ok
}

// RecentInfraEvents returns infrastructure events within the given window
// ending now.
func (s *Store) RecentInfraEvents(window time.Duration) ([]models.InfraEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-window)
	var out []models.InfraEvent
	for _, ev := range s.infraEvents {
		if ev.OccurredAt.After(cutoff) {
			out = append(out, ev)
		}
	}
	return out, true
}

// RelevantIntel returns intel items whose keywords match any of the given
// keywords (case-insensitive).
func (s *Store) RelevantIntel(keywords []string) ([]models.IntelItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.IntelItem
	for _, item := range s.intel {
		if matchesAny(item.Keywords, keywords) {
			out = append(out, item)
		}
	}
	return out, true
}

func matchesAny(itemKeywords, query []string) bool {
	for _, q := range query {
		for _, k := range itemKeywords {
			if strings.EqualFold(k, q) {
				return true
			}
		}
	}
	return false
}

// AddIncident appends an incident to the historical dataset. Used by
// seeding and tests; the analysis pipeline itself never writes.
func (s *Store) AddIncident(inc models.Incident) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, inc)
}

// SetCustomerConfig registers or replaces a tenant policy.
func (s *Store) SetCustomerConfig(cfg models.CustomerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[cfg.CustomerName] = cfg
}

// AddInfraEvent appends an infrastructure event.
func (s *Store) AddInfraEvent(ev models.InfraEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.infraEvents = append(s.infraEvents, ev)
}

// AddIntel appends a threat-intelligence item.
func (s *Store) AddIntel(item models.IntelItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intel = append(s.intel, item)
}
