package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/edgewatch/vigil/pkg/models"
)

// MemoryStore is the in-process SharedStore backing for single-replica
// deployments and tests. Records are stored as JSON so reads return
// independent copies, the same ownership contract the broker backing
// gives.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string][]byte
	order     []indexEntry
	retention int
	closed    bool

	hub *hub
}

type indexEntry struct {
	id         string
	detectedAt int64 // unix millis
}

// NewMemoryStore creates an in-process store keeping at most retention
// records, with the given per-subscriber buffer depth.
func NewMemoryStore(retention, subscriberBuffer int) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string][]byte),
		retention: retention,
		hub:       newHub(subscriberBuffer),
	}
}

// SaveAndPublish persists the record and broadcasts it to local
// subscribers. In-process publication cannot fail, so the save is final.
func (s *MemoryStore) SaveAndPublish(_ context.Context, record *models.EnhancedAnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID(), err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("store is closed")
	}
	id := record.ID()
	if _, exists := s.records[id]; !exists {
		s.order = append(s.order, indexEntry{id: id, detectedAt: record.Signal.DetectedAt.UnixMilli()})
		// Ties sort id-descending here so the reverse iteration in Recent
		// yields them id-ascending.
		sort.SliceStable(s.order, func(i, j int) bool {
			if s.order[i].detectedAt != s.order[j].detectedAt {
				return s.order[i].detectedAt < s.order[j].detectedAt
			}
			return s.order[i].id > s.order[j].id
		})
	}
	s.records[id] = payload
	s.trimLocked()
	s.mu.Unlock()

	s.hub.broadcast(record)
	return nil
}

// trimLocked evicts the oldest records past the retention cap.
func (s *MemoryStore) trimLocked() {
	for len(s.order) > s.retention {
		evicted := s.order[0]
		s.order = s.order[1:]
		delete(s.records, evicted.id)
	}
}

// Get returns the record by id, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.EnhancedAnalysisRecord, error) {
	s.mu.RLock()
	payload, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var record models.EnhancedAnalysisRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &record, nil
}

// Recent returns up to limit records, newest detection first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]*models.EnhancedAnalysisRecord, error) {
	if limit <= 0 {
		return []*models.EnhancedAnalysisRecord{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.EnhancedAnalysisRecord, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		var record models.EnhancedAnalysisRecord
		if err := json.Unmarshal(s.records[s.order[i].id], &record); err != nil {
			return nil, fmt.Errorf("unmarshal record %s: %w", s.order[i].id, err)
		}
		out = append(out, &record)
	}
	return out, nil
}

// Subscribe registers a live subscriber on the local hub.
func (s *MemoryStore) Subscribe(_ context.Context) (*Subscription, error) {
	return s.hub.subscribe()
}

// Ready always reports true: there is no external backing to lose.
func (s *MemoryStore) Ready(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Close terminates all subscriptions and rejects further writes.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.close()
	return nil
}
