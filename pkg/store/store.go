// Package store holds the shared analysis record store: persistence for
// analyzed records plus the publication fan-out that feeds live
// subscribers across replicas.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/edgewatch/vigil/pkg/models"
)

// ErrNotFound is returned by Get when no record exists for the id.
var ErrNotFound = errors.New("record not found")

// ErrPublish wraps broker publication failures. SaveAndPublish retracts
// the saved record before returning it, so callers can treat the whole
// operation as atomic.
var ErrPublish = errors.New("record publication failed")

// SharedStore persists analysis records and fans out each saved record
// to live subscribers. Save and publish succeed or fail together.
type SharedStore interface {
	// SaveAndPublish persists the record and announces it to all
	// subscribers. On publication failure the record is retracted and
	// an error wrapping ErrPublish is returned.
	SaveAndPublish(ctx context.Context, record *models.EnhancedAnalysisRecord) error

	// Get returns the record by signal id, or ErrNotFound.
	Get(ctx context.Context, id string) (*models.EnhancedAnalysisRecord, error)

	// Recent returns up to limit records ordered by detection time,
	// newest first.
	Recent(ctx context.Context, limit int) ([]*models.EnhancedAnalysisRecord, error)

	// Subscribe registers a live subscriber. The subscription only sees
	// records published after registration; there is no replay.
	Subscribe(ctx context.Context) (*Subscription, error)

	// Ready reports whether the backing is reachable.
	Ready(ctx context.Context) bool

	// Close releases the backing and terminates all subscriptions.
	Close() error
}

// Subscription is one live consumer of published records. Its buffer is
// bounded: when the consumer falls behind, the oldest pending record is
// dropped and the drop counter incremented, so a slow consumer can never
// block publication.
type Subscription struct {
	ch      chan *models.EnhancedAnalysisRecord
	dropped atomic.Uint64
	cancel  func()
	once    sync.Once
}

func newSubscription(buffer int, cancel func()) *Subscription {
	return &Subscription{
		ch:     make(chan *models.EnhancedAnalysisRecord, buffer),
		cancel: cancel,
	}
}

// Records is the subscriber's receive channel. It is closed when the
// subscription or the store is closed.
func (s *Subscription) Records() <-chan *models.EnhancedAnalysisRecord {
	return s.ch
}

// Dropped returns how many records were discarded because the buffer was
// full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close deregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

// deliver enqueues without blocking: on a full buffer the oldest pending
// record is evicted to make room for the new one.
func (s *Subscription) deliver(record *models.EnhancedAnalysisRecord) {
	select {
	case s.ch <- record:
		return
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- record:
	default:
		s.dropped.Add(1)
	}
}

// hub is the local subscriber registry shared by both store backings.
// Broadcast never blocks on any subscriber.
type hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

func newHub(buffer int) *hub {
	return &hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

func (h *hub) subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("store is closed")
	}

	var sub *Subscription
	sub = newSubscription(h.buffer, func() { h.remove(sub) })
	h.subs[sub] = struct{}{}
	return sub, nil
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// broadcast delivers under the lock: deliver never blocks, and holding
// the lock excludes a concurrent close of a subscriber channel.
func (h *hub) broadcast(record *models.EnhancedAnalysisRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.deliver(record)
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
