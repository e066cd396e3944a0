package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/edgewatch/vigil/pkg/models"
)

const (
	recordKeyPrefix = "record:"
	indexKey        = "records:index"
	eventsChannel   = "threats:events"

	reconnectBackoffMin = time.Second
	reconnectBackoffMax = 30 * time.Second
)

// RedisStore is the broker-backed SharedStore. All replicas share the
// record keyspace, and publications travel through a pub/sub channel so
// every replica — the publisher included — fans the record out to its
// local subscribers through the same path.
type RedisStore struct {
	client    *redis.Client
	retention int
	hub       *hub

	// cancelLoop and loopDone coordinate graceful shutdown of the
	// receive loop.
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
}

// NewRedisStore connects to the broker at url, verifies it is reachable,
// and starts the subscription receive loop.
func NewRedisStore(ctx context.Context, url string, retention, subscriberBuffer int) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store backing unreachable: %w", err)
	}

	s := &RedisStore{
		client:    client,
		retention: retention,
		hub:       newHub(subscriberBuffer),
		loopDone:  make(chan struct{}),
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancelLoop = cancel
	go func() {
		defer close(s.loopDone)
		s.receiveLoop(loopCtx)
	}()

	slog.Info("Shared store connected", "backing", "redis", "retention", retention)
	return s, nil
}

func recordKey(id string) string {
	return recordKeyPrefix + id
}

// SaveAndPublish persists the record, trims the ordered index to the
// retention cap, then publishes the record to the events channel. If
// publication fails the saved record is retracted so no replica can read
// a record that was never announced.
func (s *RedisStore) SaveAndPublish(ctx context.Context, record *models.EnhancedAnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.ID(), err)
	}

	id := record.ID()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(id), payload, 0)
	pipe.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(record.Signal.DetectedAt.UnixMilli()),
		Member: id,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save record %s: %w", id, err)
	}
	s.trim(ctx)

	if err := s.client.Publish(ctx, eventsChannel, payload).Err(); err != nil {
		s.retract(ctx, id)
		return fmt.Errorf("record %s: %w: %v", id, ErrPublish, err)
	}
	return nil
}

// trim evicts the oldest records past the retention cap, removing both
// the index entries and the record keys. Trim failures are logged, not
// returned: the new record itself was already saved.
func (s *RedisStore) trim(ctx context.Context) {
	ids, err := s.client.ZRange(ctx, indexKey, 0, int64(-(s.retention+1))).Result()
	if err != nil {
		slog.Error("Record retention trim failed", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, recordKey(id))
	}
	pipe.ZRem(ctx, indexKey, idsToMembers(ids)...)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Record retention trim failed", "error", err)
	}
}

func idsToMembers(ids []string) []any {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	return members
}

// retract removes a saved record whose publication failed. It runs on a
// detached context so a caller deadline that killed the publish cannot
// also kill the cleanup.
func (s *RedisStore) retract(ctx context.Context, id string) {
	retractCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.client.Del(retractCtx, recordKey(id)).Err(); err != nil {
		slog.Error("Record retraction failed", "record_id", id, "error", err)
	}
	if err := s.client.ZRem(retractCtx, indexKey, id).Err(); err != nil {
		slog.Error("Index retraction failed", "record_id", id, "error", err)
	}
}

// Get returns the record by id, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.EnhancedAnalysisRecord, error) {
	payload, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}

	var record models.EnhancedAnalysisRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", id, err)
	}
	return &record, nil
}

// Recent returns up to limit records by detection time, newest first.
func (s *RedisStore) Recent(ctx context.Context, limit int) ([]*models.EnhancedAnalysisRecord, error) {
	if limit <= 0 {
		return []*models.EnhancedAnalysisRecord{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read record index: %w", err)
	}
	if len(ids) == 0 {
		return []*models.EnhancedAnalysisRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	payloads, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	out := make([]*models.EnhancedAnalysisRecord, 0, len(payloads))
	for i, payload := range payloads {
		raw, ok := payload.(string)
		if !ok {
			// Index entry whose record was retracted concurrently.
			continue
		}
		var record models.EnhancedAnalysisRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("unmarshal record %s: %w", ids[i], err)
		}
		out = append(out, &record)
	}

	// ZRevRange orders same-score members id-descending; ties must come
	// back id-ascending.
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].Signal.DetectedAt, out[j].Signal.DetectedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

// Subscribe registers a live subscriber. Delivery starts with the next
// publication; records published before the subscription are not
// replayed.
func (s *RedisStore) Subscribe(_ context.Context) (*Subscription, error) {
	return s.hub.subscribe()
}

// Ready reports whether the broker answers a ping.
func (s *RedisStore) Ready(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// receiveLoop owns the pub/sub connection: it consumes published records
// and fans them out to local subscribers, reconnecting with capped
// exponential backoff when the broker connection is lost.
func (s *RedisStore) receiveLoop(ctx context.Context) {
	backoff := reconnectBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := s.client.Subscribe(ctx, eventsChannel)
		// A blocked socket read does not observe ctx cancellation, so
		// shutdown tears the connection down to unblock it.
		stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })
		if _, err := pubsub.Receive(ctx); err != nil {
			stop()
			_ = pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			slog.Error("Store subscription failed", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectBackoffMax)
			continue
		}
		backoff = reconnectBackoffMin

		s.consume(ctx, pubsub)
		stop()
		_ = pubsub.Close()
	}
}

// consume reads messages until the connection breaks or ctx is done.
func (s *RedisStore) consume(ctx context.Context, pubsub *redis.PubSub) {
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("Store receive error", "error", err)
			return
		}

		var record models.EnhancedAnalysisRecord
		if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
			slog.Warn("Dropping malformed published record", "error", err)
			continue
		}
		s.hub.broadcast(&record)
	}
}

// Close stops the receive loop, terminates all subscriptions, and closes
// the broker client.
func (s *RedisStore) Close() error {
	s.cancelLoop()
	<-s.loopDone
	s.hub.close()
	return s.client.Close()
}
