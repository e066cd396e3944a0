package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, mr *miniredis.Miniredis, retention int) *RedisStore {
	t.Helper()
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), retention, 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// waitSubscribers blocks until n receive loops are attached to the
// events channel, so a publish cannot race subscription setup.
func waitSubscribers(t *testing.T, mr *miniredis.Miniredis, n int64) {
	t.Helper()
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	require.Eventually(t, func() bool {
		counts, err := cli.PubSubNumSub(context.Background(), eventsChannel).Result()
		return err == nil && counts[eventsChannel] >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisStore_UnreachableBroker(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "redis://127.0.0.1:1", 100, 16)
	require.Error(t, err)

	_, err = NewRedisStore(context.Background(), "not a url", 100, 16)
	require.Error(t, err)
}

func TestRedisStore_SaveAndGet(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	ctx := context.Background()

	record := testRecord("sig-1", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveAndPublish(ctx, record))

	got, err := s.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", got.ID())
	assert.Equal(t, record.Severity, got.Severity)
	assert.True(t, got.Signal.DetectedAt.Equal(record.Signal.DetectedAt))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_RecentOrderingAndLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-2", base.Add(2*time.Minute))))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", base.Add(1*time.Minute))))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-3", base.Add(3*time.Minute))))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "sig-3", recent[0].ID())
	assert.Equal(t, "sig-2", recent[1].ID())
	assert.Equal(t, "sig-1", recent[2].ID())

	recent, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "sig-3", recent[0].ID())

	recent, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRedisStore_RetentionEvictsOldest(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 3)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		record := testRecord(fmt.Sprintf("sig-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveAndPublish(ctx, record))
	}

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "sig-5", recent[0].ID())
	assert.Equal(t, "sig-3", recent[2].ID())

	// Evicted records are gone entirely, not just unindexed.
	_, err = s.Get(ctx, "sig-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("record:sig-1"))
}

func TestRedisStore_FanOutAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	publisher := newTestRedisStore(t, mr, 100)
	replica := newTestRedisStore(t, mr, 100)
	waitSubscribers(t, mr, 2)

	pubSub, err := publisher.Subscribe(ctx)
	require.NoError(t, err)
	defer pubSub.Close()
	repSub, err := replica.Subscribe(ctx)
	require.NoError(t, err)
	defer repSub.Close()

	record := testRecord("sig-shared", time.Now().UTC())
	require.NoError(t, publisher.SaveAndPublish(ctx, record))

	// Both replicas deliver the record, the publisher included: its
	// local fan-out also goes through the broker.
	assert.Equal(t, "sig-shared", waitRecord(t, repSub).ID())
	assert.Equal(t, "sig-shared", waitRecord(t, pubSub).ID())

	// The record is readable from the replica that did not write it.
	got, err := replica.Get(ctx, "sig-shared")
	require.NoError(t, err)
	assert.Equal(t, "sig-shared", got.ID())
}

func TestRedisStore_NoReplayForLateSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	waitSubscribers(t, mr, 1)
	ctx := context.Background()

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("before", time.Now().UTC())))

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()
	requireNoRecord(t, sub)

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("after", time.Now().UTC())))
	assert.Equal(t, "after", waitRecord(t, sub).ID())
}

func TestRedisStore_RetractRemovesSavedRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	ctx := context.Background()

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", time.Now().UTC())))
	s.retract(ctx, "sig-1")

	_, err := s.Get(ctx, "sig-1")
	assert.ErrorIs(t, err, ErrNotFound)

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestRedisStore_Ready(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	ctx := context.Background()

	assert.True(t, s.Ready(ctx))
	mr.Close()
	assert.False(t, s.Ready(ctx))
}

func TestRedisStore_RecentTieBreaksByIDAscending(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestRedisStore(t, mr, 100)
	ctx := context.Background()

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("bbb", at)))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("aaa", at)))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("zzz", at.Add(-time.Minute))))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "aaa", recent[0].ID())
	assert.Equal(t, "bbb", recent[1].ID())
	assert.Equal(t, "zzz", recent[2].ID())
}

func TestRedisStore_CloseReturnsAfterTraffic(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), 100, 16)
	require.NoError(t, err)
	waitSubscribers(t, mr, 1)

	sub, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	// Drive a message through the pub/sub connection so the receive loop
	// is parked in a socket read when Close runs.
	require.NoError(t, s.SaveAndPublish(context.Background(), testRecord("sig-1", time.Now().UTC())))
	assert.Equal(t, "sig-1", waitRecord(t, sub).ID())

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestRedisStore_CloseTerminatesSubscriptions(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), 100, 16)
	require.NoError(t, err)

	sub, err := s.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	_, ok := <-sub.Records()
	assert.False(t, ok)
}
