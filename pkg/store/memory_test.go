package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	record := testRecord("sig-1", time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, s.SaveAndPublish(ctx, record))

	got, err := s.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "sig-1", got.ID())
	assert.Equal(t, record.Severity, got.Severity)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", time.Now().UTC())))

	first, err := s.Get(ctx, "sig-1")
	require.NoError(t, err)
	first.Severity = "tampered"

	second, err := s.Get(ctx, "sig-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Severity, second.Severity)
}

func TestMemoryStore_RecentOrderingAndLimit(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// Insert out of detection order: ordering follows DetectedAt, not
	// write order.
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-2", base.Add(2*time.Minute))))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", base.Add(1*time.Minute))))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-3", base.Add(3*time.Minute))))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "sig-3", recent[0].ID())
	assert.Equal(t, "sig-2", recent[1].ID())
	assert.Equal(t, "sig-1", recent[2].ID())

	recent, err = s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "sig-3", recent[0].ID())

	recent, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMemoryStore_RecentTieBreaksByIDAscending(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	// Insertion order must not leak into tie ordering.
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

func TestMemoryStore_RetentionEvictsOldest(t *testing.T) {
	s := NewMemoryStore(3, 16)
	defer s.Close()
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

	_, err = s.Get(ctx, "sig-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ResaveDoesNotDuplicateIndex(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	detected := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", detected)))
	require.NoError(t, s.SaveAndPublish(ctx, testRecord("sig-1", detected)))

	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestMemoryStore_SubscribeDeliversNewRecordsOnly(t *testing.T) {
	s := NewMemoryStore(100, 16)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("before", time.Now().UTC())))

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// No replay of records published before the subscription.
	requireNoRecord(t, sub)

	require.NoError(t, s.SaveAndPublish(ctx, testRecord("after", time.Now().UTC())))
	assert.Equal(t, "after", waitRecord(t, sub).ID())
}

func TestMemoryStore_CloseRejectsWritesAndEndsSubscriptions(t *testing.T) {
	s := NewMemoryStore(100, 16)
	ctx := context.Background()

	sub, err := s.Subscribe(ctx)
	require.NoError(t, err)

	require.True(t, s.Ready(ctx))
	require.NoError(t, s.Close())
	assert.False(t, s.Ready(ctx))

	_, ok := <-sub.Records()
	assert.False(t, ok)

	err = s.SaveAndPublish(ctx, testRecord("late", time.Now().UTC()))
	assert.Error(t, err)
}
