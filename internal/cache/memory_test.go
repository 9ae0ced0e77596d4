package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.True(t, s.Set(ctx, "k", "v", 0))

	v, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	_, ok = s.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryStoreTTLEviction(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "short", "v", 1)
	require.True(t, s.Exists(ctx, "short"))

	// Backdate the entry instead of sleeping.
	s.mu.Lock()
	s.data["short"] = memoryEntry{value: "v", expiresAt: time.Now().Add(-time.Second)}
	s.mu.Unlock()

	_, ok := s.Get(ctx, "short")
	assert.False(t, ok)
	assert.False(t, s.Exists(ctx, "short"))
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v", 0)
	require.True(t, s.Delete(ctx, "k"))
	assert.False(t, s.Exists(ctx, "k"))

	// Deleting a missing key still reports success, like Redis DEL.
	assert.True(t, s.Delete(ctx, "k"))
}

func TestMemoryStoreIncrement(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, ok := s.Increment(ctx, "counter")
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestMemoryStoreExpireCounter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Increment(ctx, "rate:1")
	require.True(t, s.Expire(ctx, "rate:1", 60))

	got, ok := s.Increment(ctx, "rate:1")
	require.True(t, ok)
	assert.Equal(t, int64(2), got)

	assert.False(t, s.Expire(ctx, "never-seen", 60))
}

func TestMemoryStoreCounterRestartsAfterExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Increment(ctx, "rate:2")
	}
	require.True(t, s.Expire(ctx, "rate:2", 1))

	// Backdate the counter instead of sleeping.
	s.mu.Lock()
	s.counters["rate:2"] = counterEntry{count: 3, expiresAt: time.Now().Add(-time.Second)}
	s.mu.Unlock()

	got, ok := s.Increment(ctx, "rate:2")
	require.True(t, ok)
	assert.Equal(t, int64(1), got)
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "keep", "v", 0)
	s.Set(ctx, "drop1", "v", 1)
	s.Set(ctx, "drop2", "v", 1)

	s.Increment(ctx, "drop3")

	past := time.Now().Add(-time.Second)
	s.mu.Lock()
	s.data["drop1"] = memoryEntry{value: "v", expiresAt: past}
	s.data["drop2"] = memoryEntry{value: "v", expiresAt: past}
	s.counters["drop3"] = counterEntry{count: 1, expiresAt: past}
	s.mu.Unlock()

	assert.Equal(t, 3, s.CleanupExpired())
	assert.True(t, s.Exists(ctx, "keep"))
	assert.Zero(t, s.CleanupExpired())
}

func TestMemoryStoreCloseClears(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Set(ctx, "k", "v", 0)
	s.Increment(ctx, "c")
	require.NoError(t, s.Close())

	assert.False(t, s.Exists(ctx, "k"))
	count, _ := s.Increment(ctx, "c")
	assert.Equal(t, int64(1), count)
}
