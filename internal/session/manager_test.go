package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylebot/server/internal/cache"
)

// brokenStore fails every operation, standing in for a dead backend.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool) { return "", false }

func (brokenStore) Set(context.Context, string, string, int) bool { return false }

func (brokenStore) Delete(context.Context, string) bool { return false }

func (brokenStore) Exists(context.Context, string) bool { return false }

func (brokenStore) Increment(context.Context, string) (int64, bool) { return 0, false }

func (brokenStore) Expire(context.Context, string, int) bool { return false }

func (brokenStore) Ping(context.Context) bool { return false }

func (brokenStore) Close() error { return nil }

func newTestManager() *Manager {
	return NewManager(cache.NewMemoryStore())
}

func TestGetSessionMissReturnsFresh(t *testing.T) {
	m := newTestManager()

	s := m.GetSession(context.Background(), 11)
	require.NotNil(t, s)
	assert.Equal(t, int64(11), s.UserID)
	assert.Empty(t, s.Messages)
}

func TestSaveAndReloadSession(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	s := m.GetSession(ctx, 12)
	s.AddMessage(RoleUser, "hello")
	s.Location = "Seattle"
	require.True(t, m.SaveSession(ctx, s))

	reloaded := m.GetSession(ctx, 12)
	assert.Equal(t, "Seattle", reloaded.Location)
	require.Len(t, reloaded.Messages, 1)
	assert.Equal(t, "hello", reloaded.Messages[0].Content)
}

func TestGetSessionCorruptRecordStartsFresh(t *testing.T) {
	store := cache.NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	store.Set(ctx, sessionKey(13), "{corrupt", SessionTTLSeconds)

	s := m.GetSession(ctx, 13)
	assert.Equal(t, int64(13), s.UserID)
	assert.Empty(t, s.Messages)
}

func TestDeleteSession(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	s := m.GetSession(ctx, 14)
	s.AddMessage(RoleUser, "remember me")
	m.SaveSession(ctx, s)

	require.True(t, m.DeleteSession(ctx, 14))
	assert.Empty(t, m.GetSession(ctx, 14).Messages)
}

func TestUpdateUserInfoSkipsEmptyFields(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.UpdateUserInfo(ctx, 15, "Dana", "dana_fit", "Portland")
	s := m.UpdateUserInfo(ctx, 15, "", "", "Denver")

	assert.Equal(t, "Dana", s.FirstName)
	assert.Equal(t, "dana_fit", s.Username)
	assert.Equal(t, "Denver", s.Location)
}

func TestSaveSessionStampsUpdatedAt(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	s := m.GetSession(ctx, 22)
	stale := time.Now().Add(-time.Hour).UTC()
	s.UpdatedAt = stale
	require.True(t, m.SaveSession(ctx, s))
	assert.True(t, s.UpdatedAt.After(stale))

	// A metadata-only update refreshes the stored timestamp too.
	m.UpdateUserInfo(ctx, 22, "", "", "Oslo")
	reloaded := m.GetSession(ctx, 22)
	assert.True(t, reloaded.UpdatedAt.After(stale))
	assert.Equal(t, "Oslo", reloaded.Location)
}

func TestCheckRateLimitWithinWindow(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 1; i <= 30; i++ {
		allowed, count := m.CheckRateLimit(ctx, 16, 30, 60)
		assert.True(t, allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(i), count)
	}

	allowed, count := m.CheckRateLimit(ctx, 16, 30, 60)
	assert.False(t, allowed)
	assert.Equal(t, int64(31), count)
}

func TestCheckRateLimitIsPerUser(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.CheckRateLimit(ctx, 17, 1, 60)
	allowed, _ := m.CheckRateLimit(ctx, 17, 1, 60)
	assert.False(t, allowed)

	otherAllowed, otherCount := m.CheckRateLimit(ctx, 18, 1, 60)
	assert.True(t, otherAllowed)
	assert.Equal(t, int64(1), otherCount)
}

func TestCheckRateLimitWindowReopens(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.CheckRateLimit(ctx, 21, 2, 1)
	}
	allowed, _ := m.CheckRateLimit(ctx, 21, 2, 1)
	require.False(t, allowed)

	time.Sleep(1100 * time.Millisecond)

	allowed, count := m.CheckRateLimit(ctx, 21, 2, 1)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), count)
}

func TestCheckRateLimitFailsOpen(t *testing.T) {
	m := NewManager(brokenStore{})

	allowed, count := m.CheckRateLimit(context.Background(), 19, 30, 60)
	assert.True(t, allowed)
	assert.Zero(t, count)
}

func TestSaveSessionReportsBackendFailure(t *testing.T) {
	m := NewManager(brokenStore{})
	s := NewSession(20)
	assert.False(t, m.SaveSession(context.Background(), s))
}
