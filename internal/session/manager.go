package session

import (
	"context"
	"fmt"
	"time"

	"github.com/stylebot/server/internal/cache"
	logx "github.com/stylebot/server/pkg/logger"
)

const (
	sessionPrefix = "session:"
	ratePrefix    = "rate:"

	// SessionTTLSeconds expires idle sessions after 7 days.
	SessionTTLSeconds = 60 * 60 * 24 * 7

	// DefaultRateWindowSeconds is the rate-limit counting window.
	DefaultRateWindowSeconds = 60
)

// Manager reads and writes sessions through the shared store. It works the
// same against the Redis or the in-memory backend.
type Manager struct {
	store cache.Store
}

func NewManager(store cache.Store) *Manager {
	return &Manager{store: store}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", sessionPrefix, userID)
}

func rateKey(userID int64) string {
	return fmt.Sprintf("%s%d", ratePrefix, userID)
}

// GetSession loads the stored session for the user, or returns a fresh
// unsaved one on miss or parse failure. It never fails.
func (m *Manager) GetSession(ctx context.Context, userID int64) *Session {
	data, ok := m.store.Get(ctx, sessionKey(userID))
	if ok {
		s, err := FromJSON(data)
		if err == nil {
			logx.Debug().Int64("user_id", userID).Msg("session loaded")
			return s
		}
		logx.Warn().Err(err).Int64("user_id", userID).Msg("session parse failed, starting fresh")
	}

	logx.Info().Int64("user_id", userID).Msg("session created")
	return NewSession(userID)
}

// SaveSession stamps UpdatedAt and writes the session with the 7-day TTL.
// The caller decides whether a false return warrants a degraded-persistence
// warning to the user.
func (m *Manager) SaveSession(ctx context.Context, s *Session) bool {
	s.UpdatedAt = time.Now().UTC()

	data, err := s.ToJSON()
	if err != nil {
		logx.Error().Err(err).Int64("user_id", s.UserID).Msg("session marshal failed")
		return false
	}

	ok := m.store.Set(ctx, sessionKey(s.UserID), data, SessionTTLSeconds)
	if ok {
		logx.Debug().
			Int64("user_id", s.UserID).
			Int("message_count", s.MessageCount).
			Msg("session saved")
	} else {
		logx.Error().Int64("user_id", s.UserID).Msg("session save failed")
	}
	return ok
}

// DeleteSession removes the stored record. Subsequent reads see a fresh
// in-memory default.
func (m *Manager) DeleteSession(ctx context.Context, userID int64) bool {
	ok := m.store.Delete(ctx, sessionKey(userID))
	if ok {
		logx.Info().Int64("user_id", userID).Msg("session deleted")
	}
	return ok
}

// UpdateUserInfo is a read-modify-write convenience that only overwrites the
// fields that are supplied.
func (m *Manager) UpdateUserInfo(ctx context.Context, userID int64, firstName, username, location string) *Session {
	s := m.GetSession(ctx, userID)

	if firstName != "" {
		s.FirstName = firstName
	}
	if username != "" {
		s.Username = username
	}
	if location != "" {
		s.Location = location
	}

	m.SaveSession(ctx, s)
	return s
}

// CheckRateLimit increments the user's request counter and reports whether
// the request is within max for the window.
//
// On the first request in a window the expiry is set in a separate call;
// under concurrent first-requests the window can be set more than once or
// not at all. The window only needs to be approximately right, so this is
// accepted rather than made transactional.
//
// The check fails open: a backend error allows the request and returns a
// zero count, because rate limiting must never block a user over an
// infrastructure fault.
func (m *Manager) CheckRateLimit(ctx context.Context, userID int64, maxRequests, windowSeconds int) (bool, int64) {
	key := rateKey(userID)

	count, ok := m.store.Increment(ctx, key)
	if !ok {
		logx.Warn().Int64("user_id", userID).Msg("rate limit check failed, allowing request")
		return true, 0
	}

	if count == 1 {
		m.store.Expire(ctx, key, windowSeconds)
	}

	allowed := count <= int64(maxRequests)
	if !allowed {
		logx.Warn().
			Int64("user_id", userID).
			Int64("count", count).
			Int("max_requests", maxRequests).
			Msg("rate limit exceeded")
	}

	return allowed, count
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
