package cache

import (
	"context"
	"sync"
	"time"

	logx "github.com/stylebot/server/pkg/logger"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type counterEntry struct {
	count     int64
	expiresAt time.Time // zero means no expiry
}

func (e counterEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// janitorInterval is how often the background sweep evicts expired entries.
const janitorInterval = time.Minute

// MemoryStore is the in-process fallback backend. Data does not survive a
// restart; it exists so single-user or degraded deployments keep working when
// Redis is down. A single mutex guards all mutating operations. Increment
// followed by Expire is still two separate calls, so composed sequences are
// approximate under concurrency, same as with the Redis backend.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]memoryEntry
	counters map[string]counterEntry

	stopJanitor chan struct{}
	stopOnce    sync.Once
}

func NewMemoryStore() *MemoryStore {
	logx.Warn().Msg("using in-memory store, data will not persist across restarts")
	s := &MemoryStore{
		data:        make(map[string]memoryEntry),
		counters:    make(map[string]counterEntry),
		stopJanitor: make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-s.stopJanitor:
			return
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return "", false
	}
	if entry.expired(time.Now()) {
		delete(s.data, key)
		return "", false
	}
	return entry.value, true
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttlSeconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttlSeconds > 0 {
		expiresAt = time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	s.data[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return true
}

func (s *MemoryStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	delete(s.counters, key)
	return true
}

func (s *MemoryStore) Exists(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[key]
	if !ok {
		return false
	}
	if entry.expired(time.Now()) {
		delete(s.data, key)
		return false
	}
	return true
}

// Increment restarts an expired counter at 1, so a rate window reopens the
// same way it does when Redis drops the key.
func (s *MemoryStore) Increment(_ context.Context, key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.counters[key]
	if entry.expired(time.Now()) {
		entry = counterEntry{}
	}
	entry.count++
	s.counters[key] = entry
	return entry.count, true
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttlSeconds int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)

	if entry, ok := s.data[key]; ok {
		entry.expiresAt = expiresAt
		s.data[key] = entry
		return true
	}
	if entry, ok := s.counters[key]; ok && !entry.expired(time.Now()) {
		entry.expiresAt = expiresAt
		s.counters[key] = entry
		return true
	}
	return false
}

func (s *MemoryStore) Ping(_ context.Context) bool {
	return true
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopJanitor) })

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]memoryEntry)
	s.counters = make(map[string]counterEntry)
	return nil
}

// CleanupExpired removes all expired entries and counters and returns how
// many were evicted.
func (s *MemoryStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
			removed++
		}
	}
	for key, entry := range s.counters {
		if entry.expired(now) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

var _ Store = (*MemoryStore)(nil)
