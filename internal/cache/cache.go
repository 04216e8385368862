package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/metrics"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/storage"
)

// Entry is the persisted form of a cached value. A value is readable only
// while now is before ExpiresAt.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (e Entry) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Options configures a Store. Every field is optional; a nil Durable backend
// leaves the store memory-only.
type Options struct {
	Durable storage.Backend
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Now     func() time.Time
}

// Store is a two-tier key-value cache. The memory tier is consulted first;
// the durable tier is the source of truth on cold start and is mirrored into
// memory on the first read. Durable failures never reach callers: reads treat
// them as misses and writes keep only the memory copy.
type Store struct {
	durable storage.Backend
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu     sync.RWMutex
	memory map[string]Entry
}

func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		durable: opts.Durable,
		logger:  logger.With(slog.String("component", "cache")),
		metrics: opts.Metrics,
		now:     now,
		memory:  make(map[string]Entry),
	}
}

// Get returns the raw JSON stored under key when it is present and unexpired.
// Expired entries are evicted from both tiers.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	now := s.now()

	s.mu.RLock()
	entry, ok := s.memory[key]
	s.mu.RUnlock()
	if ok {
		if entry.expired(now) {
			s.evict(ctx, key)
			s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheMiss)
			return nil, false
		}
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheHit)
		return entry.Data, true
	}

	if s.durable == nil {
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheMiss)
		return nil, false
	}

	payload, found, err := s.durable.Get(ctx, key)
	if err != nil {
		s.logger.Warn("durable cache read failed", slog.String("key", key), slog.Any("error", err))
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheError)
		return nil, false
	}
	if !found {
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheMiss)
		return nil, false
	}

	if err := json.Unmarshal(payload, &entry); err != nil || entry.ExpiresAt.IsZero() {
		s.logger.Warn("discarding corrupt cache entry", slog.String("key", key))
		s.deleteDurable(ctx, key)
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheCorrupt)
		return nil, false
	}
	if entry.expired(now) {
		s.deleteDurable(ctx, key)
		s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheMiss)
		return nil, false
	}

	s.mu.Lock()
	s.memory[key] = entry
	s.mu.Unlock()
	s.metrics.ObserveCache(key, metrics.CacheOperationGet, metrics.CacheHit)
	return entry.Data, true
}

// Set stores value in both tiers with expiresAt = now + ttl. A non-positive
// ttl removes any existing entry instead.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		s.Clear(ctx, key)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("cache value not serializable", slog.String("key", key), slog.Any("error", err))
		s.metrics.ObserveCache(key, metrics.CacheOperationSet, metrics.CacheError)
		return
	}
	entry := Entry{Data: data, ExpiresAt: s.now().Add(ttl)}

	s.mu.Lock()
	s.memory[key] = entry
	s.mu.Unlock()

	if s.durable == nil {
		s.metrics.ObserveCache(key, metrics.CacheOperationSet, metrics.CacheStored)
		return
	}
	payload, err := json.Marshal(entry)
	if err == nil {
		err = s.durable.Set(ctx, key, payload, ttl)
	}
	if err != nil {
		s.logger.Warn("durable cache write failed; keeping memory copy", slog.String("key", key), slog.Any("error", err))
		s.metrics.ObserveCache(key, metrics.CacheOperationSet, metrics.CacheError)
		return
	}
	s.metrics.ObserveCache(key, metrics.CacheOperationSet, metrics.CacheStored)
}

// Clear removes key from both tiers unconditionally.
func (s *Store) Clear(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.memory, key)
	s.mu.Unlock()
	if !s.deleteDurable(ctx, key) {
		s.metrics.ObserveCache(key, metrics.CacheOperationClear, metrics.CacheError)
		return
	}
	s.metrics.ObserveCache(key, metrics.CacheOperationClear, metrics.CacheCleared)
}

// ClearByPrefix removes every key starting with prefix from both tiers.
func (s *Store) ClearByPrefix(ctx context.Context, prefix string) {
	if prefix == "" {
		return
	}
	s.mu.Lock()
	for key := range s.memory {
		if strings.HasPrefix(key, prefix) {
			delete(s.memory, key)
		}
	}
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.DeletePrefix(ctx, prefix); err != nil {
			s.logger.Warn("durable cache prefix clear failed", slog.String("prefix", prefix), slog.Any("error", err))
			s.metrics.ObserveCache(prefix, metrics.CacheOperationClearPrefix, metrics.CacheError)
			return
		}
	}
	s.metrics.ObserveCache(prefix, metrics.CacheOperationClearPrefix, metrics.CacheCleared)
}

func (s *Store) evict(ctx context.Context, key string) {
	s.mu.Lock()
	delete(s.memory, key)
	s.mu.Unlock()
	s.deleteDurable(ctx, key)
}

func (s *Store) deleteDurable(ctx context.Context, key string) bool {
	if s.durable == nil {
		return true
	}
	if err := s.durable.Delete(ctx, key); err != nil {
		s.logger.Warn("durable cache delete failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// GetJSON decodes the cached value under key into T. Entries that no longer
// decode into T are cleared and reported as misses.
func GetJSON[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var out T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("cached value has unexpected shape", slog.String("key", key), slog.Any("error", err))
		s.Clear(ctx, key)
		var zero T
		return zero, false
	}
	return out, true
}
