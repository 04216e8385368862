package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/storage"
)

// UserScopedPrefixes lists every cache namespace holding data that belongs to
// the signed-in user. ClearSessionData purges all of them so nothing cached
// for one user is visible to the next one on the same device.
var UserScopedPrefixes = []string{
	"auth:v1:",
	"persona:v1:",
	"ai_agent_persona:v1:",
	"media_list:v1:",
	"posts_list:v1:",
	"post_detail:v1:",
	"scheduled_posts:v1:",
	"facebook_pages:v1:",
	"usage:v1:",
}

// Session is the credential set minted by login, signup, OAuth callback, or
// refresh.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         json.RawMessage
}

// Store reads and writes the session under fixed keys in the durable backend.
// Values are read through on every call so separate processes sharing the
// backend observe each other's logins. Backend failures are logged and
// treated as absent values.
type Store struct {
	backend storage.Backend
	cache   *cache.Store
	keys    config.SessionConfig
	logger  *slog.Logger

	mu sync.RWMutex
}

// New builds a Store. A nil backend keeps the session in process memory and a
// nil cache skips the cache purge on ClearSessionData.
func New(backend storage.Backend, c *cache.Store, keys config.SessionConfig, logger *slog.Logger) *Store {
	if backend == nil {
		backend = storage.NewMemory()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{
		backend: backend,
		cache:   c,
		keys:    keys,
		logger:  logger.With(slog.String("component", "session")),
	}
}

func (s *Store) AccessToken(ctx context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.read(ctx, s.keys.AccessTokenKey))
}

// SetAccessToken stores token; an empty token deletes the key.
func (s *Store) SetAccessToken(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(ctx, s.keys.AccessTokenKey, []byte(token))
}

func (s *Store) RefreshToken(ctx context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.read(ctx, s.keys.RefreshTokenKey))
}

// SetRefreshToken stores token; an empty token deletes the key.
func (s *Store) SetRefreshToken(ctx context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(ctx, s.keys.RefreshTokenKey, []byte(token))
}

// UserInfo returns the stored profile snapshot, or nil when absent.
func (s *Store) UserInfo(ctx context.Context) json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw := s.read(ctx, s.keys.UserInfoKey)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return json.RawMessage(raw)
}

// SetUserInfo stores the profile snapshot; nil or JSON null deletes the key.
func (s *Store) SetUserInfo(ctx context.Context, user json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(ctx, s.keys.UserInfoKey, normalizeUser(user))
}

// Save replaces the whole session, as after login or signup. When it
// replaces a different live access token, the cached responses of the
// previous session are purged: cache keys carry no user, so a second login
// must not inherit the first user's data.
func (s *Store) Save(ctx context.Context, sess Session) {
	s.mu.Lock()
	previous := string(s.read(ctx, s.keys.AccessTokenKey))
	s.write(ctx, s.keys.AccessTokenKey, []byte(sess.AccessToken))
	s.write(ctx, s.keys.RefreshTokenKey, []byte(sess.RefreshToken))
	s.write(ctx, s.keys.UserInfoKey, normalizeUser(sess.User))
	s.mu.Unlock()

	if previous != "" && previous != sess.AccessToken {
		s.purgeUserCaches(ctx)
		s.logger.Info("previous session replaced; user caches purged")
	}
}

// Rotate applies the result of a token refresh. The access token is always
// replaced; the refresh token and user info only when the server sent them.
func (s *Store) Rotate(ctx context.Context, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(ctx, s.keys.AccessTokenKey, []byte(sess.AccessToken))
	if sess.RefreshToken != "" {
		s.write(ctx, s.keys.RefreshTokenKey, []byte(sess.RefreshToken))
	}
	if user := normalizeUser(sess.User); user != nil {
		s.write(ctx, s.keys.UserInfoKey, user)
	}
}

// ClearSessionData deletes all three session values together and purges every
// user-scoped cache namespace.
func (s *Store) ClearSessionData(ctx context.Context) {
	s.mu.Lock()
	s.write(ctx, s.keys.AccessTokenKey, nil)
	s.write(ctx, s.keys.RefreshTokenKey, nil)
	s.write(ctx, s.keys.UserInfoKey, nil)
	s.mu.Unlock()

	s.purgeUserCaches(ctx)
	s.logger.Info("session cleared")
}

func (s *Store) purgeUserCaches(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, prefix := range UserScopedPrefixes {
		s.cache.ClearByPrefix(ctx, prefix)
	}
}

func (s *Store) read(ctx context.Context, key string) []byte {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("session read failed", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}
	return value
}

func (s *Store) write(ctx context.Context, key string, value []byte) {
	var err error
	if len(value) == 0 {
		err = s.backend.Delete(ctx, key)
	} else {
		err = s.backend.Set(ctx, key, value, 0)
	}
	if err != nil {
		s.logger.Warn("session write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func normalizeUser(user json.RawMessage) []byte {
	if len(user) == 0 || string(user) == "null" {
		return nil
	}
	return user
}
