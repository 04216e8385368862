// Package auth signs users in and out and exposes the current profile.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
)

const (
	cachePrefix = "auth:v1:"
	meKey       = cachePrefix + "me"
	meTTL       = 5 * time.Minute
)

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Tier     string `json:"tier,omitempty"`
}

// TokenResponse is the credential payload returned by login, signup and the
// OAuth callback.
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Service signs users in and out and reads their profile.
type Service struct {
	engine   resources.Engine
	cache    *cache.Store
	sessions *session.Store
	logger   *slog.Logger
}

// New returns an auth Service. A nil logger discards output.
func New(engine resources.Engine, c *cache.Store, sessions *session.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{engine: engine, cache: c, sessions: sessions, logger: logger.With(slog.String("component", "auth"))}
}

func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	tokens, err := resources.Call[TokenResponse](ctx, s.engine, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return User{}, err
	}
	return s.establish(ctx, tokens)
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (User, error) {
	tokens, err := resources.Call[TokenResponse](ctx, s.engine, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/auth/signup",
		Body:   in,
	})
	if err != nil {
		return User{}, err
	}
	return s.establish(ctx, tokens)
}

// Establish stores a freshly issued session and drops cached profile data
// from any previous one.
func (s *Service) Establish(ctx context.Context, tokens TokenResponse) (User, error) {
	return s.establish(ctx, tokens)
}

func (s *Service) establish(ctx context.Context, tokens TokenResponse) (User, error) {
	if tokens.AccessToken == "" {
		return User{}, errors.New("auth: server returned no access token")
	}
	s.sessions.Save(ctx, session.Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         tokens.User,
	})
	s.cache.ClearByPrefix(ctx, cachePrefix)

	var user User
	if len(tokens.User) > 0 {
		if err := json.Unmarshal(tokens.User, &user); err != nil {
			s.logger.Warn("unexpected user payload", slog.Any("error", err))
		}
	}
	return user, nil
}

// Me returns the signed-in profile.
func (s *Service) Me(ctx context.Context, opts resources.ReadOptions) (User, error) {
	return resources.Read(ctx, s.cache, meKey, meTTL, opts, func(ctx context.Context) (User, error) {
		return resources.Call[User](ctx, s.engine, apiclient.Request{Path: "/auth/me", WithAuth: true})
	})
}

// CachedUser returns the profile snapshot stored with the session without a
// network call.
func (s *Service) CachedUser(ctx context.Context) (User, bool) {
	raw := s.sessions.UserInfo(ctx)
	if raw == nil {
		return User{}, false
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, false
	}
	return user, true
}

// Logout tells the server to revoke the session and always clears local
// state, even when the server call fails.
func (s *Service) Logout(ctx context.Context) error {
	_, err := s.engine.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: "/auth/logout", WithAuth: true})
	s.sessions.ClearSessionData(ctx)
	if err != nil && !errors.Is(err, apiclient.ErrSessionExpired) {
		s.logger.Warn("server logout failed; local session cleared", slog.Any("error", err))
		return err
	}
	return nil
}
