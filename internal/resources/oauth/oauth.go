// Package oauth connects Facebook pages to the account.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/shape"
)

const (
	pagesPrefix = "facebook_pages:v1:"
	pagesKey    = pagesPrefix + "all"
	pagesTTL    = 5 * time.Minute

	authPrefix = "auth:v1:"
)

type Page struct {
	ID          string `json:"page_id"`
	Name        string `json:"page_name"`
	Category    string `json:"category,omitempty"`
	PictureURL  string `json:"picture_url,omitempty"`
	Connected   bool   `json:"is_connected"`
	ConnectedAt string `json:"connected_at,omitempty"`
}

type pagesPayload struct {
	Pages shape.Variant[Page] `json:"pages"`
}

type ConnectURL struct {
	URL   string `json:"auth_url"`
	State string `json:"state,omitempty"`
}

type callbackPayload struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	User         json.RawMessage     `json:"user,omitempty"`
	Pages        shape.Variant[Page] `json:"pages"`
}

// CallbackResult carries the pages granted during the OAuth exchange.
type CallbackResult struct {
	Pages []Page `json:"pages"`
}

// Service drives the Facebook connection flow and lists connected pages.
type Service struct {
	engine   resources.Engine
	cache    *cache.Store
	sessions *session.Store
}

// New returns an oauth Service.
func New(engine resources.Engine, c *cache.Store, sessions *session.Store) *Service {
	return &Service{engine: engine, cache: c, sessions: sessions}
}

// ConnectURL returns a fresh authorization URL. It carries a one-time state
// value and is never cached.
func (s *Service) ConnectURL(ctx context.Context) (ConnectURL, error) {
	out, err := resources.Call[ConnectURL](ctx, s.engine, apiclient.Request{Path: "/facebook/connect-url", WithAuth: true})
	if err != nil {
		return ConnectURL{}, err
	}
	if out.URL == "" {
		return ConnectURL{}, errors.New("oauth: server returned no authorization url")
	}
	return out, nil
}

// Callback completes the OAuth exchange. When the server issues credentials
// they replace the stored session.
func (s *Service) Callback(ctx context.Context, code, state string) (CallbackResult, error) {
	raw, err := resources.Mutate[callbackPayload](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/facebook/callback",
		Body:     map[string]string{"code": code, "state": state},
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.ClearByPrefix(ctx, pagesPrefix) })
	if err != nil {
		return CallbackResult{}, err
	}
	if raw.AccessToken != "" {
		refresh := raw.RefreshToken
		if refresh == "" {
			refresh = s.sessions.RefreshToken(ctx)
		}
		s.sessions.Save(ctx, session.Session{AccessToken: raw.AccessToken, RefreshToken: refresh, User: raw.User})
		s.cache.ClearByPrefix(ctx, authPrefix)
	}
	return CallbackResult{Pages: raw.Pages.Slice()}, nil
}

func (s *Service) Pages(ctx context.Context, opts resources.ReadOptions) ([]Page, error) {
	return resources.Read(ctx, s.cache, pagesKey, pagesTTL, opts, func(ctx context.Context) ([]Page, error) {
		raw, err := resources.Call[pagesPayload](ctx, s.engine, apiclient.Request{Path: "/facebook/pages", WithAuth: true})
		if err != nil {
			return nil, err
		}
		return raw.Pages.Slice(), nil
	})
}

func (s *Service) Disconnect(ctx context.Context, pageID string) error {
	if _, err := s.engine.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/facebook/pages/" + url.PathEscape(pageID),
		WithAuth: true,
	}); err != nil {
		return err
	}
	s.cache.ClearByPrefix(ctx, pagesPrefix)
	return nil
}
