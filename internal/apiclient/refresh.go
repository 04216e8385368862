package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/metrics"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         json.RawMessage `json:"user"`
}

// refresh exchanges the stored refresh token for a new access token. Callers
// presenting the same refresh token share one refresh call. Any failure
// clears the session.
func (c *Client) refresh(ctx context.Context) error {
	refreshToken := c.sessions.RefreshToken(ctx)
	if refreshToken == "" {
		c.metrics.ObserveRefresh(metrics.RefreshMissingToken)
		c.logger.Warn("no refresh token; clearing session")
		c.sessions.ClearSessionData(ctx)
		return ErrSessionExpired
	}

	ch := c.refreshes.DoChan(refreshToken, func() (any, error) {
		return nil, c.exchange(context.WithoutCancel(ctx), refreshToken)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) exchange(ctx context.Context, refreshToken string) error {
	resp, _, err := c.send(ctx, http.MethodPost, Request{
		Path: c.refreshPath,
		Body: refreshRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		return c.refreshFailed(ctx, fmt.Errorf("%w: %w", ErrSessionExpired, err))
	}
	if resp.Status < 200 || resp.Status >= 300 {
		msg, fromBody := errorMessage(resp.Status, resp.Body)
		if !fromBody {
			msg = ErrSessionExpired.Error()
		}
		return c.refreshFailed(ctx, &Error{Status: resp.Status, Message: msg, sessionExpired: true})
	}

	var payload refreshResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.AccessToken == "" {
		return c.refreshFailed(ctx, ErrSessionExpired)
	}
	c.sessions.Rotate(ctx, session.Session{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		User:         payload.User,
	})
	c.metrics.ObserveRefresh(metrics.RefreshSuccess)
	c.logger.Debug("access token refreshed")
	return nil
}

func (c *Client) refreshFailed(ctx context.Context, err error) error {
	c.metrics.ObserveRefresh(metrics.RefreshFailure)
	c.logger.Warn("token refresh failed; clearing session", slog.Any("error", err))
	c.sessions.ClearSessionData(ctx)
	if errors.Is(err, ErrSessionExpired) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}
