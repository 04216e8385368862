package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/metrics"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Sessions is the slice of the session store the engine depends on.
type Sessions interface {
	AccessToken(ctx context.Context) string
	RefreshToken(ctx context.Context) string
	Rotate(ctx context.Context, sess session.Session)
	ClearSessionData(ctx context.Context)
}

// Options configures a Client. BaseURL and Sessions are required.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RefreshPath       string
	CorrelationHeader string
	UserAgent         string

	HTTPClient HTTPDoer
	Sessions   Sessions
	Logger     *slog.Logger
	Metrics    *metrics.Recorder
	// NewID produces correlation identifiers. Defaults to random UUIDs.
	NewID func() string
}

const (
	defaultTimeout     = 180 * time.Second
	defaultRefreshPath = "/auth/refresh"
	maxBodyBytes       = 32 << 20
)

// Client is the single entry point resource modules use to reach the API.
// Concurrent identical reads share one network call, 401 responses trigger
// one refresh and one retry, and failures are normalized into errors.
type Client struct {
	baseURL           string
	timeout           time.Duration
	refreshPath       string
	correlationHeader string
	userAgent         string

	http     HTTPDoer
	sessions Sessions
	logger   *slog.Logger
	metrics  *metrics.Recorder
	newID    func() string

	// reads holds in-flight GET calls keyed by fingerprint.
	reads singleflight.Group
	// refreshes holds in-flight refresh calls keyed by refresh token.
	refreshes singleflight.Group
}

// New builds a Client from opts, filling defaults for unset fields.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("apiclient: base url required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("apiclient: session store required")
	}
	c := &Client{
		baseURL:           base,
		timeout:           opts.Timeout,
		refreshPath:       opts.RefreshPath,
		correlationHeader: opts.CorrelationHeader,
		userAgent:         opts.UserAgent,
		http:              opts.HTTPClient,
		sessions:          opts.Sessions,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		newID:             opts.NewID,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.refreshPath == "" {
		c.refreshPath = defaultRefreshPath
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.logger = c.logger.With(slog.String("component", "apiclient"))
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c, nil
}

// Do executes req. GET calls with the same fingerprint that overlap in time
// share one underlying call and observe the same outcome. The shared call is
// detached from any single caller's cancellation; a caller whose ctx ends
// stops waiting and gets ctx.Err() while the others keep waiting.
// Mutations run on ctx and are never shared.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if method != http.MethodGet {
		return c.execute(ctx, method, req)
	}

	fingerprint, err := c.fingerprint(ctx, method, req)
	if err != nil {
		return Response{}, err
	}

	led := false
	ch := c.reads.DoChan(fingerprint, func() (any, error) {
		led = true
		return c.execute(context.WithoutCancel(ctx), method, req)
	})

	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if led {
			c.metrics.ObserveDedup(metrics.DedupLeader)
		} else {
			c.metrics.ObserveDedup(metrics.DedupShared)
			c.logger.Debug("joined in-flight request", slog.String("path", req.Path))
		}
		resp, _ := res.Val.(Response)
		return resp.clone(), res.Err
	}
}

// fingerprint identifies a read for deduplication: method, path with query,
// serialized body, and the bearer token when auth is requested.
func (c *Client) fingerprint(ctx context.Context, method string, req Request) (string, error) {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	if len(req.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(req.Query.Encode())
	}
	b.WriteByte('\n')
	if req.Body != nil {
		body, err := json.Marshal(req.Body)
		if err != nil {
			return "", fmt.Errorf("apiclient: encode body: %w", err)
		}
		b.Write(body)
	}
	b.WriteByte('\n')
	if req.WithAuth {
		b.WriteString("auth:")
		b.WriteString(c.sessions.AccessToken(ctx))
	} else {
		b.WriteString("anon")
	}
	return b.String(), nil
}

func (c *Client) execute(ctx context.Context, method string, req Request) (Response, error) {
	start := time.Now()
	resp, err := c.run(ctx, method, req)
	status := resp.Status
	var apiErr *Error
	if errors.As(err, &apiErr) {
		status = apiErr.Status
	}
	c.metrics.ObserveRequest(method, outcomeOf(err), status, time.Since(start))
	return resp, err
}

// phase tracks the refresh-and-retry state of one call. A call moves from
// phaseInitial to phaseRetried at most once, so at most one refresh happens.
type phase int

const (
	phaseInitial phase = iota
	phaseRetried
)

func (c *Client) run(ctx context.Context, method string, req Request) (Response, error) {
	state := phaseInitial
	for {
		resp, usedToken, err := c.send(ctx, method, req)
		if err != nil {
			return Response{}, err
		}
		if resp.Status != http.StatusUnauthorized || !req.WithAuth || c.isRefreshPath(req.Path) {
			return finish(resp)
		}

		switch state {
		case phaseInitial:
			// Another call may already have rotated the token this one used.
			if current := c.sessions.AccessToken(ctx); current == "" || current == usedToken {
				if err := c.refresh(ctx); err != nil {
					return Response{}, err
				}
			}
			state = phaseRetried
		case phaseRetried:
			c.logger.Warn("refreshed credentials rejected", slog.String("path", req.Path))
			c.sessions.ClearSessionData(ctx)
			return Response{}, ErrSessionExpired
		}
	}
}

func finish(resp Response) (Response, error) {
	switch {
	case resp.Status == http.StatusNoContent:
		resp.NoContent = true
		resp.Body = nil
		return resp, nil
	case resp.Status >= 200 && resp.Status < 300:
		return resp, nil
	default:
		msg, _ := errorMessage(resp.Status, resp.Body)
		return Response{}, &Error{Status: resp.Status, Message: msg}
	}
}

func (c *Client) isRefreshPath(path string) bool {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	return path == c.refreshPath
}

// send performs one HTTP exchange inside its own timeout window and returns
// the access token it attached.
func (c *Client) send(ctx context.Context, method string, req Request) (Response, string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		body        io.Reader
		contentType = "application/json"
	)
	switch {
	case req.Form != nil:
		buf, ct, err := req.Form.encode()
		if err != nil {
			return Response{}, "", fmt.Errorf("apiclient: encode form: %w", err)
		}
		body, contentType = buf, ct
	case req.Body != nil:
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, "", fmt.Errorf("apiclient: encode body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(sendCtx, method, c.resolve(req), body)
	if err != nil {
		return Response{}, "", fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	requestID := c.newID()
	if c.correlationHeader != "" {
		httpReq.Header.Set(c.correlationHeader, requestID)
	}
	var token string
	if req.WithAuth {
		if token = c.sessions.AccessToken(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("dispatching request",
		slog.String("method", method),
		slog.String("path", req.Path),
		slog.String("request_id", requestID),
	)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, token, c.transportError(ctx, sendCtx, method, req.Path, err)
	}
	defer httpResp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, token, c.transportError(ctx, sendCtx, method, req.Path, err)
	}
	return Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   payload,
	}, token, nil
}

// transportError maps the engine's own deadline to ErrTimeout and keeps the
// caller's cancellation recognizable.
func (c *Client) transportError(parent, sendCtx context.Context, method, path string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
		c.logger.Warn("request timed out", slog.String("method", method), slog.String("path", path))
		return ErrTimeout
	}
	return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
}

func (c *Client) resolve(req Request) string {
	target := req.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}
	return target
}

func outcomeOf(err error) metrics.RequestOutcome {
	var apiErr *Error
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrSessionExpired):
		return metrics.OutcomeSessionExpired
	case errors.As(err, &apiErr):
		return metrics.OutcomeHTTPError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	default:
		return metrics.OutcomeNetworkError
	}
}
