// Package app assembles the client stack from a configuration snapshot.
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/logging"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/metrics"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/auth"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/media"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/oauth"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/persona"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/posts"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/scheduling"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/tiers"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/session"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/storage"
)

// Options overrides collaborators that are otherwise derived from config.
type Options struct {
	HTTPClient apiclient.HTTPDoer
	Registry   *prometheus.Registry
	// Storage replaces the configured durable backend.
	Storage storage.Backend
}

// App is the wired client: one cache, one session store, one request engine
// and every resource module sharing them.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Storage  storage.Backend
	Cache    *cache.Store
	Sessions *session.Store
	Engine   *apiclient.Client

	Auth       *auth.Service
	Persona    *persona.Service
	Media      *media.Service
	Posts      *posts.Service
	Scheduling *scheduling.Service
	Tiers      *tiers.Service
	OAuth      *oauth.Service
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	recorder := metrics.NewRecorder(registry)

	backend := opts.Storage
	if backend == nil {
		backend = buildStorage(ctx, logger.With(slog.String("agent", "storage_factory")), cfg.Storage)
	}

	store := cache.New(cache.Options{Durable: backend, Logger: logger, Metrics: recorder})
	sessions := session.New(backend, store, cfg.Session, logger)

	engine, err := apiclient.New(apiclient.Options{
		BaseURL:           cfg.Client.BaseURL,
		Timeout:           cfg.Client.Timeout(),
		RefreshPath:       cfg.Client.RefreshPath,
		CorrelationHeader: cfg.Client.CorrelationHeader,
		UserAgent:         cfg.Client.UserAgent,
		HTTPClient:        opts.HTTPClient,
		Sessions:          sessions,
		Logger:            logger,
		Metrics:           recorder,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    recorder,
		Storage:    backend,
		Cache:      store,
		Sessions:   sessions,
		Engine:     engine,
		Auth:       auth.New(engine, store, sessions, logger),
		Persona:    persona.New(engine, store),
		Media:      media.New(engine, store),
		Posts:      posts.New(engine, store),
		Scheduling: scheduling.New(engine, store),
		Tiers:      tiers.New(engine, store),
		OAuth:      oauth.New(engine, store, sessions),
	}, nil
}

// Close releases the durable backend.
func (a *App) Close() error {
	if a == nil || a.Storage == nil {
		return errors.New("app: not initialized")
	}
	return a.Storage.Close()
}

// buildStorage opens the configured durable tier and falls back to process
// memory when it is unavailable, so the client keeps working without
// persistence.
func buildStorage(ctx context.Context, logger *slog.Logger, cfg config.StorageConfig) storage.Backend {
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.Error("durable storage initialization failed", slog.String("backend", cfg.Backend), slog.Any("error", err))
		logger.Info("falling back to memory storage; sessions will not persist")
		return storage.NewMemory()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "redis":
		logger.Debug("using redis storage", slog.String("address", cfg.Redis.Address))
	case "memory":
		logger.Debug("using memory storage")
	default:
		logger.Debug("using bolt storage", slog.String("path", cfg.Path))
	}
	return backend
}
