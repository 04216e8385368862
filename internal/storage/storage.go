package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("storage: backend closed")

// Backend is the durable tier behind the cache and session stores. Values are
// opaque bytes; callers own their encoding. Every method reports failures so
// callers decide whether to swallow them.
type Backend interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A positive ttl lets the backend drop the
	// value on its own; zero keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix. An empty prefix lists all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Open builds the backend selected by cfg and scopes it under
// cfg.Namespace when one is set.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	backend, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WithNamespace(backend, cfg.Namespace), nil
}

func open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "bolt":
		return NewBolt(cfg.Path, cfg.Bucket)
	case "redis":
		return NewRedis(ctx, RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Backend)
	}
}
