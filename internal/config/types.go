package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds every option the client consumes once defaults, files, and
// environment overrides have been merged.
type Config struct {
	Client  ClientConfig  `koanf:"client"`
	Session SessionConfig `koanf:"session"`
	Storage StorageConfig `koanf:"storage"`
	Logging LoggingConfig `koanf:"logging"`
	Debug   DebugConfig   `koanf:"debug"`
	Watch   WatchConfig   `koanf:"watch"`

	// Source records the file the snapshot was read from, if any.
	Source string `koanf:"-"`
}

// ClientConfig describes how the request engine reaches the backend API.
type ClientConfig struct {
	BaseURL           string `koanf:"baseURL"`
	TimeoutSeconds    int    `koanf:"timeoutSeconds"`
	RefreshPath       string `koanf:"refreshPath"`
	CorrelationHeader string `koanf:"correlationHeader"`
	UserAgent         string `koanf:"userAgent"`
}

// Timeout converts the configured wall-clock budget into a duration.
func (c ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SessionConfig names the durable keys holding the session. Renaming a key
// logs out every existing session, so these only change with a migration.
type SessionConfig struct {
	AccessTokenKey  string `koanf:"accessTokenKey"`
	RefreshTokenKey string `koanf:"refreshTokenKey"`
	UserInfoKey     string `koanf:"userInfoKey"`
}

// StorageConfig selects the durable tier backing the cache and session.
type StorageConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	Bucket  string `koanf:"bucket"`
	// Namespace prefixes every durable key. Installations sharing one redis
	// server need distinct namespaces to keep their sessions apart.
	Namespace string             `koanf:"namespace"`
	Redis     StorageRedisConfig `koanf:"redis"`
}

type StorageRedisConfig struct {
	Address  string                `koanf:"address"`
	Username string                `koanf:"username"`
	Password string                `koanf:"password"`
	DB       int                   `koanf:"db"`
	TLS      StorageRedisTLSConfig `koanf:"tls"`
}

type StorageRedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DebugConfig controls the diagnostics listener started by long-running commands.
type DebugConfig struct {
	Listen ListenConfig `koanf:"listen"`
}

// ListenConfig instructs the HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// WatchConfig drives the polling loop of the watch command.
type WatchConfig struct {
	IntervalSeconds int    `koanf:"intervalSeconds"`
	PageID          string `koanf:"pageID"`
}

// Interval converts the configured poll period into a duration.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// Validate enforces invariants that keep the client predictable before any
// request is issued.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	base := strings.TrimSpace(c.Client.BaseURL)
	if base == "" {
		return errors.New("config: client.baseURL required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("config: client.baseURL invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("config: client.baseURL scheme unsupported: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("config: client.baseURL missing host: %q", base)
	}
	if c.Client.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: client.timeoutSeconds invalid: %d", c.Client.TimeoutSeconds)
	}
	if !strings.HasPrefix(c.Client.RefreshPath, "/") {
		return fmt.Errorf("config: client.refreshPath must start with /: %q", c.Client.RefreshPath)
	}
	keys := map[string]string{
		"session.accessTokenKey":  c.Session.AccessTokenKey,
		"session.refreshTokenKey": c.Session.RefreshTokenKey,
		"session.userInfoKey":     c.Session.UserInfoKey,
	}
	seen := make(map[string]string, len(keys))
	for name, value := range keys {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return fmt.Errorf("config: %s required", name)
		}
		if other, ok := seen[trimmed]; ok {
			return fmt.Errorf("config: %s duplicates %s", name, other)
		}
		seen[trimmed] = name
	}
	backend := strings.TrimSpace(strings.ToLower(c.Storage.Backend))
	switch backend {
	case "", "bolt":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("config: storage.path required for bolt backend")
		}
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Storage.Redis.Address) == "" {
			return errors.New("config: storage.redis.address required for redis backend")
		}
		if strings.TrimSpace(c.Storage.Namespace) == "" {
			return errors.New("config: storage.namespace required for redis backend")
		}
	default:
		return fmt.Errorf("config: storage.backend unsupported: %s", c.Storage.Backend)
	}
	if c.Debug.Listen.Port < 0 || c.Debug.Listen.Port > 65535 {
		return fmt.Errorf("config: debug.listen.port invalid: %d", c.Debug.Listen.Port)
	}
	if c.Watch.IntervalSeconds <= 0 {
		return fmt.Errorf("config: watch.intervalSeconds invalid: %d", c.Watch.IntervalSeconds)
	}
	return nil
}

// DefaultConfig returns the baseline values used for local development.
func DefaultConfig() Config {
	return Config{
		Client: ClientConfig{
			BaseURL:           "http://localhost:8000",
			TimeoutSeconds:    180,
			RefreshPath:       "/auth/refresh",
			CorrelationHeader: "X-Request-ID",
			UserAgent:         "postsiva-cli",
		},
		Session: SessionConfig{
			AccessTokenKey:  "postsiva:v1:access_token",
			RefreshTokenKey: "postsiva:v1:refresh_token",
			UserInfoKey:     "postsiva:v1:user_info",
		},
		Storage: StorageConfig{
			Backend: "bolt",
			Path:    "./postsiva.db",
			Bucket:  "postsiva",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Debug: DebugConfig{
			Listen: ListenConfig{
				Address: "127.0.0.1",
				Port:    9464,
			},
		},
		Watch: WatchConfig{
			IntervalSeconds: 60,
		},
	}
}
