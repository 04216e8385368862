package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the client configuration while respecting env > file > default precedence.
type Loader struct {
	envPrefix string
	file      string
}

// NewLoader prepares a config hydrator. An empty path skips the file layer.
func NewLoader(envPrefix string, path string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		file:      strings.TrimSpace(path),
	}
}

// Path reports the configuration file consulted by Load.
func (l *Loader) Path() string { return l.file }

// canonicalKeys restores camelCase koanf paths from lowercased env names.
var canonicalKeys = map[string]string{
	"client.baseurl":           "client.baseURL",
	"client.timeoutseconds":    "client.timeoutSeconds",
	"client.refreshpath":       "client.refreshPath",
	"client.correlationheader": "client.correlationHeader",
	"client.useragent":         "client.userAgent",
	"session.accesstokenkey":   "session.accessTokenKey",
	"session.refreshtokenkey":  "session.refreshTokenKey",
	"session.userinfokey":      "session.userInfoKey",
	"storage.redis.tls.cafile": "storage.redis.tls.caFile",
	"watch.intervalseconds":    "watch.intervalSeconds",
	"watch.pageid":             "watch.pageID",
}

// Load assembles the effective snapshot using the documented precedence rules.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if l.file != "" {
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		info, err := os.Stat(l.file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", l.file)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", l.file, err)
		}
		if info.IsDir() {
			return Config{}, fmt.Errorf("config: %s: expected a file, found directory", l.file)
		}
		parser, err := parserFor(l.file)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(l.file), parser); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", l.file, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// Double underscores signal a nested path (CLIENT__BASEURL -> client.baseURL).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ReplaceAll(key, "__", ".")
			lower := strings.ToLower(key)
			if mapped, ok := canonicalKeys[lower]; ok {
				return mapped
			}
			return strings.ReplaceAll(lower, "_", "")
		}
		if err := k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Client.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Client.BaseURL), "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.Source = l.file
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return kjson.Parser(), nil
	case ".toml", ".tml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("config: unsupported file extension %s", ext)
	}
}

// structToMap converts DefaultConfig into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"client": map[string]any{
			"baseURL":           cfg.Client.BaseURL,
			"timeoutSeconds":    cfg.Client.TimeoutSeconds,
			"refreshPath":       cfg.Client.RefreshPath,
			"correlationHeader": cfg.Client.CorrelationHeader,
			"userAgent":         cfg.Client.UserAgent,
		},
		"session": map[string]any{
			"accessTokenKey":  cfg.Session.AccessTokenKey,
			"refreshTokenKey": cfg.Session.RefreshTokenKey,
			"userInfoKey":     cfg.Session.UserInfoKey,
		},
		"storage": map[string]any{
			"backend":   cfg.Storage.Backend,
			"path":      cfg.Storage.Path,
			"bucket":    cfg.Storage.Bucket,
			"namespace": cfg.Storage.Namespace,
			"redis": map[string]any{
				"address":  cfg.Storage.Redis.Address,
				"username": cfg.Storage.Redis.Username,
				"password": cfg.Storage.Redis.Password,
				"db":       cfg.Storage.Redis.DB,
				"tls": map[string]any{
					"enabled": cfg.Storage.Redis.TLS.Enabled,
					"caFile":  cfg.Storage.Redis.TLS.CAFile,
				},
			},
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"debug": map[string]any{
			"listen": map[string]any{
				"address": cfg.Debug.Listen.Address,
				"port":    cfg.Debug.Listen.Port,
			},
		},
		"watch": map[string]any{
			"intervalSeconds": cfg.Watch.IntervalSeconds,
			"pageID":          cfg.Watch.PageID,
		},
	}
}
