package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoader(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr string
		assert  func(t *testing.T, cfg Config)
	}{
		{
			name: "returns defaults when no overrides",
			setup: func(t *testing.T) string {
				return ""
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "http://localhost:8000", cfg.Client.BaseURL)
				require.Equal(t, 180*time.Second, cfg.Client.Timeout())
				require.Equal(t, "/auth/refresh", cfg.Client.RefreshPath)
				require.Equal(t, "postsiva:v1:access_token", cfg.Session.AccessTokenKey)
				require.Equal(t, "bolt", cfg.Storage.Backend)
				require.Empty(t, cfg.Source)
			},
		},
		{
			name: "merges yaml overrides",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.yaml")
				contents := "client:\n  baseURL: https://api.postsiva.test/\n  timeoutSeconds: 30\nstorage:\n  backend: memory\n"
				require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
				return path
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "https://api.postsiva.test", cfg.Client.BaseURL, "trailing slash trimmed")
				require.Equal(t, 30, cfg.Client.TimeoutSeconds)
				require.Equal(t, "memory", cfg.Storage.Backend)
			},
		},
		{
			name: "merges json overrides",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.json")
				require.NoError(t, os.WriteFile(path, []byte(`{"watch":{"pageID":"page123"}}`), 0o600))
				return path
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "page123", cfg.Watch.PageID)
			},
		},
		{
			name: "merges toml overrides",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.toml")
				require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o600))
				return path
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "prefers env overrides",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.yaml")
				require.NoError(t, os.WriteFile(path, []byte("client:\n  baseURL: https://file.example\n"), 0o600))
				t.Setenv("POSTSIVA_CLIENT__BASEURL", "https://env.example")
				t.Setenv("POSTSIVA_CLIENT__TIMEOUTSECONDS", "45")
				t.Setenv("POSTSIVA_STORAGE__REDIS__ADDRESS", "127.0.0.1:6379")
				t.Setenv("POSTSIVA_STORAGE__BACKEND", "redis")
				t.Setenv("POSTSIVA_STORAGE__NAMESPACE", "ana-laptop")
				return path
			},
			assert: func(t *testing.T, cfg Config) {
				require.Equal(t, "https://env.example", cfg.Client.BaseURL)
				require.Equal(t, 45, cfg.Client.TimeoutSeconds)
				require.Equal(t, "redis", cfg.Storage.Backend)
				require.Equal(t, "127.0.0.1:6379", cfg.Storage.Redis.Address)
				require.Equal(t, "ana-laptop", cfg.Storage.Namespace)
			},
		},
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent.yaml")
			},
			wantErr: "not found",
		},
		{
			name: "directory instead of file",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: "found directory",
		},
		{
			name: "unsupported extension",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.ini")
				require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o600))
				return path
			},
			wantErr: "unsupported file extension",
		},
		{
			name: "validation failure surfaces",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "postsiva.yaml")
				require.NoError(t, os.WriteFile(path, []byte("client:\n  baseURL: ftp://example.com\n"), 0o600))
				return path
			},
			wantErr: "scheme unsupported",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := tc.setup(t)
			cfg, err := NewLoader("POSTSIVA", path).Load(context.Background())
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			if path != "" {
				require.Equal(t, path, cfg.Source)
			}
			tc.assert(t, cfg)
		})
	}
}

func TestLoaderHonorsCancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postsiva.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader("", path).Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
