package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
)

type backendFactory func(t *testing.T) Backend

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(t *testing.T) Backend {
			return NewMemory()
		},
		"bolt": func(t *testing.T) Backend {
			b, err := NewBolt(filepath.Join(t.TempDir(), "store.db"), "test")
			require.NoError(t, err)
			return b
		},
		"redis": func(t *testing.T) Backend {
			srv := miniredis.RunT(t)
			r, err := NewRedis(context.Background(), RedisConfig{Address: srv.Addr()})
			require.NoError(t, err)
			return r
		},
	}
}

func TestBackendRoundTrip(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := factory(t)
			t.Cleanup(func() { _ = b.Close() })

			_, ok, err := b.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, b.Set(ctx, "persona:v1:page123", []byte(`{"tone":"warm"}`), 0))
			got, ok, err := b.Get(ctx, "persona:v1:page123")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"tone":"warm"}`, string(got))

			require.NoError(t, b.Delete(ctx, "persona:v1:page123"))
			_, ok, err = b.Get(ctx, "persona:v1:page123")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, b.Delete(ctx, "never-set"))
		})
	}
}

func TestBackendPrefixOperations(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := factory(t)
			t.Cleanup(func() { _ = b.Close() })

			for _, key := range []string{
				"media_list:v1:facebook:100:0",
				"media_list:v1:instagram:20:0",
				"media_lister:v1:other",
				"posts_list:v1:page:all:20",
			} {
				require.NoError(t, b.Set(ctx, key, []byte("x"), 0))
			}

			keys, err := b.Keys(ctx, "media_list:v1:")
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"media_list:v1:facebook:100:0", "media_list:v1:instagram:20:0"}, keys)

			require.NoError(t, b.DeletePrefix(ctx, "media_list:v1:"))
			keys, err = b.Keys(ctx, "")
			require.NoError(t, err)
			require.ElementsMatch(t, []string{"media_lister:v1:other", "posts_list:v1:page:all:20"}, keys)
		})
	}
}

func TestRedisHonorsTTL(t *testing.T) {
	srv := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "usage:v1:current", []byte("1"), time.Minute))
	require.Greater(t, srv.TTL("usage:v1:current"), time.Duration(0))

	srv.FastForward(2 * time.Minute)
	_, ok, err := r.Get(ctx, "usage:v1:current")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisPrefixIsLiteral(t *testing.T) {
	srv := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), RedisConfig{Address: srv.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "a*b:1", []byte("x"), 0))
	require.NoError(t, r.Set(ctx, "axb:1", []byte("x"), 0))

	keys, err := r.Keys(ctx, "a*b:")
	require.NoError(t, err)
	require.Equal(t, []string{"a*b:1"}, keys)
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), RedisConfig{})
	require.ErrorContains(t, err, "address required")
}

func TestMemoryExpiresLazily(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Second))
	now = now.Add(999 * time.Millisecond)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(time.Millisecond)
	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClosedBackendsReportErrors(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, _, err := m.Get(context.Background(), "k")
	require.ErrorIs(t, err, ErrClosed)

	b, err := NewBolt(filepath.Join(t.TempDir(), "closed.db"), "")
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.ErrorIs(t, b.Set(context.Background(), "k", []byte("v"), 0), ErrClosed)
}

func TestBoltPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	first, err := NewBolt(path, "")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "postsiva:v1:access_token", []byte("tok"), 0))
	require.NoError(t, first.Close())

	second, err := NewBolt(path, "")
	require.NoError(t, err)
	got, ok, err := second.Get(ctx, "postsiva:v1:access_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", string(got))
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, &Memory{}, b)

	b, err = Open(ctx, config.StorageConfig{Backend: "bolt", Path: filepath.Join(t.TempDir(), "open.db")})
	require.NoError(t, err)
	require.IsType(t, &Bolt{}, b)

	srv := miniredis.RunT(t)
	b, err = Open(ctx, config.StorageConfig{Backend: "redis", Redis: config.StorageRedisConfig{Address: srv.Addr()}})
	require.NoError(t, err)
	require.IsType(t, &Redis{}, b)
	require.NoError(t, b.Close())

	_, err = Open(ctx, config.StorageConfig{Backend: "sqlite"})
	require.ErrorContains(t, err, "unsupported backend")
}

func TestNamespacesIsolateInstallationsOnSharedRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	open := func(namespace string) Backend {
		b, err := Open(ctx, config.StorageConfig{
			Backend:   "redis",
			Namespace: namespace,
			Redis:     config.StorageRedisConfig{Address: srv.Addr()},
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = b.Close() })
		return b
	}
	ana, ben := open("ana"), open("ben")
	require.IsType(t, &Prefixed{}, ana)

	require.NoError(t, ana.Set(ctx, "postsiva:v1:access_token", []byte("tok-ana"), 0))
	require.NoError(t, ana.Set(ctx, "persona:v1:page1", []byte("p"), 0))
	require.NoError(t, ben.Set(ctx, "persona:v1:page1", []byte("q"), 0))

	_, ok, err := ben.Get(ctx, "postsiva:v1:access_token")
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, srv.Exists("ana:postsiva:v1:access_token"))

	keys, err := ana.Keys(ctx, "persona:v1:")
	require.NoError(t, err)
	require.Equal(t, []string{"persona:v1:page1"}, keys)

	require.NoError(t, ana.DeletePrefix(ctx, "persona:v1:"))
	got, ok, err := ben.Get(ctx, "persona:v1:page1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "q", string(got))
}

func TestWithNamespaceEmptyIsPassthrough(t *testing.T) {
	m := NewMemory()
	require.Same(t, m, WithNamespace(m, " "))

	scoped := WithNamespace(m, "ana")
	require.Equal(t, "ana:", scoped.(*Prefixed).Namespace())
}
