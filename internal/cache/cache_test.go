package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/metrics"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/storage"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

type persona struct {
	Tone   string   `json:"tone"`
	Topics []string `json:"topics"`
}

func TestStoreTTLBoundary(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable := storage.NewMemory()
	s := New(Options{Durable: durable, Now: clk.Now})

	s.Set(ctx, "usage:v1:current", map[string]int{"credits": 5}, time.Minute)

	clk.Advance(time.Minute - time.Nanosecond)
	raw, ok := s.Get(ctx, "usage:v1:current")
	require.True(t, ok)
	require.JSONEq(t, `{"credits":5}`, string(raw))

	clk.Advance(time.Nanosecond)
	_, ok = s.Get(ctx, "usage:v1:current")
	require.False(t, ok)

	_, found, err := durable.Get(ctx, "usage:v1:current")
	require.NoError(t, err)
	require.False(t, found, "expired entry removed from durable tier")
}

func TestStoreColdStartMirrorsDurable(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	durable, err := storage.NewBolt(filepath.Join(t.TempDir(), "cache.db"), "")
	require.NoError(t, err)

	first := New(Options{Durable: durable, Now: clk.Now})
	first.Set(ctx, "persona:v1:page123", persona{Tone: "warm", Topics: []string{"coffee"}}, 365*24*time.Hour)

	second := New(Options{Durable: durable, Now: clk.Now})
	got, ok := GetJSON[persona](ctx, second, "persona:v1:page123")
	require.True(t, ok)
	require.Equal(t, "warm", got.Tone)

	require.NoError(t, durable.Delete(ctx, "persona:v1:page123"))
	got, ok = GetJSON[persona](ctx, second, "persona:v1:page123")
	require.True(t, ok, "memory tier serves after mirroring")
	require.Equal(t, []string{"coffee"}, got.Topics)
}

func TestStoreCorruptDurableEntryIsRemoved(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemory()
	require.NoError(t, durable.Set(ctx, "post_detail:v1:42", []byte("{not json"), 0))

	rec := metrics.NewRecorder(nil)
	s := New(Options{Durable: durable, Metrics: rec})

	_, ok := s.Get(ctx, "post_detail:v1:42")
	require.False(t, ok)
	_, found, err := durable.Get(ctx, "post_detail:v1:42")
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreClearAndPrefix(t *testing.T) {
	ctx := context.Background()
	durable := storage.NewMemory()
	s := New(Options{Durable: durable})

	s.Set(ctx, "media_list:v1:facebook:100:0", []int{1}, time.Minute)
	s.Set(ctx, "media_list:v1:facebook:20:20", []int{2}, time.Minute)
	s.Set(ctx, "posts_list:v1:page:all:20", []int{3}, time.Minute)

	s.ClearByPrefix(ctx, "media_list:v1:")
	_, ok := s.Get(ctx, "media_list:v1:facebook:100:0")
	require.False(t, ok)
	_, ok = s.Get(ctx, "media_list:v1:facebook:20:20")
	require.False(t, ok)
	_, ok = s.Get(ctx, "posts_list:v1:page:all:20")
	require.True(t, ok)

	keys, err := durable.Keys(ctx, "media_list:v1:")
	require.NoError(t, err)
	require.Empty(t, keys)

	s.Clear(ctx, "posts_list:v1:page:all:20")
	_, ok = s.Get(ctx, "posts_list:v1:page:all:20")
	require.False(t, ok)
}

func TestStoreNonPositiveTTLDoesNotStore(t *testing.T) {
	ctx := context.Background()
	s := New(Options{})
	s.Set(ctx, "k", "v", time.Minute)
	s.Set(ctx, "k", "v2", 0)
	_, ok := s.Get(ctx, "k")
	require.False(t, ok)
}

type failingBackend struct {
	storage.Backend
	err error
}

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingBackend) Delete(context.Context, string) error       { return f.err }
func (f failingBackend) DeletePrefix(context.Context, string) error { return f.err }

func TestStoreSwallowsDurableFailures(t *testing.T) {
	ctx := context.Background()
	s := New(Options{Durable: failingBackend{err: errors.New("quota exceeded")}})

	require.NotPanics(t, func() {
		s.Set(ctx, "auth:v1:me", map[string]string{"email": "a@b.c"}, time.Minute)
	})
	raw, ok := s.Get(ctx, "auth:v1:me")
	require.True(t, ok, "memory copy kept after durable write failure")
	require.JSONEq(t, `{"email":"a@b.c"}`, string(raw))

	_, ok = s.Get(ctx, "missing")
	require.False(t, ok)

	s.ClearByPrefix(ctx, "auth:v1:")
	_, ok = s.Get(ctx, "auth:v1:me")
	require.False(t, ok)
}

func TestGetJSONClearsMismatchedShape(t *testing.T) {
	ctx := context.Background()
	s := New(Options{})
	s.Set(ctx, "tiers:v1:all", "not-a-list", time.Hour)

	_, ok := GetJSON[[]string](ctx, s, "tiers:v1:all")
	require.False(t, ok)
	_, ok = s.Get(ctx, "tiers:v1:all")
	require.False(t, ok)
}
