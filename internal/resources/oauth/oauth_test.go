package oauth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/resourcestest"
)

func TestConnectURLIsNeverCached(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /facebook/connect-url", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"auth_url":"https://facebook.com/dialog/oauth?state=abc","state":"abc"}`)
	})
	h := resourcestest.New(t, mux)
	svc := New(h.Engine, h.Cache, h.Sessions)

	for range 2 {
		out, err := svc.ConnectURL(context.Background())
		require.NoError(t, err)
		require.Equal(t, "abc", out.State)
	}
	require.Equal(t, 2, h.Hits("GET /facebook/connect-url"))
}

func TestCallbackStoresSessionAndClearsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /facebook/callback", func(w http.ResponseWriter, r *http.Request) {
		body := resourcestest.DecodeBody(t, r)
		require.Equal(t, "code-1", body["code"])
		require.Equal(t, "abc", body["state"])
		resourcestest.JSON(w, http.StatusOK, `{"access_token":"a2","user":{"id":"u1"},"pages":{"page_id":"p1","page_name":"Cafe"}}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	h.Sessions.SetAccessToken(ctx, "a1")
	h.Sessions.SetRefreshToken(ctx, "r1")
	h.Cache.Set(ctx, "facebook_pages:v1:all", []Page{}, time.Minute)
	h.Cache.Set(ctx, "auth:v1:me", map[string]string{"id": "u1"}, time.Minute)

	res, err := New(h.Engine, h.Cache, h.Sessions).Callback(ctx, "code-1", "abc")
	require.NoError(t, err)
	require.Equal(t, []Page{{ID: "p1", Name: "Cafe"}}, res.Pages)

	require.Equal(t, "a2", h.Sessions.AccessToken(ctx))
	require.Equal(t, "r1", h.Sessions.RefreshToken(ctx))
	require.JSONEq(t, `{"id":"u1"}`, string(h.Sessions.UserInfo(ctx)))
	_, ok := h.Cache.Get(ctx, "facebook_pages:v1:all")
	require.False(t, ok)
	_, ok = h.Cache.Get(ctx, "auth:v1:me")
	require.False(t, ok)
}

func TestPagesNormalizesShapes(t *testing.T) {
	tests := map[string]struct {
		body string
		want int
	}{
		"array":  {body: `{"pages":[{"page_id":"p1"},{"page_id":"p2"}]}`, want: 2},
		"single": {body: `{"pages":{"page_id":"p1"}}`, want: 1},
		"absent": {body: `{"message":"no pages connected"}`, want: 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /facebook/pages", func(w http.ResponseWriter, r *http.Request) {
				resourcestest.JSON(w, http.StatusOK, tc.body)
			})
			h := resourcestest.New(t, mux)
			svc := New(h.Engine, h.Cache, h.Sessions)

			pages, err := svc.Pages(context.Background(), resources.ReadOptions{})
			require.NoError(t, err)
			require.NotNil(t, pages)
			require.Len(t, pages, tc.want)

			cached, err := svc.Pages(context.Background(), resources.ReadOptions{})
			require.NoError(t, err)
			require.Equal(t, pages, cached)
			require.Equal(t, 1, h.Hits("GET /facebook/pages"))
		})
	}
}

func TestDisconnectClearsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /facebook/pages/p1", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"success":true}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	h.Cache.Set(ctx, "facebook_pages:v1:all", []Page{{ID: "p1"}}, time.Minute)

	require.NoError(t, New(h.Engine, h.Cache, h.Sessions).Disconnect(ctx, "p1"))
	_, ok := h.Cache.Get(ctx, "facebook_pages:v1:all")
	require.False(t, ok)
}

func TestCallbackWithUndecodableReplyStillClearsPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /facebook/callback", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"access_token":42}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	h.Sessions.SetAccessToken(ctx, "old")
	h.Cache.Set(ctx, "facebook_pages:v1:all", []Page{{ID: "pg0"}}, time.Minute)

	_, err := New(h.Engine, h.Cache, h.Sessions).Callback(ctx, "code", "state")
	require.Error(t, err)

	_, ok := h.Cache.Get(ctx, "facebook_pages:v1:all")
	require.False(t, ok)
	require.Equal(t, "old", h.Sessions.AccessToken(ctx), "undecodable credentials are not stored")
}
