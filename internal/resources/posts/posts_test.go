package posts

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/resourcestest"
)

func TestListKeysByPageStatusAndLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "page1", q.Get("page_id"))
		if q.Get("status") == "draft" {
			resourcestest.JSON(w, http.StatusOK, `{"posts":{"id":"d1","status":"draft"}}`)
			return
		}
		resourcestest.JSON(w, http.StatusOK, `{"posts":[{"id":"p1"},{"id":"p2"}],"total":12}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	svc := New(h.Engine, h.Cache)

	all, err := svc.List(ctx, "page1", ListParams{}, resources.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, all.Posts, 2)
	require.Equal(t, 12, all.Total)

	drafts, err := svc.List(ctx, "page1", ListParams{Status: "draft", Limit: 5}, resources.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, []Post{{ID: "d1", Status: "draft"}}, drafts.Posts)

	_, ok := h.Cache.Get(ctx, "posts_list:v1:page1:all:20")
	require.True(t, ok)
	_, ok = h.Cache.Get(ctx, "posts_list:v1:page1:draft:5")
	require.True(t, ok)
}

func TestMutationsInvalidateDetailAndPageLists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusCreated, `{"id":"p3","page_id":"page1","status":"draft"}`)
	})
	mux.HandleFunc("PUT /posts/p1", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"id":"p1","message":"edited"}`)
	})
	mux.HandleFunc("POST /posts/p1/publish", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"id":"p1","status":"published"}`)
	})
	mux.HandleFunc("DELETE /posts/p1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mutations := map[string]func(*Service, context.Context) error{
		"create": func(s *Service, ctx context.Context) error {
			_, err := s.Create(ctx, CreateInput{PageID: "page1", Message: "hi"})
			return err
		},
		"update": func(s *Service, ctx context.Context) error {
			_, err := s.Update(ctx, "p1", UpdateInput{PageID: "page1", Message: "edited"})
			return err
		},
		"publish": func(s *Service, ctx context.Context) error {
			_, err := s.Publish(ctx, "page1", "p1")
			return err
		},
		"delete": func(s *Service, ctx context.Context) error {
			return s.Delete(ctx, "page1", "p1")
		},
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			h := resourcestest.New(t, mux)
			ctx := context.Background()
			h.Cache.Set(ctx, "post_detail:v1:p1", Post{ID: "p1"}, time.Minute)
			h.Cache.Set(ctx, "posts_list:v1:page1:all:20", ListResponse{}, time.Minute)
			h.Cache.Set(ctx, "posts_list:v1:page1:draft:5", ListResponse{}, time.Minute)
			h.Cache.Set(ctx, "posts_list:v1:page2:all:20", ListResponse{}, time.Minute)

			require.NoError(t, mutate(New(h.Engine, h.Cache), ctx))

			for _, key := range []string{"posts_list:v1:page1:all:20", "posts_list:v1:page1:draft:5"} {
				_, ok := h.Cache.Get(ctx, key)
				require.False(t, ok, key)
			}
			_, ok := h.Cache.Get(ctx, "posts_list:v1:page2:all:20")
			require.True(t, ok, "other pages keep their lists")
			if name != "create" {
				_, ok = h.Cache.Get(ctx, "post_detail:v1:p1")
				require.False(t, ok)
			}
		})
	}
}

func TestGetIsCachedUntilInvalidated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /posts/p1", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"id":"p1","message":"hello"}`)
	})
	mux.HandleFunc("POST /posts/p1/publish", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"id":"p1","status":"published"}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	svc := New(h.Engine, h.Cache)

	for range 2 {
		_, err := svc.Get(ctx, "p1", resources.ReadOptions{})
		require.NoError(t, err)
	}
	require.Equal(t, 1, h.Hits("GET /posts/p1"))

	_, err := svc.Publish(ctx, "page1", "p1")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "p1", resources.ReadOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, h.Hits("GET /posts/p1"))
}

func TestGenerateClearsUsage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts/generate", func(w http.ResponseWriter, r *http.Request) {
		body := resourcestest.DecodeBody(t, r)
		require.Equal(t, "launch week", body["prompt"])
		resourcestest.JSON(w, http.StatusOK, `{"message":"Big news!","hashtags":["#launch"],"credits_used":1}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	h.Cache.Set(ctx, "usage:v1:current", map[string]int{"credits": 10}, time.Minute)

	draft, err := New(h.Engine, h.Cache).Generate(ctx, GenerateInput{PageID: "page1", Prompt: "launch week"})
	require.NoError(t, err)
	require.Equal(t, "Big news!", draft.Message)
	_, ok := h.Cache.Get(ctx, "usage:v1:current")
	require.False(t, ok)
}

func TestFailedGenerateKeepsUsage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts/generate", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusPaymentRequired, `{"detail":"Out of credits"}`)
	})
	h := resourcestest.New(t, mux)
	ctx := context.Background()
	h.Cache.Set(ctx, "usage:v1:current", map[string]int{"credits": 0}, time.Minute)

	_, err := New(h.Engine, h.Cache).Generate(ctx, GenerateInput{PageID: "page1", Prompt: "x"})
	require.EqualError(t, err, "Out of credits")
	_, ok := h.Cache.Get(ctx, "usage:v1:current")
	require.True(t, ok)
}

func TestMutationsWithUndecodableReplyStillInvalidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /posts", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusCreated, `{"id":42}`)
	})
	mux.HandleFunc("PUT /posts/p1", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"id":42}`)
	})
	mux.HandleFunc("POST /posts/p1/publish", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"status":true}`)
	})
	mux.HandleFunc("POST /posts/generate", func(w http.ResponseWriter, r *http.Request) {
		resourcestest.JSON(w, http.StatusOK, `{"message":42}`)
	})

	tests := []struct {
		name   string
		key    string
		mutate func(*Service, context.Context) error
	}{
		{name: "create", key: "posts_list:v1:page1:all:20", mutate: func(s *Service, ctx context.Context) error {
			_, err := s.Create(ctx, CreateInput{PageID: "page1", Message: "hi"})
			return err
		}},
		{name: "update", key: "post_detail:v1:p1", mutate: func(s *Service, ctx context.Context) error {
			_, err := s.Update(ctx, "p1", UpdateInput{PageID: "page1", Message: "edited"})
			return err
		}},
		{name: "publish", key: "posts_list:v1:page1:all:20", mutate: func(s *Service, ctx context.Context) error {
			_, err := s.Publish(ctx, "page1", "p1")
			return err
		}},
		{name: "generate", key: "usage:v1:current", mutate: func(s *Service, ctx context.Context) error {
			_, err := s.Generate(ctx, GenerateInput{PageID: "page1"})
			return err
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := resourcestest.New(t, mux)
			ctx := context.Background()
			h.Cache.Set(ctx, tc.key, map[string]string{"stale": "yes"}, time.Minute)

			require.Error(t, tc.mutate(New(h.Engine, h.Cache), ctx))

			_, ok := h.Cache.Get(ctx, tc.key)
			require.False(t, ok, tc.key)
		})
	}
}
