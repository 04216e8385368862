// Package posts manages drafts and published posts for a page, including AI
// generated drafts.
package posts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/shape"
)

const (
	listPrefix   = "posts_list:v1:"
	detailPrefix = "post_detail:v1:"
	usagePrefix  = "usage:v1:"

	listTTL      = time.Minute
	detailTTL    = 5 * time.Minute
	defaultLimit = 20
)

func listPagePrefix(pageID string) string { return listPrefix + pageID + ":" }

func detailKey(postID string) string { return detailPrefix + postID }

type Post struct {
	ID          string   `json:"id"`
	PageID      string   `json:"page_id"`
	Message     string   `json:"message"`
	Status      string   `json:"status"`
	MediaIDs    []string `json:"media_ids,omitempty"`
	Link        string   `json:"link,omitempty"`
	FacebookID  string   `json:"facebook_post_id,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
}

type ListResponse struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

type listPayload struct {
	Posts shape.Variant[Post] `json:"posts"`
	Total *int                `json:"total"`
}

type ListParams struct {
	Status string
	Limit  int
}

type CreateInput struct {
	PageID   string   `json:"page_id"`
	Message  string   `json:"message"`
	MediaIDs []string `json:"media_ids,omitempty"`
	Link     string   `json:"link,omitempty"`
	Publish  bool     `json:"publish_now,omitempty"`
}

type UpdateInput struct {
	PageID   string   `json:"page_id"`
	Message  string   `json:"message,omitempty"`
	MediaIDs []string `json:"media_ids,omitempty"`
	Link     string   `json:"link,omitempty"`
}

type GenerateInput struct {
	PageID string `json:"page_id"`
	Prompt string `json:"prompt"`
	Tone   string `json:"tone,omitempty"`
}

// Draft is an AI generated suggestion; it is not stored as a post until
// created.
type Draft struct {
	Message     string   `json:"message"`
	Hashtags    []string `json:"hashtags,omitempty"`
	CreditsUsed int      `json:"credits_used,omitempty"`
}

// Service manages posts and AI drafts.
type Service struct {
	engine resources.Engine
	cache  *cache.Store
}

// New returns a posts Service.
func New(engine resources.Engine, c *cache.Store) *Service {
	return &Service{engine: engine, cache: c}
}

func (s *Service) List(ctx context.Context, pageID string, params ListParams, opts resources.ReadOptions) (ListResponse, error) {
	status := params.Status
	if status == "" {
		status = "all"
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	key := fmt.Sprintf("%s%s:%d", listPagePrefix(pageID), status, limit)
	return resources.Read(ctx, s.cache, key, listTTL, opts, func(ctx context.Context) (ListResponse, error) {
		query := url.Values{"page_id": {pageID}, "limit": {strconv.Itoa(limit)}}
		if status != "all" {
			query.Set("status", status)
		}
		raw, err := resources.Call[listPayload](ctx, s.engine, apiclient.Request{Path: "/posts", Query: query, WithAuth: true})
		if err != nil {
			return ListResponse{}, err
		}
		items := raw.Posts.Slice()
		total := len(items)
		if raw.Total != nil {
			total = *raw.Total
		}
		return ListResponse{Posts: items, Total: total}, nil
	})
}

func (s *Service) Get(ctx context.Context, postID string, opts resources.ReadOptions) (Post, error) {
	return resources.Read(ctx, s.cache, detailKey(postID), detailTTL, opts, func(ctx context.Context) (Post, error) {
		return resources.Call[Post](ctx, s.engine, apiclient.Request{Path: "/posts/" + url.PathEscape(postID), WithAuth: true})
	})
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Post, error) {
	// A new post has no detail entry yet; only the page lists go stale.
	return resources.Mutate[Post](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/posts",
		Body:     in,
		WithAuth: true,
	}, func(ctx context.Context) { s.invalidate(ctx, in.PageID, "") })
}

func (s *Service) Update(ctx context.Context, postID string, in UpdateInput) (Post, error) {
	return resources.Mutate[Post](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPut,
		Path:     "/posts/" + url.PathEscape(postID),
		Body:     in,
		WithAuth: true,
	}, func(ctx context.Context) { s.invalidate(ctx, in.PageID, postID) })
}

func (s *Service) Publish(ctx context.Context, pageID, postID string) (Post, error) {
	return resources.Mutate[Post](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/posts/" + url.PathEscape(postID) + "/publish",
		WithAuth: true,
	}, func(ctx context.Context) { s.invalidate(ctx, pageID, postID) })
}

func (s *Service) Delete(ctx context.Context, pageID, postID string) error {
	if _, err := s.engine.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/posts/" + url.PathEscape(postID),
		WithAuth: true,
	}); err != nil {
		return err
	}
	s.invalidate(ctx, pageID, postID)
	return nil
}

// Generate asks the AI service for a draft. Generation consumes credits, so
// cached usage figures are dropped.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (Draft, error) {
	return resources.Mutate[Draft](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/posts/generate",
		Body:     in,
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.ClearByPrefix(ctx, usagePrefix) })
}

func (s *Service) invalidate(ctx context.Context, pageID, postID string) {
	if postID != "" {
		s.cache.Clear(ctx, detailKey(postID))
	}
	if pageID != "" {
		s.cache.ClearByPrefix(ctx, listPagePrefix(pageID))
		return
	}
	// Without the page the affected lists are unknown.
	s.cache.ClearByPrefix(ctx, listPrefix)
}
