// Package scheduling queues posts for future publication on a page.
package scheduling

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/shape"
)

const (
	listPrefix = "scheduled_posts:v1:"
	listTTL    = time.Minute
)

func listKey(pageID string) string { return listPrefix + pageID }

type ScheduledPost struct {
	ID          string    `json:"id"`
	PageID      string    `json:"page_id"`
	PostID      string    `json:"post_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	MediaIDs    []string  `json:"media_ids,omitempty"`
	ScheduledAt time.Time `json:"scheduled_time"`
	Status      string    `json:"status"`
}

type scheduledPayload struct {
	ScheduledPosts shape.Variant[ScheduledPost] `json:"scheduled_posts"`
}

type ScheduleInput struct {
	PageID      string    `json:"page_id"`
	PostID      string    `json:"post_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	MediaIDs    []string  `json:"media_ids,omitempty"`
	ScheduledAt time.Time `json:"scheduled_time"`
}

// Service manages scheduled posts per page.
type Service struct {
	engine resources.Engine
	cache  *cache.Store
}

// New returns a scheduling Service.
func New(engine resources.Engine, c *cache.Store) *Service {
	return &Service{engine: engine, cache: c}
}

func (s *Service) List(ctx context.Context, pageID string, opts resources.ReadOptions) ([]ScheduledPost, error) {
	return resources.Read(ctx, s.cache, listKey(pageID), listTTL, opts, func(ctx context.Context) ([]ScheduledPost, error) {
		raw, err := resources.Call[scheduledPayload](ctx, s.engine, apiclient.Request{
			Path:     "/scheduled-posts",
			Query:    url.Values{"page_id": {pageID}},
			WithAuth: true,
		})
		if err != nil {
			return nil, err
		}
		return raw.ScheduledPosts.Slice(), nil
	})
}

func (s *Service) Schedule(ctx context.Context, in ScheduleInput) (ScheduledPost, error) {
	return resources.Mutate[ScheduledPost](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/scheduled-posts",
		Body:     in,
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.Clear(ctx, listKey(in.PageID)) })
}

func (s *Service) Reschedule(ctx context.Context, pageID, scheduleID string, at time.Time) (ScheduledPost, error) {
	return resources.Mutate[ScheduledPost](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPut,
		Path:     "/scheduled-posts/" + url.PathEscape(scheduleID),
		Body:     map[string]time.Time{"scheduled_time": at},
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.Clear(ctx, listKey(pageID)) })
}

func (s *Service) Cancel(ctx context.Context, pageID, scheduleID string) error {
	if _, err := s.engine.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/scheduled-posts/" + url.PathEscape(scheduleID),
		WithAuth: true,
	}); err != nil {
		return err
	}
	s.cache.Clear(ctx, listKey(pageID))
	return nil
}
