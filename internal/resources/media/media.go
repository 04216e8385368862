// Package media lists, uploads and removes media in the user's library.
package media

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
	listPrefix   = "media_list:v1:"
	listTTL      = 2 * time.Minute
	defaultLimit = 100
)

type Item struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Type      string `json:"media_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Platform  string `json:"platform,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ListResponse is the normalized page of media; Media is never nil.
type ListResponse struct {
	Media   []Item `json:"media"`
	Total   int    `json:"total"`
	HasMore bool   `json:"has_more"`
}

type listPayload struct {
	Media   shape.Variant[Item] `json:"media"`
	Total   *int                `json:"total"`
	HasMore bool                `json:"has_more"`
}

type ListParams struct {
	Platform string
	Limit    int
	Offset   int
}

func (p ListParams) normalized() ListParams {
	if p.Platform == "" {
		p.Platform = "all"
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func listKey(p ListParams) string {
	return fmt.Sprintf("%s%s:%d:%d", listPrefix, p.Platform, p.Limit, p.Offset)
}

type UploadInput struct {
	Platform    string
	Filename    string
	ContentType string
	Data        []byte
}

// Service lists, uploads and deletes media library items.
type Service struct {
	engine resources.Engine
	cache  *cache.Store
}

// New returns a media Service.
func New(engine resources.Engine, c *cache.Store) *Service {
	return &Service{engine: engine, cache: c}
}

func (s *Service) List(ctx context.Context, params ListParams, opts resources.ReadOptions) (ListResponse, error) {
	p := params.normalized()
	return resources.Read(ctx, s.cache, listKey(p), listTTL, opts, func(ctx context.Context) (ListResponse, error) {
		query := url.Values{}
		if p.Platform != "all" {
			query.Set("platform", p.Platform)
		}
		query.Set("limit", strconv.Itoa(p.Limit))
		query.Set("offset", strconv.Itoa(p.Offset))
		raw, err := resources.Call[listPayload](ctx, s.engine, apiclient.Request{Path: "/media", Query: query, WithAuth: true})
		if err != nil {
			return ListResponse{}, err
		}
		return normalizeList(raw), nil
	})
}

func normalizeList(raw listPayload) ListResponse {
	items := raw.Media.Slice()
	total := len(items)
	if raw.Total != nil {
		total = *raw.Total
	}
	return ListResponse{Media: items, Total: total, HasMore: raw.HasMore}
}

func (s *Service) Upload(ctx context.Context, in UploadInput) (Item, error) {
	fields := map[string]string{}
	if in.Platform != "" {
		fields["platform"] = in.Platform
	}
	return resources.Mutate[Item](ctx, s.engine, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/media/upload",
		Form: &apiclient.Multipart{
			Fields: fields,
			Files:  []apiclient.File{{Field: "file", Name: in.Filename, ContentType: in.ContentType, Data: in.Data}},
		},
		WithAuth: true,
	}, s.invalidateLists)
}

func (s *Service) Delete(ctx context.Context, mediaID string) error {
	if _, err := s.engine.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/media/" + url.PathEscape(mediaID),
		WithAuth: true,
	}); err != nil {
		return err
	}
	s.invalidateLists(ctx)
	return nil
}

func (s *Service) invalidateLists(ctx context.Context) {
	s.cache.ClearByPrefix(ctx, listPrefix)
}
