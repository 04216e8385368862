// Package tiers exposes the subscription catalogue, current usage, and plan
// changes.
package tiers

import (
	"context"
	"net/http"
	"time"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
)

const (
	// The catalogue is public and shared by every user of the device.
	catalogueKey = "tiers:v1:all"
	catalogueTTL = time.Hour

	usagePrefix = "usage:v1:"
	usageKey    = usagePrefix + "current"
	usageTTL    = time.Minute
)

type Tier struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PriceCents   int      `json:"price_cents"`
	Currency     string   `json:"currency,omitempty"`
	MonthlyPosts int      `json:"monthly_posts"`
	AICredits    int      `json:"ai_credits"`
	Features     []string `json:"features,omitempty"`
}

type Usage struct {
	TierID             string `json:"tier_id"`
	PostsUsed          int    `json:"posts_used"`
	PostsLimit         int    `json:"posts_limit"`
	AICreditsUsed      int    `json:"ai_credits_used"`
	AICreditsLimit     int    `json:"ai_credits_limit"`
	PeriodEndsAt       string `json:"period_ends_at,omitempty"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

type Subscription struct {
	ID     string `json:"id"`
	TierID string `json:"tier_id"`
	Status string `json:"status"`
}

type ReceiptInput struct {
	TierID      string
	Filename    string
	ContentType string
	Data        []byte
}

// Service reads plans and usage and manages subscriptions.
type Service struct {
	engine resources.Engine
	cache  *cache.Store
}

// New returns a tiers Service.
func New(engine resources.Engine, c *cache.Store) *Service {
	return &Service{engine: engine, cache: c}
}

// List returns the public tier catalogue; no credentials are sent.
func (s *Service) List(ctx context.Context, opts resources.ReadOptions) ([]Tier, error) {
	return resources.Read(ctx, s.cache, catalogueKey, catalogueTTL, opts, func(ctx context.Context) ([]Tier, error) {
		tiers, err := resources.Call[[]Tier](ctx, s.engine, apiclient.Request{Path: "/tiers"})
		if err != nil {
			return nil, err
		}
		if tiers == nil {
			tiers = []Tier{}
		}
		return tiers, nil
	})
}

func (s *Service) Usage(ctx context.Context, opts resources.ReadOptions) (Usage, error) {
	return resources.Read(ctx, s.cache, usageKey, usageTTL, opts, func(ctx context.Context) (Usage, error) {
		return resources.Call[Usage](ctx, s.engine, apiclient.Request{Path: "/usage/current", WithAuth: true})
	})
}

func (s *Service) Subscribe(ctx context.Context, tierID string) (Subscription, error) {
	return resources.Mutate[Subscription](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/subscriptions",
		Body:     map[string]string{"tier_id": tierID},
		WithAuth: true,
	}, s.invalidateUsage)
}

// UploadReceipt submits a payment receipt for manual verification.
func (s *Service) UploadReceipt(ctx context.Context, in ReceiptInput) (Subscription, error) {
	return resources.Mutate[Subscription](ctx, s.engine, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/subscriptions/receipt",
		Form: &apiclient.Multipart{
			Fields: map[string]string{"tier_id": in.TierID},
			Files:  []apiclient.File{{Field: "receipt", Name: in.Filename, ContentType: in.ContentType, Data: in.Data}},
		},
		WithAuth: true,
	}, s.invalidateUsage)
}

func (s *Service) invalidateUsage(ctx context.Context) {
	s.cache.ClearByPrefix(ctx, usagePrefix)
}
