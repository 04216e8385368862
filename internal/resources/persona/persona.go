// Package persona builds and reads the AI persona profiles derived from a
// page's posting history.
package persona

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/cache"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
)

const (
	personaPrefix = "persona:v1:"
	agentPrefix   = "ai_agent_persona:v1:"
)

func personaKey(pageID string) string { return personaPrefix + pageID }
func agentKey(pageID string) string   { return agentPrefix + pageID }

// Persona is the analysed voice of a page.
type Persona struct {
	PageID         string          `json:"page_id"`
	Tone           string          `json:"tone,omitempty"`
	Audience       string          `json:"audience,omitempty"`
	Topics         []string        `json:"topics,omitempty"`
	PostingHabits  json.RawMessage `json:"posting_habits,omitempty"`
	AnalyzedPosts  int             `json:"analyzed_posts,omitempty"`
	AnalysisPeriod int             `json:"analysis_period_days,omitempty"`
	UpdatedAt      string          `json:"updated_at,omitempty"`
}

// AgentPersona steers AI content generation for a page.
type AgentPersona struct {
	PageID       string   `json:"page_id"`
	Name         string   `json:"name,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Style        string   `json:"style,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Service reads, builds and updates page personas.
type Service struct {
	engine resources.Engine
	cache  *cache.Store
}

// New returns a persona Service.
func New(engine resources.Engine, c *cache.Store) *Service {
	return &Service{engine: engine, cache: c}
}

func (s *Service) Get(ctx context.Context, pageID string, opts resources.ReadOptions) (Persona, error) {
	return resources.Read(ctx, s.cache, personaKey(pageID), resources.Unbounded, opts, func(ctx context.Context) (Persona, error) {
		return resources.Call[Persona](ctx, s.engine, apiclient.Request{
			Path:     "/persona/" + url.PathEscape(pageID),
			WithAuth: true,
		})
	})
}

// Build analyses the last days of posts and caches the resulting persona.
func (s *Service) Build(ctx context.Context, pageID string, days int) (Persona, error) {
	p, err := resources.Mutate[Persona](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPost,
		Path:     "/persona/build",
		Body:     map[string]any{"page_id": pageID, "days": days},
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.Clear(ctx, personaKey(pageID)) })
	if err != nil {
		return Persona{}, err
	}
	s.cache.Set(ctx, personaKey(pageID), p, resources.Unbounded)
	return p, nil
}

func (s *Service) GetAIAgentPersona(ctx context.Context, pageID string, opts resources.ReadOptions) (AgentPersona, error) {
	return resources.Read(ctx, s.cache, agentKey(pageID), resources.Unbounded, opts, func(ctx context.Context) (AgentPersona, error) {
		return resources.Call[AgentPersona](ctx, s.engine, apiclient.Request{
			Path:     "/ai-agent-persona/" + url.PathEscape(pageID),
			WithAuth: true,
		})
	})
}

func (s *Service) UpdateAIAgentPersona(ctx context.Context, pageID string, in AgentPersona) (AgentPersona, error) {
	return resources.Mutate[AgentPersona](ctx, s.engine, apiclient.Request{
		Method:   http.MethodPut,
		Path:     "/ai-agent-persona/" + url.PathEscape(pageID),
		Body:     in,
		WithAuth: true,
	}, func(ctx context.Context) { s.cache.Clear(ctx, agentKey(pageID)) })
}

// Delete removes the persona and the agent persona derived from it.
func (s *Service) Delete(ctx context.Context, pageID string) error {
	if _, err := s.engine.Do(ctx, apiclient.Request{
		Method:   http.MethodDelete,
		Path:     "/persona/" + url.PathEscape(pageID),
		WithAuth: true,
	}); err != nil {
		return err
	}
	s.cache.Clear(ctx, personaKey(pageID))
	s.cache.Clear(ctx, agentKey(pageID))
	return nil
}
