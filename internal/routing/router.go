package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/observability"
)

// errCloudUnavailable is returned by the disabled cloud variant; the
// High path treats it as the downgrade signal, never as a failure.
var errCloudUnavailable = errors.New("cloud generation unavailable")

// noCloud stands in for an unconfigured cloud provider so that the High
// path never branches on nil. Absence is an ordinary, tolerated state.
type noCloud struct{}

func (noCloud) Complete(context.Context, string, string, float64, int) (string, error) {
	return "", errCloudUnavailable
}

// Router maps a complexity tier to a generation strategy:
//
//	Low    → local generation
//	Medium → search-enriched local generation
//	High   → cloud generation, downgrading to the Medium path when no
//	         cloud provider is configured
type Router struct {
	local  domain.Generator
	search domain.Searcher
	cloud  domain.CloudGenerator
	ai     *config.AIConfig
}

// Option configures optional collaborators on a Router.
type Option func(*Router)

// WithCloud attaches a cloud generation provider. A nil provider leaves
// the cloud path disabled.
func WithCloud(cloud domain.CloudGenerator) Option {
	return func(r *Router) {
		if cloud != nil {
			r.cloud = cloud
		}
	}
}

// NewRouter creates a generation router. Without WithCloud,
// High-complexity requests downgrade to search enrichment.
func NewRouter(
	local domain.Generator,
	search domain.Searcher,
	ai *config.AIConfig,
	opts ...Option,
) *Router {
	r := &Router{
		local:  local,
		search: search,
		cloud:  noCloud{},
		ai:     ai,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route classifies the request and runs the matching generation strategy.
// Search errors on the Medium and High paths propagate to the caller; an
// empty search result falls back to plain local generation. The returned
// response always carries cache_hit=false and no cache source.
func (r *Router) Route(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	complexity := Classify(req.Message)
	logger := observability.FromContext(ctx)
	logger.Info("request classified",
		observability.String("complexity", complexity.String()),
		observability.Int("message_length", len(req.Message)))

	switch complexity {
	case Low:
		return r.generateLocal(ctx, req, req.Message)
	case Medium:
		results, err := r.search.Search(ctx, req.Message)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		return r.enrichAndGenerate(ctx, req, results)
	default:
		results, err := r.search.Search(ctx, req.Message)
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		resp, err := r.generateCloud(ctx, req)
		if errors.Is(err, errCloudUnavailable) {
			// Downgrade to the enrichment path, reusing the results
			// already fetched.
			logger.Info("cloud generation unavailable, downgrading to enrichment")
			return r.enrichAndGenerate(ctx, req, results)
		}
		return resp, err
	}
}

// generateLocal runs one completion on the local model with the request's
// parameters, falling back to configured defaults.
func (r *Router) generateLocal(ctx context.Context, req *domain.ChatRequest, prompt string) (*domain.ChatResponse, error) {
	conversationID := r.conversationID(req)

	text, err := r.local.Generate(ctx, prompt, conversationID.String(),
		r.temperature(req), r.maxTokens(req))
	if err != nil {
		return nil, fmt.Errorf("local generation failed: %w", err)
	}

	return domain.NewChatResponse(text, conversationID), nil
}

// enrichAndGenerate appends a structured sources block to the prompt and
// generates locally. Empty results fall back to the plain local path.
func (r *Router) enrichAndGenerate(ctx context.Context, req *domain.ChatRequest, results []domain.SearchResult) (*domain.ChatResponse, error) {
	if len(results) == 0 {
		return r.generateLocal(ctx, req, req.Message)
	}

	sources, err := json.Marshal(struct {
		Sources []domain.SearchResult `json:"sources"`
	}{results})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search context: %w", err)
	}

	enriched := fmt.Sprintf("%s\n\nAdditional context (sources): %s", req.Message, sources)
	return r.generateLocal(ctx, req, enriched)
}

// generateCloud runs the completion on the cloud provider. Search results
// are not injected on this path; they only feed the enrichment path.
func (r *Router) generateCloud(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	conversationID := r.conversationID(req)

	text, err := r.cloud.Complete(ctx, req.Model, req.Message,
		r.temperature(req), r.maxTokens(req))
	if err != nil {
		return nil, fmt.Errorf("cloud generation failed: %w", err)
	}

	return domain.NewChatResponse(text, conversationID), nil
}

func (r *Router) conversationID(req *domain.ChatRequest) uuid.UUID {
	if req.ConversationID != nil {
		return *req.ConversationID
	}
	return uuid.New()
}

func (r *Router) temperature(req *domain.ChatRequest) float64 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return r.ai.Temperature
}

func (r *Router) maxTokens(req *domain.ChatRequest) int {
	if req.MaxTokens != nil {
		return *req.MaxTokens
	}
	return r.ai.MaxTokens
}
