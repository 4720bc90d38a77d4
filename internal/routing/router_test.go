package routing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/routing"
)

type mockGenerator struct {
	prompts     []string
	temperature float64
	maxTokens   int
	err         error
}

func (m *mockGenerator) Generate(_ context.Context, prompt, _ string, temperature float64, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.temperature = temperature
	m.maxTokens = maxTokens
	if m.err != nil {
		return "", m.err
	}
	return "local answer", nil
}

type mockSearcher struct {
	results []domain.SearchResult
	err     error
	calls   int
}

func (m *mockSearcher) Search(_ context.Context, _ string) ([]domain.SearchResult, error) {
	m.calls++
	return m.results, m.err
}

type mockCloud struct {
	model string
	calls int
	err   error
}

func (m *mockCloud) Complete(_ context.Context, model, _ string, _ float64, _ int) (string, error) {
	m.calls++
	m.model = model
	if m.err != nil {
		return "", m.err
	}
	return "cloud answer", nil
}

func testAIConfig() *config.AIConfig {
	return &config.AIConfig{
		ModelName:   "tinyllama",
		Temperature: 0.7,
		MaxTokens:   2048,
	}
}

func TestRouteLow(t *testing.T) {
	ctx := context.Background()

	t.Run("should generate locally without searching", func(t *testing.T) {
		local := &mockGenerator{}
		search := &mockSearcher{}
		router := routing.NewRouter(local, search, testAIConfig())

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: "what is go"})

		require.NoError(t, err)
		require.Equal(t, "local answer", resp.Response)
		require.False(t, resp.CacheHit)
		require.Empty(t, resp.CacheSource)
		require.Zero(t, search.calls)
		require.Equal(t, []string{"what is go"}, local.prompts)
	})

	t.Run("should apply configured defaults for unset parameters", func(t *testing.T) {
		local := &mockGenerator{}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig())

		_, err := router.Route(ctx, &domain.ChatRequest{Message: "hi"})

		require.NoError(t, err)
		require.InDelta(t, 0.7, local.temperature, 1e-9)
		require.Equal(t, 2048, local.maxTokens)
	})

	t.Run("should prefer request parameters over defaults", func(t *testing.T) {
		local := &mockGenerator{}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig())
		temperature := 0.2
		maxTokens := 64

		_, err := router.Route(ctx, &domain.ChatRequest{
			Message:     "hi",
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})

		require.NoError(t, err)
		require.InDelta(t, 0.2, local.temperature, 1e-9)
		require.Equal(t, 64, local.maxTokens)
	})

	t.Run("should keep the conversation id from the request", func(t *testing.T) {
		local := &mockGenerator{}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig())
		conversationID := uuid.New()

		resp, err := router.Route(ctx, &domain.ChatRequest{
			Message:        "hi",
			ConversationID: &conversationID,
		})

		require.NoError(t, err)
		require.Equal(t, conversationID, resp.ConversationID)
	})

	t.Run("should mint a conversation id when the request has none", func(t *testing.T) {
		router := routing.NewRouter(&mockGenerator{}, &mockSearcher{}, testAIConfig())

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: "hi"})

		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, resp.ConversationID)
	})

	t.Run("should propagate generation failures", func(t *testing.T) {
		local := &mockGenerator{err: errors.New("model busy")}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig())

		_, err := router.Route(ctx, &domain.ChatRequest{Message: "hi"})

		require.ErrorContains(t, err, "local generation failed")
	})
}

func TestRouteMedium(t *testing.T) {
	ctx := context.Background()
	message := strings.Repeat("a", 300)

	t.Run("should enrich the prompt with search sources", func(t *testing.T) {
		local := &mockGenerator{}
		search := &mockSearcher{results: []domain.SearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "the language"},
		}}
		router := routing.NewRouter(local, search, testAIConfig())

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.NoError(t, err)
		require.Equal(t, "local answer", resp.Response)
		require.Equal(t, 1, search.calls)
		require.Len(t, local.prompts, 1)
		require.Contains(t, local.prompts[0], message)
		require.Contains(t, local.prompts[0], "Additional context (sources):")
		require.Contains(t, local.prompts[0], `"https://go.dev"`)
	})

	t.Run("should fall back to the plain prompt on empty results", func(t *testing.T) {
		local := &mockGenerator{}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig())

		_, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.NoError(t, err)
		require.Equal(t, []string{message}, local.prompts)
	})

	t.Run("should propagate search failures", func(t *testing.T) {
		local := &mockGenerator{}
		search := &mockSearcher{err: errors.New("search backend down")}
		router := routing.NewRouter(local, search, testAIConfig())

		_, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.ErrorContains(t, err, "search failed")
		require.Empty(t, local.prompts)
	})
}

func TestRouteHigh(t *testing.T) {
	ctx := context.Background()
	message := strings.Repeat("a", 900)

	t.Run("should generate on the cloud provider", func(t *testing.T) {
		local := &mockGenerator{}
		cloud := &mockCloud{}
		router := routing.NewRouter(local, &mockSearcher{}, testAIConfig(), routing.WithCloud(cloud))

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: message, Model: "openrouter/auto"})

		require.NoError(t, err)
		require.Equal(t, "cloud answer", resp.Response)
		require.Equal(t, 1, cloud.calls)
		require.Equal(t, "openrouter/auto", cloud.model)
		require.Empty(t, local.prompts)
	})

	t.Run("should downgrade to enrichment when no cloud provider is configured", func(t *testing.T) {
		local := &mockGenerator{}
		search := &mockSearcher{results: []domain.SearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "the language"},
		}}
		router := routing.NewRouter(local, search, testAIConfig())

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.NoError(t, err)
		require.Equal(t, "local answer", resp.Response)
		// The downgrade reuses the results already fetched.
		require.Equal(t, 1, search.calls)
		require.Contains(t, local.prompts[0], "Additional context (sources):")
	})

	t.Run("should treat a nil cloud option as disabled", func(t *testing.T) {
		local := &mockGenerator{}
		search := &mockSearcher{results: []domain.SearchResult{
			{Title: "Go", URL: "https://go.dev", Snippet: "the language"},
		}}
		router := routing.NewRouter(local, search, testAIConfig(), routing.WithCloud(nil))

		resp, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.NoError(t, err)
		require.Equal(t, "local answer", resp.Response)
		require.Equal(t, 1, search.calls)
		require.Contains(t, local.prompts[0], "Additional context (sources):")
	})

	t.Run("should propagate cloud failures", func(t *testing.T) {
		cloud := &mockCloud{err: errors.New("provider unavailable")}
		router := routing.NewRouter(&mockGenerator{}, &mockSearcher{}, testAIConfig(), routing.WithCloud(cloud))

		_, err := router.Route(ctx, &domain.ChatRequest{Message: message})

		require.ErrorContains(t, err, "cloud generation failed")
	})
}
