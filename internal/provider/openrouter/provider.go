// Package openrouter provides cloud generation through the OpenRouter
// completion API (OpenAI-compatible), using the official OpenAI SDK
// pointed at the OpenRouter base URL.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/ember/internal/config"
	"github.com/davidbz/ember/internal/observability"
)

// Provider implements domain.CloudGenerator against OpenRouter.
type Provider struct {
	client       openai.Client
	defaultModel string
}

// NewProvider creates an OpenRouter provider. An API key is required;
// callers treat a missing key as "cloud generation disabled" and must not
// construct a provider in that case.
func NewProvider(cfg *config.OpenRouterConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenRouter API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Provider{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
	}, nil
}

// Complete sends one user message and returns the completion content.
// An empty model falls back to the configured default model.
func (p *Provider) Complete(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	if model == "" {
		model = p.defaultModel
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling OpenRouter API",
		observability.String("cloud_model", model))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}

	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		logger.Error("OpenRouter API call failed", observability.Error(err))
		return "", fmt.Errorf("OpenRouter API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("OpenRouter returned no choices")
	}

	logger.Debug("OpenRouter API call succeeded",
		observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)))

	return resp.Choices[0].Message.Content, nil
}
