// Package embedding provides the engine's embedding-provider abstraction
// and an OpenAI-backed implementation. Retrievers (internal/retriever) use
// Provider to turn chunked text into vectors for an in-memory cosine index.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider embeds free text into a fixed-dimension float vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type openaiProvider struct {
	client openai.Client
	model  string
}

// Config configures the OpenAI-backed embedding provider. RequestTimeout
// bounds each individual API call; zero means the SDK default.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

// NewOpenAIProvider builds a Provider backed by the OpenAI embeddings API.
func NewOpenAIProvider(cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding: API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &openaiProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *openaiProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: p.model,
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding: no data in response")
	}
	return resp.Data[0].Embedding, nil
}
