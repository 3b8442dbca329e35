// Package mailrelay is the Email Orchestration Engine's library
// entrypoint. It wires the consent gate, tone and knowledge retrievers,
// intent classifier, sub-agents, and composer into a graph.Graph and
// exposes a single GenerateResponse call, mirroring the language-neutral
// `generate_response` entrypoint this engine was specified against.
//
// The HTTP surface, draft/user persistence, and OAuth token refresh are
// out of scope: callers own those and pass this package already-valid
// access tokens and consent strings.
package mailrelay

import (
	"context"
	"fmt"

	"mailrelay.app/engine/common/embedding"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/core/config"
	"mailrelay.app/engine/internal/classifier"
	"mailrelay.app/engine/internal/composer"
	"mailrelay.app/engine/internal/consent"
	"mailrelay.app/engine/internal/graph"
	"mailrelay.app/engine/internal/knowledge"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/provider/docextract"
	googleprovider "mailrelay.app/engine/internal/provider/google"
	"mailrelay.app/engine/internal/provider/websearch"
	"mailrelay.app/engine/internal/responder/general"
	"mailrelay.app/engine/internal/responder/info"
	"mailrelay.app/engine/internal/summarize"
	"mailrelay.app/engine/internal/tone"
)

// Engine is a ready-to-use orchestration engine built from config. It
// holds no per-request state; a single Engine safely serves concurrent
// GenerateResponse calls, each run owning its own retrievers and plan.
type Engine struct {
	graph      *graph.Graph
	summarizer *summarize.Summarizer
}

// New builds an Engine from cfg, wiring the OpenAI or Anthropic chat
// backend (cfg.LLMProviderName), the OpenAI embedding provider, the
// Gmail/Calendar adapters, SerpAPI web search, and PDF/DOCX extraction.
func New(cfg config.Config) (*Engine, error) {
	chatClient, err := llm.NewAgentClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("mailrelay: build llm client: %w", err)
	}

	embedder, err := embedding.NewOpenAIProvider(embedding.Config{
		APIKey:         cfg.LLMAPIKey,
		Model:          cfg.EmbeddingModel,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mailrelay: build embedding provider: %w", err)
	}

	mail := googleprovider.NewMailAdapter(cfg.ProviderTimeout)
	calendar := googleprovider.NewCalendarAdapter(cfg.ProviderTimeout)

	var webSearch provider.WebSearchProvider
	if cfg.WebSearchAPIKey != "" {
		webSearch = websearch.NewSerpAPIProvider(cfg.WebSearchAPIKey, cfg.ProviderTimeout)
	}

	decoder := consent.NewJWTDecoder([]byte(cfg.ConsentJWTSecret))
	gate := consent.New(decoder)

	toneBuilder := tone.New(mail, embedder)
	kbBuilder := knowledge.New(cfg.KBBaseDir, docextract.New(), embedder)
	classifierAgent := classifier.New(chatClient)
	infoResponder := info.New(chatClient, embedder, webSearch)
	generalResponder := general.New(chatClient)
	composerAgent := composer.New(chatClient)

	g := graph.New(
		gate,
		toneBuilder,
		kbBuilder,
		classifierAgent,
		calendar,
		chatClient,
		infoResponder,
		generalResponder,
		composerAgent,
		cfg.SchedulerMaxIterations,
	)

	return &Engine{
		graph:      g,
		summarizer: summarize.New(chatClient),
	}, nil
}

// GenerateResponse runs one email through the orchestration graph and
// returns the draft reply. It is the engine's sole entrypoint: consent
// validation, retrieval, sub-agent dispatch, and composition all happen
// inside this call.
func (e *Engine) GenerateResponse(ctx context.Context, req graph.Request) (model.DraftResponse, error) {
	return e.graph.Run(ctx, req)
}

// SummarizeUnread runs the upstream per-email summarizer over an unread
// batch, producing the {summary, intent} pairs that populate
// EmailContext.Summary/IntentLabel before GenerateResponse is called for
// each message.
func (e *Engine) SummarizeUnread(ctx context.Context, messages []provider.Message) ([]model.EmailContext, error) {
	return e.summarizer.Summarize(ctx, messages)
}
