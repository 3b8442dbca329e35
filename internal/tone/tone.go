// Package tone builds the ephemeral tone retriever: a vector index over
// the user's own recent sent mail, used by the composer to style the
// final reply in the user's voice.
package tone

import (
	"context"
	"log/slog"

	"mailrelay.app/engine/common/embedding"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/retriever"
)

// DefaultWindowDays is the default lookback window for sent mail.
const DefaultWindowDays = 7

// Builder builds tone retrievers from a mail provider and embedding provider.
type Builder struct {
	Mail     provider.MailProvider
	Embedder embedding.Provider
}

// New returns a Builder.
func New(mail provider.MailProvider, embedder embedding.Provider) *Builder {
	return &Builder{Mail: mail, Embedder: embedder}
}

// Build fetches sent mail from the last windowDays days (DefaultWindowDays
// if <= 0), chunks and embeds each body, and returns a retriever. Any
// failure along the way — listing sent mail, embedding every chunk, or an
// empty mailbox — returns (nil, nil); the composer proceeds without tone
// examples rather than failing the run.
func (b *Builder) Build(ctx context.Context, accessToken string, windowDays int) (model.Retriever, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	sent, err := b.Mail.ListSent(ctx, accessToken, windowDays)
	if err != nil {
		slog.WarnContext(ctx, "tone: list sent mail failed", "error", err)
		return nil, nil
	}
	if len(sent) == 0 {
		return nil, nil
	}

	docs := make([]retriever.Document, 0, len(sent))
	for _, msg := range sent {
		body := retriever.CleanHTML(msg.Body)
		if body == "" {
			continue
		}
		docs = append(docs, retriever.Document{Text: body})
	}

	idx, err := retriever.Build(ctx, b.Embedder, docs, retriever.DefaultTopK)
	if err != nil {
		slog.WarnContext(ctx, "tone: build retriever failed", "error", err)
		return nil, nil
	}
	if idx == nil {
		return nil, nil
	}
	return idx, nil
}
