// Package summarize runs the upstream per-email classifier pass over an
// unread-mail batch: a bounded worker pool calls the language model once
// per message to produce a short summary and pick an intent label before
// the message ever reaches the orchestration graph.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/textutil"
)

// MaxWorkers bounds the concurrent LLM calls issued for one batch.
const MaxWorkers = 5

// bodyPreviewLimit caps how much of a message body is sent to the model.
const bodyPreviewLimit = 1000

// IntentLabels is the default 26-label taxonomy fed into the summarizer
// prompt. A message's label feeds model.EmailContext.IntentLabel, which
// the intent classifier's static fallback map keys off of.
var IntentLabels = []string{
	"Scheduling or rescheduling a meeting or event",
	"Following up on a previous conversation or task",
	"Requesting information or clarification",
	"Providing requested information or sharing details",
	"Requesting approval for a task or document",
	"Declining or cancelling a meeting or request",
	"Invoices, payments, or billing-related matters",
	"Raising or addressing a support or technical issue",
	"Marketing emails or newsletters",
	"Informational only - no action required (FYI)",
	"Providing a status update on a project or task",
	"Email that needs a decision or input",
	"Sending or requesting a quote or proposal",
	"Negotiating a job or business offer",
	"Reporting a bug or product issue",
	"Requesting a new feature or improvement",
	"Recruitment or HR-related message",
	"Scheduling or confirming a job interview",
	"Requesting a referral or recommendation",
	"Operations or compliance-related matter",
	"Legal, policy, or regulatory updates",
	"Announcing a new product or feature",
	"Shipping, delivery, or order tracking update",
	"Invitation to an event or webinar",
	"Thank you note or congratulatory message",
	"Personal message not related to work",
}

const unknownIntent = "Unknown"

// Summarizer produces a {summary, intent} pair per unread message.
type Summarizer struct {
	LLM llm.AgentClient
}

// New returns a Summarizer driven by client.
func New(client llm.AgentClient) *Summarizer {
	return &Summarizer{LLM: client}
}

type decision struct {
	Summary string `json:"summary"`
	Intent  string `json:"intent"`
}

// Summarize returns one EmailContext per input message,
// in the same order, each carrying a populated Summary and IntentLabel.
// Up to MaxWorkers messages are summarized concurrently; a per-message
// failure degrades that single message to a fixed summary and the
// "Unknown" intent rather than failing the whole batch.
func (s *Summarizer) Summarize(ctx context.Context, messages []provider.Message) ([]model.EmailContext, error) {
	results := make([]model.EmailContext, len(messages))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(MaxWorkers)

	for i, msg := range messages {
		i, msg := i, msg
		group.Go(func() error {
			results[i] = s.summarizeOne(gctx, msg)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Summarizer) summarizeOne(ctx context.Context, msg provider.Message) model.EmailContext {
	email := model.EmailContext{
		Subject:       msg.Subject,
		SenderDisplay: msg.SenderDisplay,
		SenderAddress: msg.SenderAddress,
		Body:          msg.Body,
		Snippet:       msg.Snippet,
	}

	body := msg.Body
	if len(body) > bodyPreviewLimit {
		body = body[:bodyPreviewLimit]
	}

	prompt := fmt.Sprintf(
		"Analyze the following email and return a single JSON object.\n"+
			"From: %s\nSubject: %s\nBody preview: %s\n\n"+
			"1. Write a concise \"summary\" of the email.\n"+
			"2. Pick the best-fitting \"intent\" from this list: %v\n\n"+
			"JSON output: {\"summary\": \"...\", \"intent\": \"...\"}",
		msg.SenderAddress, msg.Subject, body, IntentLabels,
	)

	resp, err := s.LLM.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You triage inbound email into a short summary and an intent label."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		email.Summary = "Failed to summarize this email."
		email.IntentLabel = unknownIntent
		return email
	}

	d, ok := parseDecision(textutil.StripThinkBlock(resp.Content))
	if !ok || d.Summary == "" {
		email.Summary = "Failed to parse summary from AI response."
		email.IntentLabel = unknownIntent
		return email
	}

	email.Summary = d.Summary
	email.IntentLabel = d.Intent
	if email.IntentLabel == "" {
		email.IntentLabel = unknownIntent
	}
	return email
}

func parseDecision(text string) (decision, bool) {
	block, ok := textutil.ExtractJSONObject(text)
	if !ok {
		return decision{}, false
	}
	var d decision
	if err := json.Unmarshal([]byte(block), &d); err != nil {
		return decision{}, false
	}
	return d, true
}
