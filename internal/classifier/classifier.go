// Package classifier implements the intent classifier: a static
// intent-label fallback map refined by a language-model call that
// returns a free-text JSON object, parsed by scanning for the outermost
// balanced brace pair rather than relying on any provider's strict
// schema mode.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/textutil"
)

// staticFallback maps a known intent label to its coarse agent kind. Keys
// are labels from the summarizer's taxonomy (summarize.IntentLabels); any
// label not present here falls through to AgentGeneralResponder.
var staticFallback = map[string]model.AgentKind{
	"Scheduling or rescheduling a meeting or event": model.AgentScheduler,
	"Requesting information or clarification":       model.AgentInfoResponder,
	"Marketing emails or newsletters":               model.AgentNoResponse,
	"Informational only - no action required (FYI)": model.AgentNoResponse,
	"Announcing a new product or feature":           model.AgentNoResponse,
	"Shipping, delivery, or order tracking update":  model.AgentNoResponse,
}

const staticFallbackConfidence = 0.7

// Classifier produces a ResponsePlan for an email.
type Classifier struct {
	LLM llm.AgentClient
}

// New returns a Classifier driven by the given agent client.
func New(client llm.AgentClient) *Classifier {
	return &Classifier{LLM: client}
}

type llmDecision struct {
	AgentType       string  `json:"agent_type"`
	Confidence      float64 `json:"confidence"`
	Reasoning       string  `json:"reasoning"`
	SuggestedAction string  `json:"suggested_action"`
}

var agentTypeToKind = map[string]model.AgentKind{
	"SCHEDULER":         model.AgentScheduler,
	"INFO_RESPONDER":    model.AgentInfoResponder,
	"GENERAL_RESPONDER": model.AgentGeneralResponder,
	"NO_RESPONSE":       model.AgentNoResponse,
}

// Classify returns a ResponsePlan for email, optionally informed by
// conversation history. It always succeeds: an LLM failure or unparseable
// response falls back to the static intent map at confidence 0.7.
func (c *Classifier) Classify(ctx context.Context, email model.EmailContext, history []model.ConversationMessage) model.ResponsePlan {
	fallback := c.staticPlan(email.IntentLabel)

	if c.LLM == nil {
		return fallback
	}

	resp, err := c.LLM.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: buildPrompt(email, history)},
		},
	})
	if err != nil {
		slog.WarnContext(ctx, "classifier: llm call failed, using static fallback", "error", err)
		return fallback
	}

	decision, ok := parseDecision(resp.Content)
	if !ok {
		slog.WarnContext(ctx, "classifier: could not parse llm response, using static fallback")
		return fallback
	}

	kind, ok := agentTypeToKind[decision.AgentType]
	if !ok {
		slog.WarnContext(ctx, "classifier: unknown agent_type, using static fallback", "agent_type", decision.AgentType)
		return fallback
	}

	return model.ResponsePlan{
		AgentKind:       kind,
		Confidence:      decision.Confidence,
		Reasoning:       decision.Reasoning,
		SuggestedAction: decision.SuggestedAction,
	}
}

func (c *Classifier) staticPlan(intentLabel string) model.ResponsePlan {
	kind, ok := staticFallback[intentLabel]
	if !ok {
		kind = model.AgentGeneralResponder
	}
	return model.ResponsePlan{
		AgentKind:  kind,
		Confidence: staticFallbackConfidence,
		Reasoning:  fmt.Sprintf("static fallback for intent label %q", intentLabel),
	}
}

func buildPrompt(email model.EmailContext, history []model.ConversationMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "From: %s <%s>\n", email.SenderDisplay, email.SenderAddress)
	fmt.Fprintf(&b, "Intent label: %s\n", email.IntentLabel)
	fmt.Fprintf(&b, "Body:\n%s\n", email.Body)
	if len(history) > 0 {
		b.WriteString("\nConversation history:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "- %s: %s\n", m.From, m.Snippet)
		}
	}
	b.WriteString("\nRespond with a single JSON object: {\"agent_type\": \"SCHEDULER|INFO_RESPONDER|GENERAL_RESPONDER|NO_RESPONSE\", \"confidence\": 0.0-1.0, \"reasoning\": \"...\", \"suggested_action\": \"...\"}")
	return b.String()
}

// parseDecision scans text for the outermost balanced {...} block and
// unmarshals it. The model is free to wrap the JSON in prose or a
// markdown fence; only the braces matter.
func parseDecision(text string) (llmDecision, bool) {
	block, ok := textutil.ExtractJSONObject(text)
	if !ok {
		return llmDecision{}, false
	}

	var decision llmDecision
	if err := json.Unmarshal([]byte(block), &decision); err != nil {
		return llmDecision{}, false
	}
	return decision, true
}

const classifierSystemPrompt = `You classify an inbound email into one of four handler categories based on its intent. Respond with exactly one JSON object and nothing else.`
