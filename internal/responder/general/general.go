// Package general implements the general responder: a plain
// professional reply generated from the email fields plus an optional
// user hint and conversation history, with no tool use or retrieval.
package general

import (
	"context"
	"fmt"
	"strings"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/textutil"
)

const bodyPreviewLimit = 500

// Responder produces a plain-text general reply.
type Responder struct {
	LLM llm.AgentClient
}

// New returns a Responder.
func New(client llm.AgentClient) *Responder {
	return &Responder{LLM: client}
}

// Respond generates the reply text.
func (r *Responder) Respond(ctx context.Context, email model.EmailContext, userHint string, history []model.ConversationMessage) model.AgentOutcome {
	prompt := buildPrompt(email, userHint, history)

	resp, err := r.LLM.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You write a plain, professional reply to an email. Reply with the body text only."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return model.AgentOutcome{Text: fmt.Sprintf("general responder failed: %s", err)}
	}

	return model.AgentOutcome{Text: textutil.StripThinkBlock(resp.Content)}
}

func buildPrompt(email model.EmailContext, userHint string, history []model.ConversationMessage) string {
	preview := email.Body
	if len(preview) > bodyPreviewLimit {
		preview = preview[:bodyPreviewLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\n", email.SenderDisplay, email.SenderAddress)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Body preview: %s\n", preview)

	if len(history) > 0 {
		b.WriteString("\nConversation history:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "- %s: %s\n", m.From, m.Snippet)
		}
	}

	if userHint != "" {
		fmt.Fprintf(&b, "\nUser instruction: %s\n", userHint)
	}

	return b.String()
}
