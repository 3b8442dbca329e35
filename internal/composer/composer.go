// Package composer re-renders a sub-agent's outcome into a polished
// email body in the user's own tone, using the sender's display name
// as a greeting and, when available, recent sent-mail examples as
// style guidance.
package composer

import (
	"context"
	"fmt"
	"strings"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/retriever"
	"mailrelay.app/engine/internal/textutil"
)

// Composer renders the final email body.
type Composer struct {
	LLM llm.AgentClient
}

// New returns a Composer.
func New(client llm.AgentClient) *Composer {
	return &Composer{LLM: client}
}

// Compose renders outcome.Text into a final email body addressed to
// email's sender, signed as userName when set, and optionally styled by
// toneRetriever.
func (c *Composer) Compose(ctx context.Context, outcome model.AgentOutcome, email model.EmailContext, userName string, toneRetriever model.Retriever) (string, error) {
	recipient := recipientName(email.SenderDisplay, email.SenderAddress)

	styleGuidance := "(no tone examples available)"
	if toneRetriever != nil {
		if chunks, err := toneRetriever.TopK(ctx, email.Body, retriever.DefaultTopK); err == nil && len(chunks) > 0 {
			var b strings.Builder
			for _, chunk := range chunks {
				b.WriteString(chunk.Text)
				b.WriteString("\n---\n")
			}
			styleGuidance = b.String()
		}
	}

	signoff := "Sign off naturally."
	if userName != "" {
		signoff = fmt.Sprintf("Sign the email as %s.", userName)
	}

	prompt := fmt.Sprintf(
		"Write the final email body.\n\n"+
			"Greet the recipient by name: %s.\n"+
			"Incorporate the following content naturally:\n%s\n\n"+
			"Style guidance from the user's own recent sent emails:\n%s\n\n"+
			"%s Emit the email body only, with no subject line and no leading think block.",
		recipient, outcome.Text, styleGuidance, signoff,
	)

	resp, err := c.LLM.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You compose the final body of a reply email in the user's own voice."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("composer: %w", err)
	}

	return textutil.StripThinkBlock(resp.Content), nil
}

// recipientName extracts a display name from the sender header. It never
// returns a string containing "@": when the display name is empty or the
// header has no separate display portion, it falls back to "there".
func recipientName(senderDisplay, senderAddress string) string {
	name := strings.TrimSpace(senderDisplay)
	if name == "" || strings.Contains(name, "@") {
		return "there"
	}
	if name == senderAddress {
		return "there"
	}
	return name
}
