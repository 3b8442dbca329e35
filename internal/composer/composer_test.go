package composer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/composer"
	"mailrelay.app/engine/internal/model"
)

type stubAgentClient struct{ content string }

func (s stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return &llm.AgentResponse{Content: s.content}, nil
}
func (s stubAgentClient) Model() string { return "stub" }

// recordingClient answers with content and keeps the last user prompt it
// was sent, so a test can check the greeting the composer asked for.
type recordingClient struct {
	content    string
	lastPrompt string
}

func (r *recordingClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	r.lastPrompt = req.Messages[len(req.Messages)-1].Content
	return &llm.AgentResponse{Content: r.content}, nil
}
func (r *recordingClient) Model() string { return "stub" }

func TestComposeGreetsByDisplayName(t *testing.T) {
	client := &recordingClient{content: "Hi Jane Doe, thanks for reaching out. Best, User"}
	c := composer.New(client)
	body, err := c.Compose(context.Background(), model.AgentOutcome{Text: "confirmed for tomorrow"},
		model.EmailContext{SenderDisplay: "Jane Doe", SenderAddress: "jane@x.com"}, "Sam", nil)
	require.NoError(t, err)
	assert.Contains(t, client.lastPrompt, "Greet the recipient by name: Jane Doe.")
	assert.Contains(t, body, "Jane Doe")
}

func TestComposeGreetingNeverContainsAtSign(t *testing.T) {
	client := &recordingClient{content: "placeholder"}
	c := composer.New(client)
	for _, email := range []model.EmailContext{
		{SenderDisplay: "", SenderAddress: "jane@x.com"},
		{SenderDisplay: "jane@x.com", SenderAddress: "jane@x.com"},
	} {
		_, err := c.Compose(context.Background(), model.AgentOutcome{Text: "x"}, email, "", nil)
		require.NoError(t, err)
		assert.Contains(t, client.lastPrompt, "Greet the recipient by name: there.")
	}
}

type stubTone struct{ chunks []model.RetrieverChunk }

func (s stubTone) TopK(ctx context.Context, query string, k int) ([]model.RetrieverChunk, error) {
	return s.chunks, nil
}

func TestComposeStripsThinkBlock(t *testing.T) {
	c := composer.New(stubAgentClient{content: "<think>internal</think>Final body text."})
	body, err := c.Compose(context.Background(), model.AgentOutcome{Text: "hello"}, model.EmailContext{SenderDisplay: "Jane"}, "Sam", stubTone{})
	require.NoError(t, err)
	assert.Equal(t, "Final body text.", body)
}
