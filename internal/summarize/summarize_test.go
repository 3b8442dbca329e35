package summarize_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/summarize"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubAgentClient struct {
	response   func(call int) string
	err        error
	concurrent int32
	maxSeen    int32
}

func (s *stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	n := atomic.AddInt32(&s.concurrent, 1)
	defer atomic.AddInt32(&s.concurrent, -1)
	for {
		max := atomic.LoadInt32(&s.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&s.maxSeen, max, n) {
			break
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &llm.AgentResponse{Content: s.response(int(n))}, nil
}
func (s *stubAgentClient) Model() string { return "stub" }

func TestSummarizePreservesOrderAndParsesDecision(t *testing.T) {
	client := &stubAgentClient{response: func(call int) string {
		return `{"summary": "a meeting request", "intent": "Scheduling or rescheduling a meeting or event"}`
	}}
	s := summarize.New(client)

	messages := make([]provider.Message, 10)
	for i := range messages {
		messages[i] = provider.Message{Subject: fmt.Sprintf("subj-%d", i), SenderAddress: "a@x.com"}
	}

	results, err := s.Summarize(context.Background(), messages)
	require.NoError(t, err)
	require.Len(t, results, 10)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("subj-%d", i), r.Subject)
		assert.Equal(t, "a meeting request", r.Summary)
		assert.Equal(t, "Scheduling or rescheduling a meeting or event", r.IntentLabel)
	}
}

func TestSummarizeBoundsConcurrencyAtMaxWorkers(t *testing.T) {
	client := &stubAgentClient{response: func(call int) string {
		return `{"summary": "x", "intent": "Unknown"}`
	}}
	s := summarize.New(client)

	messages := make([]provider.Message, 20)
	_, err := s.Summarize(context.Background(), messages)
	require.NoError(t, err)
	assert.LessOrEqual(t, int(client.maxSeen), summarize.MaxWorkers)
}

func TestSummarizeDegradesSingleMessageOnLLMError(t *testing.T) {
	client := &stubAgentClient{err: fmt.Errorf("provider down")}
	s := summarize.New(client)

	results, err := s.Summarize(context.Background(), []provider.Message{{Subject: "hi"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Unknown", results[0].IntentLabel)
	assert.NotEmpty(t, results[0].Summary)
}

func TestSummarizeDegradesOnUnparseableResponse(t *testing.T) {
	client := &stubAgentClient{response: func(call int) string { return "not json at all" }}
	s := summarize.New(client)

	results, err := s.Summarize(context.Background(), []provider.Message{{Subject: "hi"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Unknown", results[0].IntentLabel)
}
