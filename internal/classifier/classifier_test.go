package classifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/classifier"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/summarize"
)

type stubAgentClient struct {
	resp *llm.AgentResponse
	err  error
}

func (s stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return s.resp, s.err
}
func (s stubAgentClient) Model() string { return "stub" }

func TestClassifyUsesStaticFallbackWithoutLLM(t *testing.T) {
	c := classifier.New(nil)
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "Marketing emails or newsletters"}, nil)
	assert.Equal(t, model.AgentNoResponse, plan.AgentKind)
	assert.Equal(t, 0.7, plan.Confidence)
}

func TestClassifyUsesLLMDecisionWhenParseable(t *testing.T) {
	resp := &llm.AgentResponse{Content: `Sure thing: {"agent_type": "SCHEDULER", "confidence": 0.92, "reasoning": "wants a meeting", "suggested_action": "propose slots"}`}
	c := classifier.New(stubAgentClient{resp: resp})
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "unmapped label"}, nil)
	assert.Equal(t, model.AgentScheduler, plan.AgentKind)
	assert.Equal(t, 0.92, plan.Confidence)
}

func TestClassifyFallsBackOnUnparseableResponse(t *testing.T) {
	resp := &llm.AgentResponse{Content: "I couldn't decide."}
	c := classifier.New(stubAgentClient{resp: resp})
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "Requesting information or clarification"}, nil)
	assert.Equal(t, model.AgentInfoResponder, plan.AgentKind)
	assert.Equal(t, 0.7, plan.Confidence)
}

func TestClassifyFallsBackOnUnknownEnumValue(t *testing.T) {
	resp := &llm.AgentResponse{Content: `{"agent_type": "MYSTERY", "confidence": 0.5, "reasoning": "", "suggested_action": ""}`}
	c := classifier.New(stubAgentClient{resp: resp})
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "some other label"}, nil)
	assert.Equal(t, model.AgentGeneralResponder, plan.AgentKind)
	assert.Equal(t, 0.7, plan.Confidence)
}

func TestClassifyFallsBackOnLLMError(t *testing.T) {
	c := classifier.New(stubAgentClient{err: errors.New("provider down")})
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "Scheduling or rescheduling a meeting or event"}, nil)
	assert.Equal(t, model.AgentScheduler, plan.AgentKind)
}

func TestStaticFallbackCoversSummarizerTaxonomy(t *testing.T) {
	c := classifier.New(nil)

	cases := map[string]model.AgentKind{
		"Scheduling or rescheduling a meeting or event": model.AgentScheduler,
		"Requesting information or clarification":       model.AgentInfoResponder,
		"Marketing emails or newsletters":               model.AgentNoResponse,
		"Informational only - no action required (FYI)": model.AgentNoResponse,
		"Announcing a new product or feature":           model.AgentNoResponse,
		"Shipping, delivery, or order tracking update":  model.AgentNoResponse,
	}
	for label, kind := range cases {
		assert.Contains(t, summarize.IntentLabels, label,
			"fallback key %q must be a label the summarizer can actually produce", label)
		plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: label}, nil)
		assert.Equal(t, kind, plan.AgentKind, "label %q", label)
	}
}

func TestClassifyUnknownIntentLabelDefaultsToGeneral(t *testing.T) {
	c := classifier.New(nil)
	plan := c.Classify(context.Background(), model.EmailContext{IntentLabel: "something never seen before"}, nil)
	require.Equal(t, model.AgentGeneralResponder, plan.AgentKind)
}
