package general_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/responder/general"
)

type stubAgentClient struct{ content string }

func (s stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return &llm.AgentResponse{Content: s.content}, nil
}
func (s stubAgentClient) Model() string { return "stub" }

var _ = Describe("Responder", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Respond", func() {
		Context("model prefixes its answer with a think block", func() {
			It("strips the block and returns the reply alone", func() {
				r := general.New(stubAgentClient{content: "<think>scratch work</think>Thanks for your note, I'll follow up soon."})

				outcome := r.Respond(ctx, model.EmailContext{Subject: "Hi", Body: "just checking in"}, "", nil)

				Expect(outcome.Text).To(Equal("Thanks for your note, I'll follow up soon."))
			})
		})

		Context("email body exceeds the preview limit", func() {
			It("still produces a reply from the truncated prompt", func() {
				r := general.New(stubAgentClient{content: "ok"})

				outcome := r.Respond(ctx, model.EmailContext{Body: strings.Repeat("a", 1000)}, "", nil)

				Expect(outcome.Text).To(Equal("ok"))
			})
		})
	})
})
