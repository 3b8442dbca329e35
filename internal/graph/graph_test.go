package graph_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/classifier"
	"mailrelay.app/engine/internal/composer"
	"mailrelay.app/engine/internal/consent"
	"mailrelay.app/engine/internal/engineerr"
	"mailrelay.app/engine/internal/graph"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/responder/general"
	"mailrelay.app/engine/internal/responder/info"
)

type stubDecoder struct {
	token model.ConsentToken
	err   error
}

func (s stubDecoder) Decode(raw string) (model.ConsentToken, error) {
	return s.token, s.err
}

type stubAgentClient struct{ content string }

func (s stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return &llm.AgentResponse{Content: s.content}, nil
}
func (s stubAgentClient) Model() string { return "stub" }

type stubCalendar struct{}

func (stubCalendar) FreeBusy(ctx context.Context, accessToken string, from, to time.Time) ([]provider.BusyRange, error) {
	return nil, nil
}
func (stubCalendar) Insert(ctx context.Context, accessToken string, ev provider.NewEvent) (provider.EventRef, error) {
	return provider.EventRef{}, nil
}
func (stubCalendar) ListUpcoming(ctx context.Context, accessToken string, limit int) ([]provider.EventRef, error) {
	return nil, nil
}
func (stubCalendar) Update(ctx context.Context, accessToken, eventID string, start, end time.Time) (provider.EventRef, error) {
	return provider.EventRef{}, nil
}
func (stubCalendar) Delete(ctx context.Context, accessToken, eventID string) error { return nil }

var _ = Describe("Graph", func() {
	var ctx context.Context

	// newGraph wires a Graph whose single stubbed LLM answers every
	// sub-agent with llmContent; no tone or knowledge builder is attached.
	newGraph := func(llmContent string) *graph.Graph {
		decoder := stubDecoder{token: model.ConsentToken{
			UserID:    "user-1",
			Scope:     model.ScopeEmailRead,
			ExpiresAt: time.Now().Add(time.Hour),
		}}
		client := stubAgentClient{content: llmContent}

		return graph.New(
			consent.New(decoder),
			nil,
			nil,
			classifier.New(client),
			stubCalendar{},
			client,
			info.New(client, nil, nil),
			general.New(client),
			composer.New(client),
			0,
		)
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Run", func() {
		Context("classifier routes to no-response", func() {
			It("bypasses the composer and returns the fixed sentinel", func() {
				g := newGraph(`{"agent_type":"NO_RESPONSE","confidence":0.9,"reasoning":"promo","suggested_action":"ignore"}`)

				resp, err := g.Run(ctx, graph.Request{
					Email:        model.EmailContext{Subject: "50% off!", Body: "buy now", IntentLabel: "Marketing emails or newsletters"},
					UserID:       "user-1",
					UserAddress:  "user@example.com",
					PrimaryToken: "tok",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.ResponseType).To(Equal(model.ResponseNoResponse))
				Expect(resp.Message).To(Equal(model.NoResponseSentinel))
				Expect(resp.Attachment).To(BeNil())
			})
		})

		Context("primary consent fails validation", func() {
			It("aborts before any node with a consent-denied error", func() {
				g := newGraph("unused")

				_, err := g.Run(ctx, graph.Request{
					Email:        model.EmailContext{Body: "hi"},
					UserID:       "someone-else",
					PrimaryToken: "tok",
				})

				Expect(err).To(HaveOccurred())
				Expect(engineerr.Is(err, engineerr.KindConsentDenied)).To(BeTrue())
				Expect(err).To(MatchError(engineerr.ErrConsentDenied))
			})
		})

		Context("classifier falls through to the general responder", func() {
			It("reaches the composer and produces a draft", func() {
				g := newGraph("Thanks for your note. Best, User")

				resp, err := g.Run(ctx, graph.Request{
					Email:        model.EmailContext{Subject: "hello", Body: "just saying hi", SenderDisplay: "Jane Doe", SenderAddress: "jane@x.com"},
					UserID:       "user-1",
					UserAddress:  "user@example.com",
					PrimaryToken: "tok",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.ResponseType).To(Equal(model.ResponseGeneralResponder))
				Expect(resp.Message).NotTo(BeEmpty())
			})
		})

		Context("run repeated with a deterministic stub", func() {
			It("yields an identical draft both times", func() {
				g := newGraph("Thanks, see you then.")
				req := graph.Request{
					Email:        model.EmailContext{Subject: "hello", Body: "see you", SenderDisplay: "Jane Doe", SenderAddress: "jane@x.com"},
					UserID:       "user-1",
					UserAddress:  "user@example.com",
					PrimaryToken: "tok",
				}

				first, err := g.Run(ctx, req)
				Expect(err).NotTo(HaveOccurred())
				second, err := g.Run(ctx, req)
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(Equal(first))
			})
		})

		Context("an uploaded document accompanies an info request", func() {
			It("attaches the upload and strips any directive from the message", func() {
				g := newGraph(`{"agent_type":"INFO_RESPONDER","confidence":0.8,"reasoning":"asks for doc","suggested_action":"answer"}`)

				resp, err := g.Run(ctx, graph.Request{
					Email:        model.EmailContext{Subject: "the report", Body: "can you check the attached report?"},
					UserID:       "user-1",
					UserAddress:  "user@example.com",
					PrimaryToken: "tok",
					DocBytes:     []byte("report body"),
					DocFilename:  "report.txt",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(resp.ResponseType).To(Equal(model.ResponseInfoResponder))
				Expect(resp.Attachment).NotTo(BeNil())
				Expect(resp.Attachment.Filename).To(Equal("report.txt"))
				Expect(resp.Message).NotTo(ContainSubstring("[ATTACH_FILE:"))
			})
		})
	})
})
