package scheduler_test

import (
	"context"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/scheduler"
)

type stubCalendar struct {
	busy   []provider.BusyRange
	events []provider.EventRef
}

func (s *stubCalendar) FreeBusy(ctx context.Context, accessToken string, from, to time.Time) ([]provider.BusyRange, error) {
	return s.busy, nil
}
func (s *stubCalendar) Insert(ctx context.Context, accessToken string, event provider.NewEvent) (provider.EventRef, error) {
	ref := provider.EventRef{ID: "evt-1", Summary: event.Summary, Start: event.Start, End: event.End, Link: "https://cal/evt-1"}
	s.events = append(s.events, ref)
	return ref, nil
}
func (s *stubCalendar) ListUpcoming(ctx context.Context, accessToken string, limit int) ([]provider.EventRef, error) {
	return s.events, nil
}
func (s *stubCalendar) Update(ctx context.Context, accessToken, eventID string, start, end time.Time) (provider.EventRef, error) {
	return provider.EventRef{ID: eventID, Start: start, End: end, Link: "https://cal/" + eventID}, nil
}
func (s *stubCalendar) Delete(ctx context.Context, accessToken, eventID string) error {
	return nil
}

// scriptedClient replays a fixed sequence of responses, one per call.
type scriptedClient struct {
	responses []*llm.AgentResponse
	calls     int
}

func (c *scriptedClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	if c.calls >= len(c.responses) {
		return &llm.AgentResponse{Content: "done"}, nil
	}
	resp := c.responses[c.calls]
	c.calls++
	return resp, nil
}
func (c *scriptedClient) Model() string { return "stub" }

// alwaysToolCallClient never stops calling tools, used to exercise the
// iteration-limit termination path. Each call carries different arguments,
// so the doom-loop detector does not end the run first.
type alwaysToolCallClient struct{ calls int }

func (c *alwaysToolCallClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	c.calls++
	if req.Tools == nil {
		return &llm.AgentResponse{Content: "synthesized after limit"}, nil
	}
	return &llm.AgentResponse{
		ToolCalls: []llm.ToolCall{{ID: fmt.Sprintf("call-%d", c.calls), Name: "list_upcoming", Arguments: fmt.Sprintf("{\"limit\":%d}", c.calls)}},
	}, nil
}
func (c *alwaysToolCallClient) Model() string { return "stub" }

func mustParse(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

var _ = Describe("Scheduler", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Run", func() {
		Context("model stops calling tools", func() {
			It("returns the final response text as the outcome", func() {
				client := &scriptedClient{responses: []*llm.AgentResponse{
					{ToolCalls: []llm.ToolCall{{ID: "1", Name: "check_availability", Arguments: `{"start":"2026-08-01T00:00:00Z","end":"2026-08-08T00:00:00Z"}`}}},
					{Content: "Scheduled for tomorrow at 5pm."},
				}}
				sched := scheduler.New(client, scheduler.NewTools(&stubCalendar{}, "token"), 10)

				out, err := sched.Run(ctx, model.EmailContext{Body: "let's meet tomorrow at 5pm"}, "", "sender@x.com", "user@x.com")

				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal("Scheduled for tomorrow at 5pm."))
			})
		})

		Context("model never stops calling tools", func() {
			It("terminates in finite steps via the iteration limit", func() {
				client := &alwaysToolCallClient{}
				sched := scheduler.New(client, scheduler.NewTools(&stubCalendar{}, "token"), 10)

				out, err := sched.Run(ctx, model.EmailContext{Body: "find me a meeting"}, "", "sender@x.com", "user@x.com")

				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal("synthesized after limit"))
				// 10 iterations plus one forced synthesis call.
				Expect(client.calls).To(BeNumerically("<=", 11))
			})
		})

		Context("model repeats the same tool call", func() {
			It("detects the doom loop and forces synthesis early", func() {
				repeated := llm.ToolCall{ID: "x", Name: "list_upcoming", Arguments: `{"limit":5}`}
				client := &scriptedClient{responses: []*llm.AgentResponse{
					{ToolCalls: []llm.ToolCall{repeated}},
					{ToolCalls: []llm.ToolCall{repeated}},
					{ToolCalls: []llm.ToolCall{repeated}},
				}}
				sched := scheduler.New(client, scheduler.NewTools(&stubCalendar{}, "token"), 10)

				out, err := sched.Run(ctx, model.EmailContext{Body: "what's on my calendar"}, "", "sender@x.com", "user@x.com")

				Expect(err).NotTo(HaveOccurred())
				Expect(out).NotTo(BeEmpty())
				Expect(client.calls).To(BeNumerically("<=", 4))
			})
		})
	})

	Describe("Tools", func() {
		Context("check_availability then schedule", func() {
			It("round-trips busy ranges and a created event link", func() {
				cal := &stubCalendar{busy: []provider.BusyRange{
					{Start: mustParse("2026-08-01T17:00:00Z"), End: mustParse("2026-08-01T17:30:00Z")},
				}}
				tools := scheduler.NewTools(cal, "token")

				avail, err := tools.Execute(ctx, "check_availability", `{"start":"2026-08-01T00:00:00Z","end":"2026-08-08T00:00:00Z"}`)
				Expect(err).NotTo(HaveOccurred())
				Expect(avail).To(ContainSubstring("busy ranges"))

				result, err := tools.Execute(ctx, "schedule", `{"summary":"Sync","start":"2026-08-01T09:00:00Z","end":"2026-08-01T10:00:00Z"}`)
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(ContainSubstring("scheduled"))
			})
		})

		Context("list_upcoming on an empty calendar", func() {
			It("normalizes the empty result to a readable string", func() {
				tools := scheduler.NewTools(&stubCalendar{}, "token")

				result, err := tools.Execute(ctx, "list_upcoming", `{}`)

				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal("no upcoming events found"))
			})
		})
	})
})
