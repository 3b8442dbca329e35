package info_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/responder/info"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1, 0}, nil
}

type stubWebSearch struct{ results []provider.WebResult }

func (s stubWebSearch) Search(ctx context.Context, query string) ([]provider.WebResult, error) {
	return s.results, nil
}

type stubRetriever struct{ chunks []model.RetrieverChunk }

func (s stubRetriever) TopK(ctx context.Context, query string, k int) ([]model.RetrieverChunk, error) {
	return s.chunks, nil
}

type stubAgentClient struct{ content string }

func (s stubAgentClient) ChatWithTools(ctx context.Context, req llm.AgentRequest) (*llm.AgentResponse, error) {
	return &llm.AgentResponse{Content: s.content}, nil
}
func (s stubAgentClient) Model() string { return "stub" }

var _ = Describe("Responder", func() {
	var ctx context.Context

	newResponder := func(llmContent string) *info.Responder {
		return info.New(stubAgentClient{content: llmContent}, stubEmbedder{}, stubWebSearch{})
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Respond", func() {
		Context("model emits a directive naming an existing KB file", func() {
			It("attaches the file and strips the directive from the text", func() {
				dir := GinkgoT().TempDir()
				Expect(os.WriteFile(filepath.Join(dir, "policy.pdf"), []byte("policy bytes"), 0o644)).To(Succeed())

				r := newResponder("Here is the policy you asked about.\n[ATTACH_FILE: policy.pdf]")

				outcome, attachment, err := r.Respond(ctx, info.Input{
					Query:       "send me the policy",
					KBRetriever: stubRetriever{chunks: []model.RetrieverChunk{{Text: "policy text", Source: "policy.pdf"}}},
					KBDirectory: dir,
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(attachment).NotTo(BeNil())
				Expect(attachment.Filename).To(Equal("policy.pdf"))
				Expect(outcome.Text).NotTo(ContainSubstring("[ATTACH_FILE:"))
			})
		})

		Context("an uploaded document is present", func() {
			It("takes precedence over any directive the model emits", func() {
				r := newResponder("See attached.\n[ATTACH_FILE: other.pdf]")

				outcome, attachment, err := r.Respond(ctx, info.Input{
					Query:       "what does this say",
					DocBytes:    []byte("uploaded bytes"),
					DocFilename: "uploaded.txt",
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(attachment).NotTo(BeNil())
				Expect(attachment.Filename).To(Equal("uploaded.txt"))
				Expect(outcome.Text).NotTo(ContainSubstring("[ATTACH_FILE:"))
			})
		})

		Context("directive names a file that doesn't exist", func() {
			It("drops the tag and appends a not-found note", func() {
				r := newResponder("Here you go.\n[ATTACH_FILE: missing.pdf]")

				outcome, attachment, err := r.Respond(ctx, info.Input{
					Query:       "send it",
					KBDirectory: GinkgoT().TempDir(),
				})

				Expect(err).NotTo(HaveOccurred())
				Expect(attachment).To(BeNil())
				Expect(outcome.Text).To(ContainSubstring("not found"))
				Expect(outcome.Text).NotTo(ContainSubstring("[ATTACH_FILE:"))
			})
		})

		Context("model emits no directive", func() {
			It("returns the text unchanged with no attachment", func() {
				r := newResponder("No attachment needed here.")

				outcome, attachment, err := r.Respond(ctx, info.Input{Query: "simple question"})

				Expect(err).NotTo(HaveOccurred())
				Expect(attachment).To(BeNil())
				Expect(outcome.Text).To(Equal("No attachment needed here."))
			})
		})
	})
})
