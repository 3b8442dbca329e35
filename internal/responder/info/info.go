// Package info implements the information responder: it assembles up to
// three context blocks (an uploaded document, a knowledge-base
// retriever, and a web search) and asks the language model for an
// answer, optionally directing that a knowledge-base file be attached.
package info

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"mailrelay.app/engine/common/embedding"
	"mailrelay.app/engine/common/llm"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/retriever"
)

const webResultLimit = 5

var textFileExtensions = map[string]bool{".txt": true, ".md": true}

var attachDirective = regexp.MustCompile(`\[ATTACH_FILE:\s*([^\r\n\]]+)\]`)

// Input carries everything the information responder needs for one query.
// When DocBytes is non-empty (an uploaded document was supplied, whether
// on the first draft or a regeneration), it takes attachment precedence
// unconditionally over any ATTACH_FILE directive the model emits.
type Input struct {
	Query       string
	DocBytes    []byte
	DocFilename string
	KBRetriever model.Retriever
	KBDirectory string // the user's resolved sanitized KB directory, for attachment lookup
}

// Responder produces an information-responder outcome.
type Responder struct {
	LLM       llm.AgentClient
	Embedder  embedding.Provider
	WebSearch provider.WebSearchProvider
}

// New returns a Responder.
func New(client llm.AgentClient, embedder embedding.Provider, webSearch provider.WebSearchProvider) *Responder {
	return &Responder{LLM: client, Embedder: embedder, WebSearch: webSearch}
}

// Respond generates the response text and resolves any attachment
// directive against the user's KB directory.
func (r *Responder) Respond(ctx context.Context, in Input) (model.AgentOutcome, *model.Attachment, error) {
	docContext := r.documentContext(ctx, in)
	kbContext := r.knowledgeContext(ctx, in)
	webContext := r.webContext(ctx, in.Query)

	prompt := fmt.Sprintf(
		"Answer the following query using the context below.\n\n"+
			"Query: %s\n\n"+
			"Uploaded document context:\n%s\n\n"+
			"Knowledge base context:\n%s\n\n"+
			"Web search context:\n%s\n\n"+
			"If the user explicitly asked for a document, or a knowledge-base file is an essential reference, "+
			"end your response with exactly one final line of the form [ATTACH_FILE: <filename>], where <filename> "+
			"matches a \"Source:\" filename already shown above. Otherwise, do not emit that line.",
		in.Query, docContext, kbContext, webContext,
	)

	resp, err := r.LLM.ChatWithTools(ctx, llm.AgentRequest{
		Messages: []llm.Message{
			{Role: "system", Content: "You are an information responder answering a user's email using the supplied context."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return model.AgentOutcome{Text: fmt.Sprintf("information responder failed: %s", err)}, nil, nil
	}

	text, attachment := r.resolveAttachment(in, resp.Content)
	return model.AgentOutcome{Text: text, AttachmentPending: attachment != nil}, attachment, nil
}

func (r *Responder) documentContext(ctx context.Context, in Input) string {
	if len(in.DocBytes) == 0 {
		return "(no document uploaded)"
	}

	ext := strings.ToLower(filepath.Ext(in.DocFilename))
	if !textFileExtensions[ext] {
		return fmt.Sprintf("binary file %s was provided", in.DocFilename)
	}

	text := strings.ToValidUTF8(string(in.DocBytes), "�")
	idx, err := retriever.Build(ctx, r.Embedder, []retriever.Document{{Text: text, Source: in.DocFilename}}, retriever.DefaultTopK)
	if err != nil || idx == nil {
		return fmt.Sprintf("(could not index uploaded document %s)", in.DocFilename)
	}

	chunks, err := idx.TopK(ctx, in.Query, retriever.DefaultTopK)
	if err != nil || len(chunks) == 0 {
		return fmt.Sprintf("(no relevant content found in %s)", in.DocFilename)
	}

	return formatChunks(chunks)
}

func (r *Responder) knowledgeContext(ctx context.Context, in Input) string {
	if in.KBRetriever == nil {
		return "(no knowledge base available)"
	}

	chunks, err := in.KBRetriever.TopK(ctx, in.Query, retriever.DefaultTopK)
	if err != nil || len(chunks) == 0 {
		return "(no relevant knowledge base content found)"
	}
	return formatChunks(chunks)
}

func (r *Responder) webContext(ctx context.Context, query string) string {
	if r.WebSearch == nil {
		return "(web search unavailable)"
	}

	results, err := r.WebSearch.Search(ctx, query)
	if err != nil {
		return "(web search failed)"
	}
	if len(results) > webResultLimit {
		results = results[:webResultLimit]
	}

	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", res.Title, res.Snippet, res.Link)
	}
	return b.String()
}

func formatChunks(chunks []model.RetrieverChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "Source: %s\nContent: %s\n\n", c.Source, c.Text)
	}
	return b.String()
}

// resolveAttachment strips the ATTACH_FILE directive from text and,
// unless an upload is already pending (which takes precedence
// unconditionally), resolves the named file inside the KB directory.
func (r *Responder) resolveAttachment(in Input, text string) (string, *model.Attachment) {
	match := attachDirective.FindStringSubmatch(text)
	stripped := attachDirective.ReplaceAllString(text, "")
	stripped = strings.TrimRight(stripped, "\n ")

	if len(in.DocBytes) > 0 {
		return stripped, &model.Attachment{Filename: in.DocFilename, Bytes: in.DocBytes}
	}
	if match == nil {
		return stripped, nil
	}

	filename := strings.TrimSpace(match[1])
	data, ok := readKBFile(in.KBDirectory, filename)
	if !ok {
		return stripped + fmt.Sprintf("\n\n(Note: %s was not found and could not be attached.)", filename), nil
	}
	return stripped, &model.Attachment{Filename: filename, Bytes: data}
}

func readKBFile(dir, filename string) ([]byte, bool) {
	if dir == "" || filename == "" || filepath.Base(filename) != filename {
		return nil, false
	}
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, false
	}
	return data, true
}
