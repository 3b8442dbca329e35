// Package retriever builds the ephemeral, per-request in-memory vector
// retrievers shared by the tone index builder and the knowledge-base index
// builder: chunk a set of documents with overlap, embed each chunk, and
// serve top-k cosine-similarity queries against the resulting index. Chunks
// carry the chunk_size/overlap convention (1000/100) applied uniformly
// across sent-mail, knowledge-base, and uploaded-document chunking.
package retriever

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"mailrelay.app/engine/common/embedding"
	"mailrelay.app/engine/internal/model"
)

const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the character overlap between adjacent chunks.
	DefaultChunkOverlap = 100
	// DefaultTopK is the number of chunks returned per query.
	DefaultTopK = 3
)

// Document is one source document to index: a sent-mail body, a
// knowledge-base file's extracted text, or an uploaded document's decoded
// text. Source carries the originating filename (empty for tone chunks,
// which have no filename to annotate).
type Document struct {
	Text   string
	Source string
}

var htmlStyleOrScript = regexp.MustCompile(`(?is)<(style|script)[^>]*>.*?</(style|script)>`)
var htmlTag = regexp.MustCompile(`<[^>]*>`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanHTML strips style/script blocks and tags and collapses whitespace,
// so sent-mail HTML bodies embed as clean prose rather than markup noise.
func CleanHTML(body string) string {
	cleaned := htmlStyleOrScript.ReplaceAllString(body, " ")
	cleaned = htmlTag.ReplaceAllString(cleaned, " ")
	replacer := strings.NewReplacer(
		"&nbsp;", " ", "&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", "\"", "&#39;", "'",
	)
	cleaned = replacer.Replace(cleaned)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
}

// chunk struct holds one indexed chunk's text, source annotation, and
// embedding vector.
type chunk struct {
	text   string
	source string
	vector []float64
}

// Index is an in-memory cosine-similarity vector index over chunked
// documents. It satisfies model.Retriever. Index is owned by the graph
// state for the lifetime of one request and is never persisted.
type Index struct {
	chunks   []chunk
	embedder embedding.Provider
	topK     int
}

var _ model.Retriever = (*Index)(nil)

// Split breaks text into overlapping chunks of approximately chunkSize
// characters, each overlapping the previous by overlap characters. This is
// the Go-native equivalent of a RecursiveCharacterTextSplitter: it prefers
// to break on paragraph or sentence boundaries near the target size before
// falling back to a hard cut.
func Split(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		cut := end
		if idx := strings.LastIndexAny(text[start:end], "\n."); idx > chunkSize/2 {
			cut = start + idx + 1
		}

		chunks = append(chunks, strings.TrimSpace(text[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// Build chunks every document, embeds each chunk with embedder, and returns
// an Index. It returns (nil, nil) — not an error — if docs is empty or
// every chunk fails to embed, matching the tone/KB builders' "any failure
// returns nil, caller proceeds without this retriever" contract.
func Build(ctx context.Context, embedder embedding.Provider, docs []Document, topK int) (*Index, error) {
	if embedder == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	idx := &Index{topK: topK, embedder: embedder}

	for _, doc := range docs {
		for _, text := range Split(doc.Text, DefaultChunkSize, DefaultChunkOverlap) {
			if text == "" {
				continue
			}
			vec, err := embedder.Embed(ctx, text)
			if err != nil {
				continue // one bad chunk does not fail the whole index
			}
			idx.chunks = append(idx.chunks, chunk{text: text, source: doc.Source, vector: vec})
		}
	}

	if len(idx.chunks) == 0 {
		return nil, nil
	}
	return idx, nil
}

// TopK embeds query and returns the k most similar chunks by cosine
// similarity, highest first.
func (idx *Index) TopK(ctx context.Context, query string, k int) ([]model.RetrieverChunk, error) {
	if idx == nil || len(idx.chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = idx.topK
	}

	qvec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retriever: embed query: %w", err)
	}

	scored := make([]model.RetrieverChunk, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		scored = append(scored, model.RetrieverChunk{
			Text:   c.text,
			Source: c.source,
			Score:  cosineSimilarity(qvec, c.vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
