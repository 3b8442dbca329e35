// Package knowledge builds the ephemeral knowledge-base retriever: a
// vector index over the text extracted from a user's uploaded PDF, DOCX,
// TXT, and MD files, gated behind the knowledge-base-read consent scope.
package knowledge

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mailrelay.app/engine/common/embedding"
	"mailrelay.app/engine/internal/model"
	"mailrelay.app/engine/internal/provider"
	"mailrelay.app/engine/internal/retriever"
)

// SanitizeDir turns a user email into the directory-safe key under which
// their knowledge-base files live: "@" becomes "_at_" and "." becomes
// "_dot_". No escaping of escapes; DesanitizeDir is the only inverse and
// the engine otherwise treats the key as opaque once built.
func SanitizeDir(email string) string {
	replacer := strings.NewReplacer("@", "_at_", ".", "_dot_")
	return replacer.Replace(email)
}

// DesanitizeDir recovers the email address behind a directory key built
// by SanitizeDir.
func DesanitizeDir(dir string) string {
	replacer := strings.NewReplacer("_at_", "@", "_dot_", ".")
	return replacer.Replace(dir)
}

var textExtensions = map[string]bool{".txt": true, ".md": true}
var extractableExtensions = map[string]bool{".pdf": true, ".docx": true}

// Builder builds knowledge-base retrievers from a per-user file tree.
type Builder struct {
	BaseDir   string
	Extractor provider.DocumentExtractor
	Embedder  embedding.Provider
}

// New returns a Builder rooted at baseDir, the directory under which each
// user's sanitized subdirectory lives.
func New(baseDir string, extractor provider.DocumentExtractor, embedder embedding.Provider) *Builder {
	return &Builder{BaseDir: baseDir, Extractor: extractor, Embedder: embedder}
}

// Build resolves the user's sanitized directory and indexes every file it
// can extract text from. hasConsent must be true or Build returns
// immediately without touching the filesystem — invariant: if KB consent
// is absent, no file under the KB directory is read. An empty directory,
// a missing directory, or all-failing files yields (nil, nil).
func (b *Builder) Build(ctx context.Context, userEmail string, hasConsent bool) (model.Retriever, error) {
	if !hasConsent {
		return nil, nil
	}

	dir := filepath.Join(b.BaseDir, SanitizeDir(userEmail))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		slog.WarnContext(ctx, "knowledge: read directory failed", "dir", dir, "error", err)
		return nil, nil
	}

	docs := make([]retriever.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		text, ok := b.extractFile(ctx, dir, entry)
		if !ok || text == "" {
			continue
		}
		docs = append(docs, retriever.Document{Text: text, Source: entry.Name()})
	}

	idx, err := retriever.Build(ctx, b.Embedder, docs, retriever.DefaultTopK)
	if err != nil {
		slog.WarnContext(ctx, "knowledge: build retriever failed", "error", err)
		return nil, nil
	}
	if idx == nil {
		return nil, nil
	}
	return idx, nil
}

func (b *Builder) extractFile(ctx context.Context, dir string, entry fs.DirEntry) (string, bool) {
	ext := strings.ToLower(filepath.Ext(entry.Name()))
	path := filepath.Join(dir, entry.Name())

	switch {
	case textExtensions[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		return strings.ToValidUTF8(string(data), "�"), true

	case extractableExtensions[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", false
		}
		text, err := b.Extractor.Extract(entry.Name(), data)
		if err != nil {
			slog.WarnContext(ctx, "knowledge: extract file failed", "file", entry.Name(), "error", err)
			return "", false
		}
		return text, true

	default:
		return "", false
	}
}
