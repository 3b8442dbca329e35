// Package textutil holds small text-shaping helpers shared by the
// sub-agents that post-process a language model's raw response text.
package textutil

import (
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)^\s*<think>.*?</think>`)

// StripThinkBlock removes a leading <think>...</think> block some models
// emit before their real answer.
func StripThinkBlock(text string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(text, ""))
}

// ExtractJSONObject scans text for the outermost balanced {...} block and
// returns it verbatim. Models are free to wrap JSON in prose or a markdown
// fence; only the braces matter. Returns ok=false if no balanced block
// is found.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
