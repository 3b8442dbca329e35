// Package engineerr defines the orchestration engine's error taxonomy: a
// typed wrapper carrying the enumerated Kind values the graph and its
// callers branch on.
package engineerr

import "errors"

// Kind classifies an EngineError for callers that need to branch on it
// (e.g. the graph deciding whether to abort or degrade).
type Kind string

const (
	// KindConsentDenied aborts the run: invalid, expired, or mismatched
	// token on the mandatory email-read scope.
	KindConsentDenied Kind = "ConsentDenied"
	// KindKBConsentMissing silently downgrades a run: no KB retrieval,
	// run continues.
	KindKBConsentMissing Kind = "KBConsentMissing"
	// KindProviderFailure marks a mail/calendar/LLM/embedding/web error;
	// the failing node still produces an agent outcome describing the
	// failure so the composer can run.
	KindProviderFailure Kind = "ProviderFailure"
	// KindToolExecutionError marks a scheduler tool call failure; it
	// becomes a tool-result message, not an aborted run.
	KindToolExecutionError Kind = "ToolExecutionError"
	// KindParseFailure marks a classifier JSON response that couldn't be
	// parsed; the static intent fallback is used instead.
	KindParseFailure Kind = "ParseFailure"
	// KindCatastrophic marks any other uncaught failure in the graph.
	KindCatastrophic Kind = "CatastrophicFailure"
)

// EngineError is the engine's error wrapper. Kind lets callers branch
// without string matching; Unwrap preserves errors.Is/errors.As over the
// wrapped cause.
type EngineError struct {
	Err  error
	Kind Kind
}

func (e *EngineError) Error() string {
	return e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// New wraps err with the given Kind.
func New(kind Kind, err error) *EngineError {
	return &EngineError{Err: err, Kind: kind}
}

// ErrConsentDenied is a sentinel compared via errors.Is when the specific
// wrapped cause doesn't matter, only that consent was denied.
var ErrConsentDenied = errors.New("consent denied")

// ErrKBConsentMissing is the sentinel wrapped when KB consent is absent.
var ErrKBConsentMissing = errors.New("knowledge base consent missing")

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}
	return false
}
