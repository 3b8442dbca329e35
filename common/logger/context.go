package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment, so a single run's
// identifiers land on every log line without threading them through every
// function signature.
type LogFields struct {
	RunID      *string // per-request orchestration run identifier
	UserEmail  *string // owning user's address (pre-sanitization)
	MessageID  *string // source mail provider message id
	ThreadID   *string // source mail provider thread id
	AgentKind  *string // ResponsePlan.agent_kind once classified
	Component  string  // component name, e.g. "engine.graph", "engine.scheduler"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.RunID != nil {
		result.RunID = new.RunID
	}
	if new.UserEmail != nil {
		result.UserEmail = new.UserEmail
	}
	if new.MessageID != nil {
		result.MessageID = new.MessageID
	}
	if new.ThreadID != nil {
		result.ThreadID = new.ThreadID
	}
	if new.AgentKind != nil {
		result.AgentKind = new.AgentKind
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}
