// Package model holds the data types that flow through one orchestration
// run: the email being processed, the consent capability that authorizes
// it, the plan the classifier produces, and the draft the graph returns.
package model

import (
	"context"
	"time"
)

// EmailContext is the immutable input to one graph invocation.
type EmailContext struct {
	Subject       string
	SenderDisplay string
	SenderAddress string
	Body          string
	Snippet       string
	Summary       string
	IntentLabel   string
}

// ConsentScope names a permission granted by a ConsentToken.
type ConsentScope string

const (
	// ScopeEmailRead is mandatory to orchestrate at all.
	ScopeEmailRead ConsentScope = "vault.read.email"
	// ScopeKnowledgeBaseRead is optional; its absence downgrades rather
	// than aborts a run.
	ScopeKnowledgeBaseRead ConsentScope = "knowledge.base.read"
)

// ConsentToken is the parsed form of an opaque signed consent string. The
// wire form is a black box to everything except the consent gate's
// validator.
type ConsentToken struct {
	UserID    string
	AgentID   string
	Scope     ConsentScope
	IssuedAt  time.Time
	ExpiresAt time.Time
	Signature string
}

// AgentKind is the handler a ResponsePlan routes an email to.
type AgentKind string

const (
	AgentScheduler        AgentKind = "SCHEDULER"
	AgentInfoResponder    AgentKind = "INFO_RESPONDER"
	AgentGeneralResponder AgentKind = "GENERAL_RESPONDER"
	AgentNoResponse       AgentKind = "NO_RESPONSE"
)

// ResponsePlan is produced by the Intent Classifier and consumed by the
// orchestration graph's router.
type ResponsePlan struct {
	AgentKind       AgentKind
	Confidence      float64
	Reasoning       string
	SuggestedAction string
}

// RetrieverChunk is one result returned by a Retriever's top-k query.
type RetrieverChunk struct {
	Text   string
	Source string // originating filename, empty for tone chunks
	Score  float64
}

// Retriever exposes top_k(query) over an in-memory vector index built for
// exactly one request. It is never persisted across requests.
type Retriever interface {
	TopK(ctx context.Context, query string, k int) ([]RetrieverChunk, error)
}

// AgentOutcome is the free-form text a sub-agent produces, consumed by the
// Composer. It is transient and never returned to the caller directly.
type AgentOutcome struct {
	Text              string
	AttachmentPending bool
}

// ResponseType is the outward-facing classification of a DraftResponse.
type ResponseType string

const (
	ResponseScheduler        ResponseType = "scheduler"
	ResponseInfoResponder    ResponseType = "info_responder"
	ResponseGeneralResponder ResponseType = "general_responder"
	ResponseNoResponse       ResponseType = "no_response"
	ResponseError            ResponseType = "error"
)

// NoResponseSentinel is the fixed message returned for ResponseNoResponse.
const NoResponseSentinel = "This email doesn't require a response."

// Attachment is an outgoing email attachment; its bytes are owned by the
// DraftResponse that carries it.
type Attachment struct {
	Filename string
	Bytes    []byte
}

// DraftResponse is returned to the caller and persisted externally.
type DraftResponse struct {
	ResponseType ResponseType
	Message      string
	Reasoning    string
	Confidence   float64
	Attachment   *Attachment
}

// KnowledgeFile is a single file under a user's knowledge-base directory.
type KnowledgeFile struct {
	Filename      string
	Bytes         []byte
	ExtractedText string
}

// ConversationMessage is one entry in a mail thread's history, provided as
// context only.
type ConversationMessage struct {
	From    string
	Snippet string
}
