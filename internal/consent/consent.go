// Package consent implements the Consent Gate: validating a signed,
// opaque consent token against an expected scope and user identity before
// any privileged operation runs.
package consent

import (
	"errors"
	"time"

	"mailrelay.app/engine/internal/model"
)

// Reason names why validation failed.
type Reason string

const (
	ReasonOK               Reason = ""
	ReasonInvalidSignature Reason = "InvalidSignature"
	ReasonExpired          Reason = "Expired"
	ReasonScopeMismatch    Reason = "ScopeMismatch"
	ReasonUserMismatch     Reason = "UserMismatch"
)

// ErrValidation is the sentinel wrapped by every non-OK validation result.
var ErrValidation = errors.New("consent: validation failed")

// Decoder turns the opaque wire-form token string into a ConsentToken and
// verifies its signature. The engine treats the wire form as a black box;
// decoding and signing belong to the issuer, an external collaborator.
type Decoder interface {
	Decode(raw string) (model.ConsentToken, error)
}

// Gate validates consent tokens against expected scope and user identity.
type Gate struct {
	decoder Decoder
	now     func() time.Time
}

// New builds a Gate using decoder to turn wire-form tokens into
// model.ConsentToken values.
func New(decoder Decoder) *Gate {
	return &Gate{decoder: decoder, now: time.Now}
}

// Validate checks raw against expectedScope and expectedUser, returning the
// parsed token on success.
//
// Every graph invocation calls this once with ScopeEmailRead (mandatory —
// failure aborts the run) and, when a KB token is supplied, once more with
// ScopeKnowledgeBaseRead (optional — failure only downgrades the run, the
// KB retriever is skipped; an absent KB token downgrades the same way).
func (g *Gate) Validate(raw string, expectedScope model.ConsentScope, expectedUser string) (bool, Reason, model.ConsentToken) {
	token, err := g.decoder.Decode(raw)
	if err != nil {
		return false, ReasonInvalidSignature, model.ConsentToken{}
	}

	if g.now().After(token.ExpiresAt) {
		return false, ReasonExpired, token
	}
	if token.Scope != expectedScope {
		return false, ReasonScopeMismatch, token
	}
	if token.UserID != expectedUser {
		return false, ReasonUserMismatch, token
	}

	return true, ReasonOK, token
}
