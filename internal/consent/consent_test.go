package consent_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"mailrelay.app/engine/internal/consent"
	"mailrelay.app/engine/internal/model"
)

type stubDecoder struct {
	token model.ConsentToken
	err   error
}

func (s stubDecoder) Decode(raw string) (model.ConsentToken, error) {
	return s.token, s.err
}

func TestGateValidate(t *testing.T) {
	base := model.ConsentToken{
		UserID:    "user-1",
		Scope:     model.ScopeEmailRead,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	t.Run("ok", func(t *testing.T) {
		g := consent.New(stubDecoder{token: base})
		ok, reason, token := g.Validate("raw", model.ScopeEmailRead, "user-1")
		assert.True(t, ok)
		assert.Equal(t, consent.ReasonOK, reason)
		assert.Equal(t, "user-1", token.UserID)
	})

	t.Run("invalid signature", func(t *testing.T) {
		g := consent.New(stubDecoder{err: errors.New("bad signature")})
		ok, reason, _ := g.Validate("raw", model.ScopeEmailRead, "user-1")
		assert.False(t, ok)
		assert.Equal(t, consent.ReasonInvalidSignature, reason)
	})

	t.Run("expired", func(t *testing.T) {
		expired := base
		expired.ExpiresAt = time.Now().Add(-time.Hour)
		g := consent.New(stubDecoder{token: expired})
		ok, reason, _ := g.Validate("raw", model.ScopeEmailRead, "user-1")
		assert.False(t, ok)
		assert.Equal(t, consent.ReasonExpired, reason)
	})

	t.Run("scope mismatch", func(t *testing.T) {
		g := consent.New(stubDecoder{token: base})
		ok, reason, _ := g.Validate("raw", model.ScopeKnowledgeBaseRead, "user-1")
		assert.False(t, ok)
		assert.Equal(t, consent.ReasonScopeMismatch, reason)
	})

	t.Run("user mismatch", func(t *testing.T) {
		g := consent.New(stubDecoder{token: base})
		ok, reason, _ := g.Validate("raw", model.ScopeEmailRead, "someone-else")
		assert.False(t, ok)
		assert.Equal(t, consent.ReasonUserMismatch, reason)
	})
}
