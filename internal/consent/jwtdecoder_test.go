package consent_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mailrelay.app/engine/internal/consent"
	"mailrelay.app/engine/internal/model"
)

func signToken(t *testing.T, secret []byte, userID string, scope model.ConsentScope, expiresAt time.Time) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"scope":   string(scope),
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestJWTDecoderRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	raw := signToken(t, secret, "user-1", model.ScopeEmailRead, time.Now().Add(time.Hour))

	decoder := consent.NewJWTDecoder(secret)
	token, err := decoder.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.UserID)
	assert.Equal(t, model.ScopeEmailRead, token.Scope)
}

func TestJWTDecoderRejectsWrongSecret(t *testing.T) {
	raw := signToken(t, []byte("secret-a"), "user-1", model.ScopeEmailRead, time.Now().Add(time.Hour))

	decoder := consent.NewJWTDecoder([]byte("secret-b"))
	_, err := decoder.Decode(raw)
	assert.Error(t, err)
}

func TestJWTDecoderDecodesExpiredTokenForGateToReject(t *testing.T) {
	secret := []byte("test-secret")
	raw := signToken(t, secret, "user-1", model.ScopeEmailRead, time.Now().Add(-time.Hour))

	// An expired but correctly signed token must decode; expiry is the
	// gate's call, not the decoder's.
	decoder := consent.NewJWTDecoder(secret)
	token, err := decoder.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", token.UserID)

	gate := consent.New(decoder)
	ok, reason, _ := gate.Validate(raw, model.ScopeEmailRead, "user-1")
	assert.False(t, ok)
	assert.Equal(t, consent.ReasonExpired, reason)
}

func TestJWTDecoderIntegratesWithGate(t *testing.T) {
	secret := []byte("test-secret")
	raw := signToken(t, secret, "user-1", model.ScopeEmailRead, time.Now().Add(time.Hour))

	gate := consent.New(consent.NewJWTDecoder(secret))
	ok, reason, token := gate.Validate(raw, model.ScopeEmailRead, "user-1")
	assert.True(t, ok)
	assert.Equal(t, consent.ReasonOK, reason)
	assert.Equal(t, "user-1", token.UserID)
}
