package consent

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"mailrelay.app/engine/internal/model"
)

// consentClaims is the JWT claim set a consent token carries. The issuer
// (an external collaborator) signs these; the engine only verifies and
// decodes them.
type consentClaims struct {
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id"`
	Scope   string `json:"scope"`
	jwt.RegisteredClaims
}

// JWTDecoder implements Decoder by verifying an HS256-signed JWT and
// mapping its claims onto model.ConsentToken. This is the engine's
// default decoder for the opaque wire-form token described in the
// external interface contract; an issuer may supply a different signing
// scheme by implementing Decoder itself.
type JWTDecoder struct {
	secret []byte
}

// NewJWTDecoder builds a JWTDecoder that verifies tokens with secret.
func NewJWTDecoder(secret []byte) *JWTDecoder {
	return &JWTDecoder{secret: secret}
}

func (d *JWTDecoder) Decode(raw string) (model.ConsentToken, error) {
	// Claims validation is skipped here so an expired-but-correctly-signed
	// token still decodes; the gate checks expiry itself and reports it as
	// Expired rather than InvalidSignature.
	var claims consentClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("consent: unexpected signing method %v", t.Header["alg"])
		}
		return d.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return model.ConsentToken{}, fmt.Errorf("consent: decode token: %w", err)
	}
	if !token.Valid {
		return model.ConsentToken{}, fmt.Errorf("consent: invalid token")
	}

	var issuedAt, expiresAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return model.ConsentToken{
		UserID:    claims.UserID,
		AgentID:   claims.AgentID,
		Scope:     model.ConsentScope(claims.Scope),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: token.Raw,
	}, nil
}
