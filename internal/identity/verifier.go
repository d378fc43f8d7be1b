package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnresolvedToken = errors.New("token could not be resolved to an identity")

// Identity is a resolved bearer token: who the caller claims to be,
// independent of whether they hold a live session.
type Identity struct {
	MemberID string
	Email    string
}

// Verifier resolves an opaque bearer token to an identity. The session
// gate treats the verifier as a black box and fails closed on any error.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// JWTVerifier validates HMAC-signed tokens issued by the identity
// provider.
type JWTVerifier struct {
	signingKey []byte
}

func NewJWTVerifier(signingKey string) *JWTVerifier {
	return &JWTVerifier{signingKey: []byte(signingKey)}
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verify parses and validates the token signature and expiry. Every
// failure collapses into ErrUnresolvedToken so the gate has a single
// fail-closed path.
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrUnresolvedToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return nil, ErrUnresolvedToken
	}

	return &Identity{MemberID: c.Subject, Email: c.Email}, nil
}
