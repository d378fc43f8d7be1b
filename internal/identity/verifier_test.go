package identity

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSigningKey = "test-signing-key"

func mintToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyResolvesSubjectAndEmail(t *testing.T) {
	v := NewJWTVerifier(testSigningKey)
	token := mintToken(t, testSigningKey, jwt.MapClaims{
		"sub":   "member-1",
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.MemberID != "member-1" {
		t.Errorf("member ID = %s, want member-1", id.MemberID)
	}
	if id.Email != "alice@example.com" {
		t.Errorf("email = %s, want alice@example.com", id.Email)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := NewJWTVerifier(testSigningKey)
	token := mintToken(t, "some-other-key", jwt.MapClaims{
		"sub": "member-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrUnresolvedToken) {
		t.Fatalf("err = %v, want ErrUnresolvedToken", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier(testSigningKey)
	token := mintToken(t, testSigningKey, jwt.MapClaims{
		"sub": "member-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrUnresolvedToken) {
		t.Fatalf("err = %v, want ErrUnresolvedToken", err)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	v := NewJWTVerifier(testSigningKey)
	token := mintToken(t, testSigningKey, jwt.MapClaims{
		"email": "alice@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Verify(token); !errors.Is(err, ErrUnresolvedToken) {
		t.Fatalf("err = %v, want ErrUnresolvedToken", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewJWTVerifier(testSigningKey)

	for _, token := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		if _, err := v.Verify(token); !errors.Is(err, ErrUnresolvedToken) {
			t.Errorf("Verify(%q) err = %v, want ErrUnresolvedToken", token, err)
		}
	}
}
