package provider

import (
	"errors"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func mintJWT(t *testing.T, exp time.Time, scope string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: testKey}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	raw, err := josejwt.Signed(signer).
		Claims(josejwt.Claims{Subject: "user-1", Expiry: josejwt.NewNumericDate(exp)}).
		Claims(map[string]any{"scope": scope}).
		Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return raw
}

func TestFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintJWT(t, exp, "read:users")

	cred, err := FromJWT(raw)
	if err != nil {
		t.Fatalf("FromJWT: %v", err)
	}
	if !cred.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", cred.ExpiresAt, exp)
	}
	if cred.Scope != "read:users" {
		t.Fatalf("Scope = %q", cred.Scope)
	}
	if cred.AccessToken != raw {
		t.Fatalf("AccessToken not preserved")
	}
}

func TestFromJWT_NoExpiry(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := FromJWT(raw); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("err = %v, want ErrNoExpiry", err)
	}
}

func TestFromJWT_Opaque(t *testing.T) {
	if _, err := FromJWT("not-a-jwt"); !errors.Is(err, ErrNoExpiry) {
		t.Fatalf("err = %v, want ErrNoExpiry", err)
	}
}

func TestFromOAuth2Token(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute)
	tok := (&oauth2.Token{AccessToken: "opaque", TokenType: "Bearer", Expiry: exp}).
		WithExtra(map[string]any{"scope": "openid profile"})

	cred, err := FromOAuth2Token(tok)
	if err != nil {
		t.Fatalf("FromOAuth2Token: %v", err)
	}
	if cred.AccessToken != "opaque" || !cred.ExpiresAt.Equal(exp) || cred.Type != "Bearer" || cred.Scope != "openid profile" {
		t.Fatalf("unexpected credential: %+v", cred)
	}
}

func TestFromOAuth2Token_FallsBackToJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := &oauth2.Token{AccessToken: mintJWT(t, exp, "")}

	cred, err := FromOAuth2Token(tok)
	if err != nil {
		t.Fatalf("FromOAuth2Token: %v", err)
	}
	if !cred.ExpiresAt.Equal(exp) {
		t.Fatalf("ExpiresAt = %v, want %v", cred.ExpiresAt, exp)
	}
}

func TestFromOAuth2Token_Empty(t *testing.T) {
	if _, err := FromOAuth2Token(nil); err == nil {
		t.Fatalf("expected error for nil token")
	}
	if _, err := FromOAuth2Token(&oauth2.Token{}); err == nil {
		t.Fatalf("expected error for empty token")
	}
}

func TestCredentialValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"future", Credential{AccessToken: "a", ExpiresAt: now.Add(time.Second)}, true},
		{"exactly now", Credential{AccessToken: "a", ExpiresAt: now}, false},
		{"past", Credential{AccessToken: "a", ExpiresAt: now.Add(-time.Second)}, false},
		{"empty token", Credential{ExpiresAt: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
