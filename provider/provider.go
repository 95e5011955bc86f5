package provider

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/tokencache-go/auth0err"
)

// TokenProvider fetches fresh credentials for an (audience, scope) pair.
// Implementations must be safe for concurrent use.
type TokenProvider interface {
	FetchCredentials(ctx context.Context, audience, scope string) (Credential, error)
}

// Func adapts a plain function to TokenProvider.
type Func func(ctx context.Context, audience, scope string) (Credential, error)

func (f Func) FetchCredentials(ctx context.Context, audience, scope string) (Credential, error) {
	return f(ctx, audience, scope)
}

// Credential is an access token with its absolute expiry. Values are never
// mutated once stored; a refresh produces a new Credential.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	// Type is the token type reported by the server, usually "Bearer".
	Type string `json:"token_type,omitempty"`
	// Scope is the scope actually granted, which may differ from the
	// requested one.
	Scope string `json:"scope,omitempty"`
}

// Valid reports whether the credential may still be handed out at now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// Failure describes an unsuccessful credential exchange in terms the error
// mapper understands. Providers should return a *Failure (optionally
// wrapping the transport error in Err) whenever they know more than a bare
// Go error conveys.
type Failure struct {
	// Code is the machine readable error code, e.g. "mfa_required".
	Code string
	// Description is the human readable error_description.
	Description string
	// StatusCode is the HTTP status of the response, zero if none arrived.
	StatusCode int
	// Timeout is set when the request exceeded its deadline.
	Timeout bool
	// Unreachable is set when no response reached the client.
	Unreachable bool
	// Claims holds any extra values from the error body, such as the scope
	// needed to complete an MFA challenge.
	Claims map[string]any
	// FieldErrors are field-level validation problems.
	FieldErrors []auth0err.FieldError
	// Err is the underlying transport error, if any.
	Err error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString("provider: ")
	switch {
	case f.Code != "" && f.Description != "":
		b.WriteString(f.Code + ": " + f.Description)
	case f.Code != "":
		b.WriteString(f.Code)
	case f.Description != "":
		b.WriteString(f.Description)
	case f.Err != nil:
		b.WriteString(f.Err.Error())
	default:
		b.WriteString("credential exchange failed")
	}
	if f.StatusCode != 0 {
		b.WriteString(" (status " + strconv.Itoa(f.StatusCode) + ")")
	}
	return b.String()
}

func (f *Failure) Unwrap() error { return f.Err }

// ClaimString returns Claims[name] as a string. String slices are joined
// with single spaces so scope-like claims come back in their wire form.
func (f *Failure) ClaimString(name string) string {
	if f == nil || f.Claims == nil {
		return ""
	}
	switch v := f.Claims[name].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}
