package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoExpiry is returned when a credential's lifetime cannot be determined.
var ErrNoExpiry = errors.New("provider: credential has no expiry")

// FromOAuth2Token converts an oauth2 token into a Credential. When the token
// carries no expiry the access token is inspected as a JWT and its exp claim
// is used instead.
func FromOAuth2Token(tok *oauth2.Token) (Credential, error) {
	if tok == nil || tok.AccessToken == "" {
		return Credential{}, errors.New("provider: empty oauth2 token")
	}
	cred := Credential{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
		Type:        tok.Type(),
	}
	if s, ok := tok.Extra("scope").(string); ok {
		cred.Scope = s
	}
	if cred.ExpiresAt.IsZero() {
		exp, err := jwtExpiry(tok.AccessToken)
		if err != nil {
			return Credential{}, err
		}
		cred.ExpiresAt = exp
	}
	return cred, nil
}

// FromJWT builds a Credential from a JWT access token, taking ExpiresAt from
// its exp claim. The signature is not verified: the token is opaque to this
// process and only forwarded to the resource server, which verifies it.
func FromJWT(accessToken string) (Credential, error) {
	claims, err := parseAccessClaims(accessToken)
	if err != nil {
		return Credential{}, err
	}
	return Credential{
		AccessToken: accessToken,
		ExpiresAt:   claims.ExpiresAt.Time,
		Type:        "Bearer",
		Scope:       claims.Scope,
	}, nil
}

// accessClaims are the RFC 9068 access token claims this package reads.
type accessClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

func parseAccessClaims(accessToken string) (*accessClaims, error) {
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoExpiry, err)
	}
	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiry
	}
	return &claims, nil
}

func jwtExpiry(accessToken string) (time.Time, error) {
	claims, err := parseAccessClaims(accessToken)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}
