// Package provider defines the boundary between the token cache and the
// authentication client that actually obtains credentials.
//
// A TokenProvider performs the (possibly slow, possibly failing) network
// exchange for an audience and scope. This package does not implement that
// exchange; it supplies the Credential value type, the Failure error type
// providers use to describe what went wrong, and helpers that turn common
// token shapes (golang.org/x/oauth2 tokens, raw JWT access tokens) into
// Credentials.
package provider
