// Package credstore defines where the token cache keeps credentials.
//
// A Store maps a (audience, scope) Key to the current provider.Credential
// for that key. Stores hold whole Credential values: a Set replaces the
// previous value for the key in one step, so readers never see an access
// token paired with another token's expiry. Expiry policy belongs to the
// cache; stores may drop entries whose ExpiresAt has passed but must never
// return a credential for a different key.
//
// The memory subpackage is the default, process-local store. The redis
// subpackage lets several processes share one cache.
package credstore

import (
	"context"
	"errors"

	"github.com/ggoodman/tokencache-go/provider"
)

// Key identifies a cache entry. Distinct scope strings are distinct keys,
// even when they name overlapping permission sets.
type Key struct {
	Audience string
	Scope    string
}

func (k Key) String() string { return k.Audience + " " + k.Scope }

// Store persists credentials by Key. Implementations must be safe for
// concurrent use and must not serialize unrelated keys behind one lock for
// longer than an in-memory map operation.
type Store interface {
	// Get returns the credential stored under key. A miss returns (nil, nil);
	// an error is reserved for genuine backend failures.
	Get(ctx context.Context, key Key) (*provider.Credential, error)

	// Set stores cred under key, superseding any previous value.
	Set(ctx context.Context, key Key, cred provider.Credential) error

	// Delete removes every credential for audience. An empty audience removes
	// all credentials.
	Delete(ctx context.Context, audience string) error

	// Close releases backend resources.
	Close() error
}

// ErrInvalidKey is returned for a Key with an empty audience.
var ErrInvalidKey = errors.New("credstore: audience is required")

// Validate reports whether key can be stored.
func (k Key) Validate() error {
	if k.Audience == "" {
		return ErrInvalidKey
	}
	return nil
}
