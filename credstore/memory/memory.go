// Package memory provides the default in-process credstore.Store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/provider"
)

// Store keeps credentials in a sync.Map keyed by credstore.Key. Each value
// is an immutable *provider.Credential; Set swaps the pointer, so a reader
// sees either the old or the new credential, never a mix.
type Store struct {
	entries sync.Map // credstore.Key -> *provider.Credential
	now     func() time.Time
}

var _ credstore.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithClock overrides the time source used to drop expired entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context, key credstore.Key) (*provider.Credential, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, nil
	}
	cred := v.(*provider.Credential)
	if !s.now().Before(cred.ExpiresAt) {
		// Only remove the value we looked at; a concurrent Set may already
		// have replaced it.
		s.entries.CompareAndDelete(key, v)
		return nil, nil
	}
	out := *cred
	return &out, nil
}

func (s *Store) Set(ctx context.Context, key credstore.Key, cred provider.Credential) error {
	if err := key.Validate(); err != nil {
		return err
	}
	c := cred
	s.entries.Store(key, &c)
	return nil
}

func (s *Store) Delete(ctx context.Context, audience string) error {
	s.entries.Range(func(k, _ any) bool {
		if audience == "" || k.(credstore.Key).Audience == audience {
			s.entries.Delete(k)
		}
		return true
	})
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// dropped.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Store) Close() error {
	s.entries.Clear()
	return nil
}
