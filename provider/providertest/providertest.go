// Package providertest provides a scripted provider.TokenProvider for tests.
package providertest

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/tokencache-go/provider"
)

// Call records one FetchCredentials invocation.
type Call struct {
	Audience string
	Scope    string
}

// ResponseFunc produces the outcome of the n-th call (1-based).
type ResponseFunc func(ctx context.Context, n int, audience, scope string) (provider.Credential, error)

// Provider is a provider.TokenProvider whose responses are scripted by the
// test. It records every call and can hold calls open until released.
type Provider struct {
	respond ResponseFunc

	mu    sync.Mutex
	calls []Call
	gate  chan struct{}

	count   atomic.Int64
	started chan struct{}
}

// Option configures Provider.
type Option func(*Provider)

// WithResponse sets the function that decides each call's outcome.
func WithResponse(fn ResponseFunc) Option {
	return func(p *Provider) {
		if fn != nil {
			p.respond = fn
		}
	}
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return WithResponse(func(context.Context, int, string, string) (provider.Credential, error) {
		return provider.Credential{}, err
	})
}

// WithGate holds every call until Release is called or the call's context
// ends.
func WithGate() Option {
	return func(p *Provider) { p.gate = make(chan struct{}) }
}

// New creates a Provider. By default every call succeeds with a token named
// "<audience>|<scope>|<n>" valid for one hour.
func New(opts ...Option) *Provider {
	p := &Provider{
		respond: func(_ context.Context, n int, audience, scope string) (provider.Credential, error) {
			return provider.Credential{
				AccessToken: audience + "|" + scope + "|" + strconv.Itoa(n),
				ExpiresAt:   time.Now().Add(time.Hour),
				Type:        "Bearer",
				Scope:       scope,
			}, nil
		},
		started: make(chan struct{}, 1024),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) FetchCredentials(ctx context.Context, audience, scope string) (provider.Credential, error) {
	n := int(p.count.Add(1))
	p.mu.Lock()
	p.calls = append(p.calls, Call{Audience: audience, Scope: scope})
	gate := p.gate
	p.mu.Unlock()

	select {
	case p.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return provider.Credential{}, ctx.Err()
		}
	}
	return p.respond(ctx, n, audience, scope)
}

// Release unblocks all calls held by WithGate, current and future.
func (p *Provider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gate != nil {
		select {
		case <-p.gate:
		default:
			close(p.gate)
		}
	}
}

// Started returns a channel that receives once per call as it begins.
func (p *Provider) Started() <-chan struct{} { return p.started }

// Count returns the number of calls so far.
func (p *Provider) Count() int { return int(p.count.Load()) }

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}
