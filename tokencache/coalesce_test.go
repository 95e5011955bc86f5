package tokencache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/tokencache-go/auth0err"
	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/provider"
	"github.com/ggoodman/tokencache-go/provider/providertest"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fetchOutcome struct {
	tok string
	err auth0err.Error
}

func fetchConcurrently(c *Cache, n int, scope string) <-chan fetchOutcome {
	out := make(chan fetchOutcome, n)
	for i := 0; i < n; i++ {
		go func() {
			r := c.Fetch(context.Background(), aud, scope)
			tok, _ := r.Value()
			out <- fetchOutcome{tok: tok, err: r.Err()}
		}()
	}
	return out
}

func TestFetch_CoalescesConcurrentMisses(t *testing.T) {
	const n = 32
	p := providertest.New(providertest.WithGate())
	c := newTestCache(t, p)

	out := fetchConcurrently(c, n, "read:users")
	waitFor(t, "all callers to join", func() bool {
		return testutil.ToFloat64(c.metrics.coalesced) == n-1
	})
	p.Release()

	var first string
	for i := 0; i < n; i++ {
		o := <-out
		if o.err != nil {
			t.Fatalf("Fetch err = %v", o.err)
		}
		if i == 0 {
			first = o.tok
		} else if o.tok != first {
			t.Fatalf("callers got different tokens: %q vs %q", o.tok, first)
		}
	}
	if p.Count() != 1 {
		t.Fatalf("provider called %d times, want 1", p.Count())
	}
}

func TestFetch_CoalescedCallersShareError(t *testing.T) {
	const n = 16
	p := providertest.New(
		providertest.WithGate(),
		providertest.WithError(&provider.Failure{StatusCode: 503, Description: "upstream unavailable"}),
	)
	c := newTestCache(t, p)

	out := fetchConcurrently(c, n, "read:users")
	waitFor(t, "all callers to join", func() bool {
		return testutil.ToFloat64(c.metrics.coalesced) == n-1
	})
	p.Release()

	var first auth0err.Error
	for i := 0; i < n; i++ {
		o := <-out
		if _, ok := o.err.(*auth0err.ServerError); !ok {
			t.Fatalf("Fetch err = %T %v, want *ServerError", o.err, o.err)
		}
		if i == 0 {
			first = o.err
		} else if o.err != first {
			t.Fatalf("callers got different error values")
		}
	}
	if p.Count() != 1 {
		t.Fatalf("provider called %d times, want 1", p.Count())
	}
}

func TestFetch_DifferentKeysDoNotBlock(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	p := provider.Func(func(ctx context.Context, audience, scope string) (provider.Credential, error) {
		if scope == "slow" {
			close(slowStarted)
			<-releaseSlow
		}
		return provider.Credential{AccessToken: scope, ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	c := newTestCache(t, p)

	slowDone := make(chan string, 1)
	go func() {
		tok, _ := c.Fetch(context.Background(), aud, "slow").Value()
		slowDone <- tok
	}()
	<-slowStarted

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if got := mustToken(t, c, ctx, aud, "fast"); got != "fast" {
		t.Fatalf("Fetch(fast) = %q", got)
	}

	close(releaseSlow)
	if got := <-slowDone; got != "slow" {
		t.Fatalf("Fetch(slow) = %q", got)
	}
}

func TestFetch_CancelledWaiterDoesNotCancelSharedCall(t *testing.T) {
	p := providertest.New(providertest.WithGate())
	c := newTestCache(t, p)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctxA, aud, "openid").Unwrap()
		errA <- err
	}()
	<-p.Started()

	tokB := make(chan fetchOutcome, 1)
	go func() {
		r := c.Fetch(context.Background(), aud, "openid")
		tok, _ := r.Value()
		tokB <- fetchOutcome{tok: tok, err: r.Err()}
	}()
	waitFor(t, "second caller to join", func() bool {
		return testutil.ToFloat64(c.metrics.coalesced) == 1
	})

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v", err)
	}

	p.Release()
	o := <-tokB
	if o.err != nil || o.tok == "" {
		t.Fatalf("remaining caller got %q, %v", o.tok, o.err)
	}
	if p.Count() != 1 {
		t.Fatalf("provider called %d times, want 1", p.Count())
	}
}

func TestFetch_LastWaiterCancellationCancelsProvider(t *testing.T) {
	started := make(chan struct{})
	providerErr := make(chan error, 1)
	p := provider.Func(func(ctx context.Context, audience, scope string) (provider.Credential, error) {
		close(started)
		<-ctx.Done()
		providerErr <- ctx.Err()
		return provider.Credential{}, ctx.Err()
	})
	c := newTestCache(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, aud, "openid").Unwrap()
		done <- err
	}()
	<-started
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch err = %v", err)
	}
	select {
	case err := <-providerErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("provider ctx err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("provider context was not cancelled")
	}
	waitFor(t, "in-flight registry to drain", func() bool {
		_, ok := c.inflight.Load(credstore.Key{Audience: aud, Scope: "openid"})
		return !ok
	})
}

func TestFetch_AbandonedFetchStillStoresSuccess(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	p := provider.Func(func(ctx context.Context, audience, scope string) (provider.Credential, error) {
		once.Do(func() { close(started) })
		<-proceed
		return provider.Credential{AccessToken: "late", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})
	c := newTestCache(t, p)
	key := credstore.Key{Audience: aud, Scope: "openid"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx, aud, "openid").Unwrap()
		done <- err
	}()
	<-started
	cancel()
	if err := <-done; err == nil {
		t.Fatalf("expected cancellation error")
	}

	close(proceed)
	waitFor(t, "late credential to be stored", func() bool {
		cred, _ := c.store.Get(context.Background(), key)
		return cred != nil && cred.AccessToken == "late"
	})
	if got := mustToken(t, c, context.Background(), aud, "openid"); got != "late" {
		t.Fatalf("Fetch = %q, want late", got)
	}
}

func TestFetch_DeadlineWhileWaitingIsTimeout(t *testing.T) {
	p := providertest.New(providertest.WithGate())
	c := newTestCache(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Fetch(ctx, aud, "openid").Err()
	if _, ok := err.(*auth0err.Timeout); !ok {
		t.Fatalf("err = %T %v, want *Timeout", err, err)
	}
	p.Release()
	waitFor(t, "in-flight registry to drain", func() bool {
		_, ok := c.inflight.Load(credstore.Key{Audience: aud, Scope: "openid"})
		return !ok
	})
}

func TestFetch_ConcurrentStoreAndFetch(t *testing.T) {
	p := providertest.New()
	c := newTestCache(t, p)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = c.Store(ctx, aud, "openid profile", provider.Credential{AccessToken: "stored", ExpiresAt: time.Now().Add(time.Hour)})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := c.Fetch(ctx, aud, "profile").Unwrap(); err != nil {
					t.Errorf("Fetch: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
