// Package storetest holds a conformance suite every credstore.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/provider"
)

// StoreFactory creates a new Store instance for testing.
type StoreFactory func(t *testing.T) credstore.Store

// RunStoreTests runs the complete Store test suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("Get_MissReturnsNil", func(t *testing.T) { testMiss(t, factory) })
	t.Run("Set_ThenGet", func(t *testing.T) { testSetGet(t, factory) })
	t.Run("Set_SupersedesPrevious", func(t *testing.T) { testSupersede(t, factory) })
	t.Run("Get_ExpiredNotReturned", func(t *testing.T) { testExpired(t, factory) })
	t.Run("Keys_Isolated", func(t *testing.T) { testIsolation(t, factory) })
	t.Run("Delete_Audience", func(t *testing.T) { testDeleteAudience(t, factory) })
	t.Run("Delete_All", func(t *testing.T) { testDeleteAll(t, factory) })
	t.Run("Set_RejectsEmptyAudience", func(t *testing.T) { testInvalidKey(t, factory) })
	t.Run("Concurrent_NoTornReads", func(t *testing.T) { testNoTornReads(t, factory) })
}

func newStore(t *testing.T, factory StoreFactory) credstore.Store {
	t.Helper()
	s := factory(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// audience is unique per test so shared backends do not interfere.
func audience(t *testing.T, suffix string) string {
	return "https://" + t.Name() + suffix + "/api/v2/"
}

func cred(token string, ttl time.Duration) provider.Credential {
	return provider.Credential{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(ttl).Round(time.Millisecond),
		Type:        "Bearer",
		Scope:       "openid",
	}
}

func mustGet(t *testing.T, s credstore.Store, key credstore.Key) *provider.Credential {
	t.Helper()
	got, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	return got
}

func mustSet(t *testing.T, s credstore.Store, key credstore.Key, c provider.Credential) {
	t.Helper()
	if err := s.Set(context.Background(), key, c); err != nil {
		t.Fatalf("Set(%s): %v", key, err)
	}
}

func testMiss(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	if got := mustGet(t, s, credstore.Key{Audience: audience(t, ""), Scope: "openid"}); got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}

func testSetGet(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	key := credstore.Key{Audience: audience(t, ""), Scope: "openid profile"}
	want := cred("tok-1", time.Hour)
	mustSet(t, s, key, want)

	got := mustGet(t, s, key)
	if got == nil {
		t.Fatalf("expected hit")
	}
	if got.AccessToken != want.AccessToken || !got.ExpiresAt.Equal(want.ExpiresAt) || got.Type != want.Type || got.Scope != want.Scope {
		t.Fatalf("Get() = %+v, want %+v", *got, want)
	}
}

func testSupersede(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	key := credstore.Key{Audience: audience(t, ""), Scope: "openid"}
	mustSet(t, s, key, cred("old", time.Hour))
	mustSet(t, s, key, cred("new", 2*time.Hour))

	got := mustGet(t, s, key)
	if got == nil || got.AccessToken != "new" {
		t.Fatalf("Get() = %+v, want new", got)
	}
}

func testExpired(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	key := credstore.Key{Audience: audience(t, ""), Scope: "openid"}
	mustSet(t, s, key, cred("stale", -time.Second))
	if got := mustGet(t, s, key); got != nil {
		t.Fatalf("expired credential returned: %+v", got)
	}
}

func testIsolation(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	a := audience(t, "a")
	b := audience(t, "b")
	mustSet(t, s, credstore.Key{Audience: a, Scope: "openid"}, cred("a-openid", time.Hour))
	mustSet(t, s, credstore.Key{Audience: a, Scope: "openid profile"}, cred("a-both", time.Hour))
	mustSet(t, s, credstore.Key{Audience: b, Scope: "openid"}, cred("b-openid", time.Hour))

	cases := map[credstore.Key]string{
		{Audience: a, Scope: "openid"}:         "a-openid",
		{Audience: a, Scope: "openid profile"}: "a-both",
		{Audience: b, Scope: "openid"}:         "b-openid",
	}
	for key, want := range cases {
		got := mustGet(t, s, key)
		if got == nil || got.AccessToken != want {
			t.Fatalf("Get(%s) = %+v, want %s", key, got, want)
		}
	}
	if got := mustGet(t, s, credstore.Key{Audience: a, Scope: "profile"}); got != nil {
		t.Fatalf("unexpected hit for unrelated scope: %+v", got)
	}
}

func testDeleteAudience(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	a := audience(t, "a")
	b := audience(t, "b")
	mustSet(t, s, credstore.Key{Audience: a, Scope: "openid"}, cred("a1", time.Hour))
	mustSet(t, s, credstore.Key{Audience: a, Scope: "profile"}, cred("a2", time.Hour))
	mustSet(t, s, credstore.Key{Audience: b, Scope: "openid"}, cred("b1", time.Hour))

	if err := s.Delete(context.Background(), a); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := mustGet(t, s, credstore.Key{Audience: a, Scope: "openid"}); got != nil {
		t.Fatalf("audience a not deleted")
	}
	if got := mustGet(t, s, credstore.Key{Audience: a, Scope: "profile"}); got != nil {
		t.Fatalf("audience a not deleted")
	}
	if got := mustGet(t, s, credstore.Key{Audience: b, Scope: "openid"}); got == nil {
		t.Fatalf("audience b deleted too")
	}
}

func testDeleteAll(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	a := audience(t, "a")
	b := audience(t, "b")
	mustSet(t, s, credstore.Key{Audience: a, Scope: "openid"}, cred("a1", time.Hour))
	mustSet(t, s, credstore.Key{Audience: b, Scope: "openid"}, cred("b1", time.Hour))

	if err := s.Delete(context.Background(), ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, aud := range []string{a, b} {
		if got := mustGet(t, s, credstore.Key{Audience: aud, Scope: "openid"}); got != nil {
			t.Fatalf("%s not deleted", aud)
		}
	}
}

func testInvalidKey(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	err := s.Set(context.Background(), credstore.Key{Scope: "openid"}, cred("x", time.Hour))
	if !errors.Is(err, credstore.ErrInvalidKey) {
		t.Fatalf("Set() err = %v, want ErrInvalidKey", err)
	}
}

// testNoTornReads checks that a reader always sees an access token together
// with the expiry it was written with.
func testNoTornReads(t *testing.T, factory StoreFactory) {
	s := newStore(t, factory)
	key := credstore.Key{Audience: audience(t, ""), Scope: "openid"}
	base := time.Now().Add(time.Hour).Truncate(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const writes = 50
	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				n := w*writes + i
				c := provider.Credential{AccessToken: strconv.Itoa(n), ExpiresAt: base.Add(time.Duration(n) * time.Second)}
				if err := s.Set(ctx, key, c); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				got, err := s.Get(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				if got == nil {
					continue
				}
				n, err := strconv.Atoi(got.AccessToken)
				if err != nil {
					errs <- err
					return
				}
				if want := base.Add(time.Duration(n) * time.Second); !got.ExpiresAt.Equal(want) {
					errs <- errors.New("torn read: token " + got.AccessToken + " with expiry " + got.ExpiresAt.String())
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
