package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/credstore/storetest"
	"github.com/ggoodman/tokencache-go/provider"
)

func TestMemoryStore(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) credstore.Store {
		return New()
	})
}

func TestExpiredEntriesDroppedOnRead(t *testing.T) {
	now := time.Now()
	s := New(WithClock(func() time.Time { return now }))
	key := credstore.Key{Audience: "https://a/", Scope: "openid"}
	if err := s.Set(context.Background(), key, provider.Credential{AccessToken: "t", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d", s.Len())
	}

	now = now.Add(time.Minute)
	got, err := s.Get(context.Background(), key)
	if err != nil || got != nil {
		t.Fatalf("Get() = %+v, %v; want miss", got, err)
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry kept, Len() = %d", s.Len())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	key := credstore.Key{Audience: "https://a/", Scope: "openid"}
	_ = s.Set(context.Background(), key, provider.Credential{AccessToken: "t", ExpiresAt: time.Now().Add(time.Hour)})

	got, _ := s.Get(context.Background(), key)
	got.AccessToken = "mutated"

	again, _ := s.Get(context.Background(), key)
	if again.AccessToken != "t" {
		t.Fatalf("stored credential mutated through Get result")
	}
}
