// Package redis provides a credstore.Store backed by Redis so several
// processes can share cached credentials.
//
// Each credential is stored as one JSON value under its own key with a Redis
// TTL matching the credential's expiry, so the pair (access token, expiry)
// is always written and read atomically.
package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/provider"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config for the Redis store. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: TOKENCACHE_KEY_PREFIX
	KeyPrefix string `env:"TOKENCACHE_KEY_PREFIX,default=tokencache:"`
}

// Store implements credstore.Store using Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ credstore.Store = (*Store)(nil)

// storedCredential is the JSON shape kept in Redis.
type storedCredential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Type        string    `json:"token_type,omitempty"`
	Scope       string    `json:"scope,omitempty"`
}

// New connects to Redis at cfg.Addr and verifies the connection with PING.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	return NewFromClient(ctx, redis.NewClient(&redis.Options{Addr: addr}), cfg.KeyPrefix)
}

// NewFromClient wraps an existing client. The store takes ownership of
// client and closes it on Close, including when the PING fails.
func NewFromClient(ctx context.Context, client *redis.Client, keyPrefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if keyPrefix == "" {
		keyPrefix = "tokencache:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	return New(ctx, cfg)
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

// --- Key helpers ---

var enc = base64.RawURLEncoding

func (s *Store) audiencePrefix(audience string) string {
	return s.keyPrefix + "cred:" + enc.EncodeToString([]byte(audience)) + ":"
}

func (s *Store) credKey(key credstore.Key) string {
	return s.audiencePrefix(key.Audience) + enc.EncodeToString([]byte(key.Scope))
}

func (s *Store) Get(ctx context.Context, key credstore.Key) (*provider.Credential, error) {
	raw, err := s.client.Get(ctx, s.credKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var sc storedCredential
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", key, err)
	}
	if !time.Now().Before(sc.ExpiresAt) {
		// ExpiresAt is authoritative over the Redis TTL.
		return nil, nil
	}
	return &provider.Credential{
		AccessToken: sc.AccessToken,
		ExpiresAt:   sc.ExpiresAt,
		Type:        sc.Type,
		Scope:       sc.Scope,
	}, nil
}

func (s *Store) Set(ctx context.Context, key credstore.Key, cred provider.Credential) error {
	if err := key.Validate(); err != nil {
		return err
	}
	rk := s.credKey(key)
	ttl := time.Until(cred.ExpiresAt)
	if ttl <= 0 {
		// Already expired: the write still supersedes whatever was there.
		if err := s.client.Del(ctx, rk).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", key, err)
		}
		return nil
	}
	b, err := json.Marshal(storedCredential{
		AccessToken: cred.AccessToken,
		ExpiresAt:   cred.ExpiresAt,
		Type:        cred.Type,
		Scope:       cred.Scope,
	})
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, rk, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, audience string) error {
	pattern := s.keyPrefix + "cred:*"
	if audience != "" {
		pattern = s.audiencePrefix(audience) + "*"
	}
	keys, err := s.scanKeys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// scanKeys uses SCAN to find all keys matching a pattern.
func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
