package tokencache

import (
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/tokencache-go/provider"
	"github.com/joeshaw/envdecode"
)

// Config holds the tunables that can come from the environment.
type Config struct {
	// Leeway before ExpiresAt at which a credential counts as expired.
	// ENV: TOKENCACHE_LEEWAY
	Leeway time.Duration `env:"TOKENCACHE_LEEWAY,default=0s"`
	// MaxRetries for retryable provider failures. ENV: TOKENCACHE_MAX_RETRIES
	MaxRetries uint64 `env:"TOKENCACHE_MAX_RETRIES,default=0"`
	// RetryBase is the first backoff interval. ENV: TOKENCACHE_RETRY_BASE
	RetryBase time.Duration `env:"TOKENCACHE_RETRY_BASE,default=100ms"`
}

// Options converts c into cache options.
func (c Config) Options() []Option {
	return []Option{
		WithLeeway(c.Leeway),
		WithRetry(c.MaxRetries, c.RetryBase),
	}
}

// ConfigFromEnv decodes Config from the environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("tokencache config: %w", err)
	}
	return cfg, nil
}

// NewFromEnv builds a Cache using envdecode to populate Config. Explicit
// opts are applied after the environment and win over it.
func NewFromEnv(p provider.TokenProvider, opts ...Option) (*Cache, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(p, append(cfg.Options(), opts...)...)
}
