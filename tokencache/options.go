package tokencache

import (
	"log/slog"
	"time"

	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Cache.
type Option func(*config)

type config struct {
	store      credstore.Store
	logger     *slog.Logger
	now        func() time.Time
	leeway     time.Duration
	maxRetries uint64
	retryBase  time.Duration
	tracer     trace.Tracer
	registerer prometheus.Registerer
}

// WithStore sets where credentials are kept. Defaults to an in-memory store.
func WithStore(s credstore.Store) Option {
	return func(c *config) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLeeway treats credentials as expired d before their ExpiresAt so a
// token is not handed out moments before it stops working. Negative values
// are ignored.
func WithLeeway(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.leeway = d
		}
	}
}

// WithRetry retries provider calls that fail with a retryable error
// (network, timeout, 5xx) up to maxRetries times with exponential backoff
// starting at base. Zero maxRetries disables retries.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *config) {
		c.maxRetries = maxRetries
		if base > 0 {
			c.retryBase = base
		}
	}
}

// WithTracer sets the tracer used for provider call spans. Defaults to the
// global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithRegisterer registers the cache's metrics with reg. Without it metrics
// are still collected but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}
