package tokencache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ggoodman/tokencache-go/auth0err"
	"github.com/ggoodman/tokencache-go/credstore"
	"github.com/ggoodman/tokencache-go/credstore/memory"
	"github.com/ggoodman/tokencache-go/errmap"
	"github.com/ggoodman/tokencache-go/internal/logctx"
	"github.com/ggoodman/tokencache-go/provider"
	"github.com/ggoodman/tokencache-go/result"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ggoodman/tokencache-go/tokencache"

// ErrNoProvider is returned by New when no provider is supplied.
var ErrNoProvider = errors.New("tokencache: provider is required")

// Cache serves access tokens per (audience, scope). Create one per session
// or process with New and share the pointer; it is safe for concurrent use.
type Cache struct {
	provider provider.TokenProvider
	store    credstore.Store
	log      *slog.Logger
	now      func() time.Time
	leeway   time.Duration

	maxRetries uint64
	retryBase  time.Duration

	tracer  trace.Tracer
	metrics *metrics

	inflight sync.Map // credstore.Key -> *call
}

// New creates a Cache that fetches missing or expired credentials from p.
func New(p provider.TokenProvider, opts ...Option) (*Cache, error) {
	if p == nil {
		return nil, ErrNoProvider
	}
	cfg := &config{
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		retryBase: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = memory.New(memory.WithClock(cfg.now))
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}

	return &Cache{
		provider:   p,
		store:      cfg.store,
		log:        slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		now:        cfg.now,
		leeway:     cfg.leeway,
		maxRetries: cfg.maxRetries,
		retryBase:  cfg.retryBase,
		tracer:     cfg.tracer,
		metrics:    newMetrics(cfg.registerer),
	}, nil
}

// Fetch returns a valid access token for (audience, scope), calling the
// provider only when the cache holds no unexpired credential for that key.
func (c *Cache) Fetch(ctx context.Context, audience, scope string) result.Result[string] {
	key := credstore.Key{Audience: audience, Scope: scope}
	if err := key.Validate(); err != nil {
		return c.fail(errmap.Map(err, scope))
	}

	if cred, ok := c.lookup(ctx, key); ok {
		c.metrics.lookups.WithLabelValues("hit").Inc()
		return result.Success(cred.AccessToken)
	}
	c.metrics.lookups.WithLabelValues("miss").Inc()

	cred, err := c.await(ctx, key)
	if err != nil {
		return c.fail(err)
	}
	return result.Success(cred.AccessToken)
}

// Store writes cred for (audience, scope) without consulting the provider,
// e.g. for credentials obtained at sign-in. Multi-member scopes fan out to
// each member. Only an invalid key or a store failure is reported.
func (c *Cache) Store(ctx context.Context, audience, scope string, cred provider.Credential) error {
	key := credstore.Key{Audience: audience, Scope: scope}
	if err := key.Validate(); err != nil {
		return err
	}
	return c.put(ctx, key, cred)
}

// Clear removes every cached credential for audience, or all credentials
// when audience is empty. Fetches already in flight may still store their
// result afterwards.
func (c *Cache) Clear(ctx context.Context, audience string) error {
	if err := c.store.Delete(ctx, audience); err != nil {
		return fmt.Errorf("tokencache: clear: %w", err)
	}
	c.log.InfoContext(ctx, "cache.clear.ok", slog.String("audience", audience))
	return nil
}

// Close releases the underlying store.
func (c *Cache) Close() error { return c.store.Close() }

func (c *Cache) fail(err auth0err.Error) result.Result[string] {
	c.metrics.errors.WithLabelValues(err.Kind().String()).Inc()
	return result.Failure[string](err)
}

// fresh reports whether cred may be handed out now.
func (c *Cache) fresh(cred *provider.Credential) bool {
	return cred != nil && cred.Valid(c.now().Add(c.leeway))
}

// lookup treats store failures as misses: the provider can still serve the
// request.
func (c *Cache) lookup(ctx context.Context, key credstore.Key) (*provider.Credential, bool) {
	cred, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "store.get.fail", slog.String("key", key.String()), slog.String("err", err.Error()))
		return nil, false
	}
	if !c.fresh(cred) {
		return nil, false
	}
	return cred, true
}

// put writes cred under key and, for multi-member scopes, under each member.
func (c *Cache) put(ctx context.Context, key credstore.Key, cred provider.Credential) error {
	var errs []error
	for _, k := range fanOut(key) {
		if err := c.store.Set(ctx, k, cred); err != nil {
			c.log.WarnContext(ctx, "store.set.fail", slog.String("key", k.String()), slog.String("err", err.Error()))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("tokencache: store: %w", errors.Join(errs...))
	}
	return nil
}

// fanOut returns key followed by one key per distinct scope member when the
// scope has more than one member.
func fanOut(key credstore.Key) []credstore.Key {
	keys := []credstore.Key{key}
	members := strings.Fields(key.Scope)
	if len(members) < 2 {
		return keys
	}
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		keys = append(keys, credstore.Key{Audience: key.Audience, Scope: m})
	}
	return keys
}

// await joins or starts the in-flight fetch for key and waits for it or for
// ctx to end, whichever comes first.
func (c *Cache) await(ctx context.Context, key credstore.Key) (provider.Credential, auth0err.Error) {
	cl, leader := c.join(key)
	if leader {
		c.start(ctx, key, cl)
	} else {
		c.metrics.coalesced.Inc()
	}

	select {
	case <-cl.done:
		cl.release()
		return cl.cred, cl.err
	case <-ctx.Done():
		if cl.release() {
			c.inflight.CompareAndDelete(key, cl)
			c.log.InfoContext(ctx, "fetch.abandon", slog.String("fetch_id", cl.id))
		}
		return provider.Credential{}, errmap.Map(ctx.Err(), key.Scope)
	}
}

// join registers the caller with the in-flight call for key, creating it if
// needed. leader is true when the caller created the call and must start it.
func (c *Cache) join(key credstore.Key) (cl *call, leader bool) {
	for {
		v, loaded := c.inflight.Load(key)
		if !loaded {
			v, loaded = c.inflight.LoadOrStore(key, newCall(uuid.NewString()))
		}
		cl = v.(*call)
		if cl.acquire() {
			return cl, !loaded
		}
		// Abandoned by its last waiter; make room for a new call.
		c.inflight.CompareAndDelete(key, cl)
	}
}

func (c *Cache) start(ctx context.Context, key credstore.Key, cl *call) {
	ctx = logctx.WithFetchData(ctx, &logctx.FetchData{FetchID: cl.id, Audience: key.Audience, Scope: key.Scope})
	pctx := cl.begin(ctx)
	go c.run(pctx, key, cl)
}

func (c *Cache) run(ctx context.Context, key credstore.Key, cl *call) {
	cred, fetched, err := c.fetch(ctx, key, cl.id)
	if err == nil && fetched {
		// Storing must survive the waiters going away.
		_ = c.put(context.WithoutCancel(ctx), key, cred)
	}
	c.inflight.CompareAndDelete(key, cl)
	cl.finish(cred, err)
}

// fetch obtains a credential for key from the provider and classifies any
// failure. fetched is false when the store already held a fresh credential;
// that value must not be written back.
func (c *Cache) fetch(ctx context.Context, key credstore.Key, id string) (cred provider.Credential, fetched bool, aerr auth0err.Error) {
	// Another fetch may have stored key between the caller's lookup and the
	// registration of this call.
	if cached, ok := c.lookup(ctx, key); ok {
		return *cached, false, nil
	}

	ctx, span := c.tracer.Start(ctx, "tokencache.Fetch",
		trace.WithAttributes(
			attribute.String("tokencache.audience", key.Audience),
			attribute.String("tokencache.scope", key.Scope),
			attribute.String("tokencache.fetch_id", id),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			aerr = auth0err.NewUnknown("", fmt.Errorf("tokencache: provider panic: %v", r))
		}
		c.metrics.providerDuration.Observe(time.Since(start).Seconds())
		if aerr != nil {
			c.metrics.providerCalls.WithLabelValues("error").Inc()
			span.RecordError(aerr)
			span.SetStatus(codes.Error, aerr.Kind().String())
			c.log.WarnContext(ctx, "fetch.provider.fail",
				slog.String("kind", aerr.Kind().String()),
				slog.String("err", aerr.Error()),
				slog.Duration("dur", time.Since(start)))
			return
		}
		c.metrics.providerCalls.WithLabelValues("success").Inc()
		c.log.InfoContext(ctx, "fetch.provider.ok",
			slog.Time("expires_at", cred.ExpiresAt),
			slog.Duration("dur", time.Since(start)))
	}()

	got, err := c.callProvider(ctx, key)
	if err != nil {
		return provider.Credential{}, false, errmap.Map(err, key.Scope)
	}
	if got.AccessToken == "" {
		return provider.Credential{}, false, auth0err.NewUnknown("provider returned an empty access token", nil)
	}
	if !c.fresh(&got) {
		return provider.Credential{}, false, auth0err.NewUnknown("provider returned an expired credential", nil)
	}
	return got, true, nil
}

func (c *Cache) callProvider(ctx context.Context, key credstore.Key) (provider.Credential, error) {
	if c.maxRetries == 0 {
		return c.provider.FetchCredentials(ctx, key.Audience, key.Scope)
	}

	var cred provider.Credential
	b := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		cred, err = c.provider.FetchCredentials(ctx, key.Audience, key.Scope)
		if err != nil && auth0err.Retryable(errmap.Map(err, key.Scope)) {
			c.log.DebugContext(ctx, "fetch.provider.retry", slog.String("err", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
	return cred, err
}
