// Package tokencache caches short-lived access credentials keyed by
// (audience, scope) and hands them to callers as result.Result values.
//
// A Cache serves a credential from its store while it is unexpired and asks
// its provider.TokenProvider for a fresh one otherwise. Provider failures are
// classified by errmap into auth0err errors; no unclassified error escapes
// Fetch.
//
// # Fan-out
//
// A credential fetched or stored for a multi-member scope such as
// "openid profile email" is also stored under each member ("openid",
// "profile", "email") for the same audience, so a later request for any
// subset member is a cache hit.
//
// # Concurrency
//
// Concurrent Fetch calls for the same key while no valid entry exists share
// a single provider call; every caller receives the same token or the same
// classified error. Different keys never wait on each other. A caller whose
// context ends stops waiting without cancelling the shared call unless it
// was the last caller interested in it, and a credential the provider did
// return is always stored.
//
// Example:
//
//	cache, err := tokencache.New(myProvider,
//	    tokencache.WithLogger(logger),
//	    tokencache.WithLeeway(30*time.Second),
//	)
//	if err != nil { log.Fatal(err) }
//
//	aud := tokencache.GetAudience("tenant.auth0.com")
//	tok, err := cache.Fetch(ctx, aud, "read:users").Unwrap()
//	var mfa *auth0err.MfaRequired
//	if errors.As(err, &mfa) { /* start step-up for mfa.MfaScope */ }
package tokencache
