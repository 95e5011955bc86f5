// Package auth0err defines the closed set of domain errors produced when
// fetching access credentials fails.
//
// Every failure that crosses the token cache boundary is classified into
// exactly one variant. Variants are pointer types implementing Error; the
// interface carries an unexported method so no other package can extend the
// set. Callers branch with a type switch or errors.As:
//
//	var mfa *auth0err.MfaRequired
//	if errors.As(err, &mfa) {
//	    startStepUp(mfa.MfaScope)
//	}
//
// Or, when only the category matters:
//
//	switch auth0err.KindOf(err) {
//	case auth0err.KindNetworkError, auth0err.KindTimeout:
//	    showOffline()
//	}
//
// Each variant keeps the original failure reachable through Unwrap so
// diagnostics never lose information.
package auth0err
