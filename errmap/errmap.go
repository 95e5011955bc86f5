// Package errmap classifies arbitrary credential-exchange failures into the
// closed auth0err taxonomy.
//
// Map is pure and total: every input, including nil and errors this package
// has never seen, resolves to exactly one auth0err.Error. Classification
// walks a single ordered rule table (see rules.go); the first matching rule
// wins and Unknown is the fallback. Supporting a new upstream error code
// means adding one row to that table.
package errmap

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/ggoodman/tokencache-go/auth0err"
	"github.com/ggoodman/tokencache-go/provider"
	"golang.org/x/oauth2"
)

// Map classifies failure. contextScope is the scope of the request that
// failed; it is attached to MfaRequired when the failure itself does not
// name the scope needed to complete the challenge.
//
// A failure that already carries an auth0err.Error in its chain maps to that
// inner error as is; any context added by outer wraps is dropped.
func Map(failure error, contextScope string) auth0err.Error {
	if failure == nil {
		return auth0err.NewUnknown("errmap: nil failure", nil)
	}
	var already auth0err.Error
	if errors.As(failure, &already) {
		return already
	}
	in := extract(failure)
	in.contextScope = contextScope
	for _, r := range rules {
		if ae := r.apply(&in); ae != nil {
			return ae
		}
	}
	return auth0err.NewUnknown("", failure)
}

// input is the set of signals rules match against. It is derived from the
// failure once so each rule stays a simple predicate.
type input struct {
	cause        error
	contextScope string

	code        string
	description string
	status      int
	timeout     bool
	unreachable bool
	fields      []auth0err.FieldError
	claimScope  string
}

// desc reports whether the description contains sub, ignoring case.
func (in *input) desc(sub string) bool {
	return strings.Contains(strings.ToLower(in.description), sub)
}

func (in *input) codeIs(codes ...string) bool {
	for _, c := range codes {
		if in.code == c {
			return true
		}
	}
	return false
}

func extract(failure error) input {
	in := input{cause: failure}

	var f *provider.Failure
	if errors.As(failure, &f) {
		in.code = f.Code
		in.description = f.Description
		in.status = f.StatusCode
		in.timeout = f.Timeout
		in.unreachable = f.Unreachable
		in.fields = f.FieldErrors
		in.claimScope = f.ClaimString("scope")
	}

	var re *oauth2.RetrieveError
	if errors.As(failure, &re) {
		if in.code == "" {
			in.code = re.ErrorCode
		}
		if in.description == "" {
			in.description = re.ErrorDescription
		}
		if in.status == 0 && re.Response != nil {
			in.status = re.Response.StatusCode
		}
	}
	in.code = strings.ToLower(strings.TrimSpace(in.code))

	if !in.timeout {
		in.timeout = isTimeout(failure)
	}
	if !in.unreachable && !in.timeout {
		in.unreachable = isUnreachable(failure)
	}
	return in
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
