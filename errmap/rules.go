package errmap

import (
	"github.com/ggoodman/tokencache-go/auth0err"
)

type rule struct {
	name  string
	apply func(in *input) auth0err.Error
}

// rules is evaluated top to bottom. Error codes come first, then transport
// status and connectivity, then structured validation payloads.
var rules = []rule{
	// Error codes.
	{"access_denied", func(in *input) auth0err.Error {
		if in.codeIs("access_denied") {
			return auth0err.NewAccessDenied(in.description, in.cause)
		}
		return nil
	}},
	{"mfa_required", func(in *input) auth0err.Error {
		if in.codeIs("mfa_required", "a0.mfa_required") {
			scope := in.claimScope
			if scope == "" {
				scope = in.contextScope
			}
			return auth0err.NewMfaRequired(in.description, in.cause, scope)
		}
		return nil
	}},
	{"mfa_enroll_required", func(in *input) auth0err.Error {
		if in.codeIs("a0.mfa_registration_required", "mfa_registration_required", "unsupported_challenge_type") {
			return auth0err.NewMfaEnrollRequired(in.description, in.cause)
		}
		return nil
	}},
	{"invalid_mfa_code", func(in *input) auth0err.Error {
		if in.codeIs("a0.mfa_invalid_code") || (in.codeIs("invalid_grant") && in.desc("otp_code")) {
			return auth0err.NewInvalidMfaCode(in.description, in.cause)
		}
		return nil
	}},
	{"invalid_mfa_token", func(in *input) auth0err.Error {
		if in.codeIs("expired_token", "invalid_grant") && in.desc("mfa_token") {
			return auth0err.NewInvalidMfaToken(in.description, in.cause)
		}
		return nil
	}},
	{"too_many_attempts", func(in *input) auth0err.Error {
		if in.codeIs("too_many_attempts") || (in.codeIs("invalid_grant") && in.desc("too many")) {
			return auth0err.NewTooManyAttempts(in.description, in.cause)
		}
		return nil
	}},
	{"refresh_token_deleted", func(in *input) auth0err.Error {
		if in.codeIs("invalid_grant") && (in.desc("doesn't exist") || in.desc("does not exist")) {
			return auth0err.NewRefreshTokenDeleted(in.description, in.cause)
		}
		return nil
	}},
	{"refresh_token_invalid", func(in *input) auth0err.Error {
		if in.codeIs("invalid_refresh_token") || (in.codeIs("invalid_grant") && in.refreshSignal()) {
			return auth0err.NewRefreshTokenInvalid(in.description, in.cause)
		}
		return nil
	}},
	{"session_expired", func(in *input) auth0err.Error {
		if in.codeIs("login_required", "session_expired") {
			return auth0err.NewSessionExpired(in.description, in.cause)
		}
		return nil
	}},
	{"invalid_otp", func(in *input) auth0err.Error {
		if in.codeIs("invalid_otp", "a0.invalid_otp") {
			return auth0err.NewInvalidOTP(in.description, in.cause)
		}
		return nil
	}},

	// Transport.
	{"status_401", func(in *input) auth0err.Error {
		if in.status != 401 {
			return nil
		}
		if in.codeIs("invalid_grant") || in.refreshSignal() {
			return auth0err.NewRefreshTokenInvalid(in.description, in.cause)
		}
		return auth0err.NewSessionExpired(in.description, in.cause)
	}},
	{"status_403", func(in *input) auth0err.Error {
		if in.status == 403 {
			return auth0err.NewForbidden(in.description, in.cause)
		}
		return nil
	}},
	{"status_408", func(in *input) auth0err.Error {
		if in.status == 408 {
			return auth0err.NewTimeout(in.description, in.cause)
		}
		return nil
	}},
	{"status_429", func(in *input) auth0err.Error {
		if in.status == 429 {
			return auth0err.NewTooManyAttempts(in.description, in.cause)
		}
		return nil
	}},
	{"status_5xx", func(in *input) auth0err.Error {
		if in.status >= 500 && in.status <= 599 {
			return auth0err.NewServerError(in.description, in.cause, in.status)
		}
		return nil
	}},
	{"timeout", func(in *input) auth0err.Error {
		if in.timeout {
			return auth0err.NewTimeout(in.description, in.cause)
		}
		return nil
	}},
	{"network", func(in *input) auth0err.Error {
		if in.unreachable {
			return auth0err.NewNetworkError(in.description, in.cause)
		}
		return nil
	}},

	// Structured validation.
	{"validation", func(in *input) auth0err.Error {
		if len(in.fields) > 0 {
			return auth0err.NewValidationError(in.description, in.cause, in.fields)
		}
		return nil
	}},
}

func (in *input) refreshSignal() bool {
	return in.codeIs("invalid_refresh_token") || in.desc("refresh token") || in.desc("refresh_token")
}
