package auth0err

import (
	"errors"
	"strconv"
)

// Kind names an Error variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindAccessDenied
	KindMfaRequired
	KindMfaEnrollRequired
	KindInvalidMfaCode
	KindInvalidMfaToken
	KindRefreshTokenInvalid
	KindRefreshTokenDeleted
	KindSessionExpired
	KindTooManyAttempts
	KindNetworkError
	KindTimeout
	KindValidationError
	KindForbidden
	KindInvalidOTP
	KindServerError
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindAccessDenied:        "access_denied",
	KindMfaRequired:         "mfa_required",
	KindMfaEnrollRequired:   "mfa_enroll_required",
	KindInvalidMfaCode:      "invalid_mfa_code",
	KindInvalidMfaToken:     "invalid_mfa_token",
	KindRefreshTokenInvalid: "refresh_token_invalid",
	KindRefreshTokenDeleted: "refresh_token_deleted",
	KindSessionExpired:      "session_expired",
	KindTooManyAttempts:     "too_many_attempts",
	KindNetworkError:        "network_error",
	KindTimeout:             "timeout",
	KindValidationError:     "validation_error",
	KindForbidden:           "forbidden",
	KindInvalidOTP:          "invalid_otp",
	KindServerError:         "server_error",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Error is implemented only by the variants declared in this package.
type Error interface {
	error
	// Message is the human readable description of the failure.
	Message() string
	// Kind identifies the variant.
	Kind() Kind
	// Unwrap returns the original failure, possibly nil.
	Unwrap() error

	auth0Error()
}

// FieldError is a single field-level validation problem reported by the
// authorization server.
type FieldError struct {
	Field   string `json:"field"`
	Detail  string `json:"detail"`
	Pointer string `json:"pointer,omitempty"`
	Source  string `json:"source,omitempty"`
}

type base struct {
	msg   string
	cause error
}

func (b *base) Error() string {
	if b.cause == nil || b.cause.Error() == b.msg {
		return b.msg
	}
	return b.msg + ": " + b.cause.Error()
}

func (b *base) Message() string { return b.msg }
func (b *base) Unwrap() error   { return b.cause }
func (b *base) auth0Error()     {}

func newBase(msg string, cause error, fallback string) base {
	if msg == "" {
		msg = fallback
	}
	return base{msg: msg, cause: cause}
}

// AccessDenied means the authorization server refused the grant by policy.
type AccessDenied struct{ base }

func (*AccessDenied) Kind() Kind { return KindAccessDenied }

// MfaRequired means a step-up multi-factor challenge must be completed
// before the credential can be issued.
type MfaRequired struct {
	base
	// MfaScope is the scope the caller must request to complete the challenge.
	MfaScope string
}

func (*MfaRequired) Kind() Kind { return KindMfaRequired }

// MfaEnrollRequired means the user must enroll a second factor first.
type MfaEnrollRequired struct{ base }

func (*MfaEnrollRequired) Kind() Kind { return KindMfaEnrollRequired }

// InvalidMfaCode means the one-time code was wrong or expired.
type InvalidMfaCode struct{ base }

func (*InvalidMfaCode) Kind() Kind { return KindInvalidMfaCode }

// InvalidMfaToken means the MFA token was malformed or expired.
type InvalidMfaToken struct{ base }

func (*InvalidMfaToken) Kind() Kind { return KindInvalidMfaToken }

// RefreshTokenInvalid means the refresh token was rejected.
type RefreshTokenInvalid struct{ base }

func (*RefreshTokenInvalid) Kind() Kind { return KindRefreshTokenInvalid }

// RefreshTokenDeleted means the refresh token no longer exists.
type RefreshTokenDeleted struct{ base }

func (*RefreshTokenDeleted) Kind() Kind { return KindRefreshTokenDeleted }

// SessionExpired means the session or credential lifetime was exceeded.
type SessionExpired struct{ base }

func (*SessionExpired) Kind() Kind { return KindSessionExpired }

// TooManyAttempts means rate limiting was triggered.
type TooManyAttempts struct{ base }

func (*TooManyAttempts) Kind() Kind { return KindTooManyAttempts }

// NetworkError means no response reached the client.
type NetworkError struct{ base }

func (*NetworkError) Kind() Kind { return KindNetworkError }

// Timeout means the request exceeded its deadline.
type Timeout struct{ base }

func (*Timeout) Kind() Kind { return KindTimeout }

// ValidationError carries field-level validation failures exactly as
// reported.
type ValidationError struct {
	base
	Errors []FieldError
}

func (*ValidationError) Kind() Kind { return KindValidationError }

// Forbidden means the caller may not access the requested resource.
type Forbidden struct{ base }

func (*Forbidden) Kind() Kind { return KindForbidden }

// InvalidOTP means the supplied one-time passcode was malformed.
type InvalidOTP struct{ base }

func (*InvalidOTP) Kind() Kind { return KindInvalidOTP }

// ServerError is a 5xx response from the authorization server.
type ServerError struct {
	base
	StatusCode int
}

func (*ServerError) Kind() Kind { return KindServerError }

// Unknown is the fallback for failures no rule recognizes.
type Unknown struct{ base }

func (*Unknown) Kind() Kind { return KindUnknown }

// NewAccessDenied returns an AccessDenied error.
func NewAccessDenied(msg string, cause error) *AccessDenied {
	return &AccessDenied{newBase(msg, cause, "access denied")}
}

// NewMfaRequired returns an MfaRequired error for a step-up to mfaScope.
func NewMfaRequired(msg string, cause error, mfaScope string) *MfaRequired {
	return &MfaRequired{base: newBase(msg, cause, "multi-factor authentication required"), MfaScope: mfaScope}
}

// NewMfaEnrollRequired returns an MfaEnrollRequired error.
func NewMfaEnrollRequired(msg string, cause error) *MfaEnrollRequired {
	return &MfaEnrollRequired{newBase(msg, cause, "multi-factor enrollment required")}
}

// NewInvalidMfaCode returns an InvalidMfaCode error.
func NewInvalidMfaCode(msg string, cause error) *InvalidMfaCode {
	return &InvalidMfaCode{newBase(msg, cause, "invalid multi-factor code")}
}

// NewInvalidMfaToken returns an InvalidMfaToken error.
func NewInvalidMfaToken(msg string, cause error) *InvalidMfaToken {
	return &InvalidMfaToken{newBase(msg, cause, "invalid multi-factor token")}
}

// NewRefreshTokenInvalid returns a RefreshTokenInvalid error.
func NewRefreshTokenInvalid(msg string, cause error) *RefreshTokenInvalid {
	return &RefreshTokenInvalid{newBase(msg, cause, "refresh token invalid")}
}

// NewRefreshTokenDeleted returns a RefreshTokenDeleted error.
func NewRefreshTokenDeleted(msg string, cause error) *RefreshTokenDeleted {
	return &RefreshTokenDeleted{newBase(msg, cause, "refresh token deleted")}
}

// NewSessionExpired returns a SessionExpired error.
func NewSessionExpired(msg string, cause error) *SessionExpired {
	return &SessionExpired{newBase(msg, cause, "session expired")}
}

// NewTooManyAttempts returns a TooManyAttempts error.
func NewTooManyAttempts(msg string, cause error) *TooManyAttempts {
	return &TooManyAttempts{newBase(msg, cause, "too many attempts")}
}

// NewNetworkError returns a NetworkError.
func NewNetworkError(msg string, cause error) *NetworkError {
	return &NetworkError{newBase(msg, cause, "network unreachable")}
}

// NewTimeout returns a Timeout error.
func NewTimeout(msg string, cause error) *Timeout {
	return &Timeout{newBase(msg, cause, "request timed out")}
}

// NewValidationError returns a ValidationError carrying a copy of errs, so
// later mutation by the caller does not leak into the error value.
func NewValidationError(msg string, cause error, errs []FieldError) *ValidationError {
	return &ValidationError{
		base:   newBase(msg, cause, "validation failed"),
		Errors: append([]FieldError(nil), errs...),
	}
}

// NewForbidden returns a Forbidden error.
func NewForbidden(msg string, cause error) *Forbidden {
	return &Forbidden{newBase(msg, cause, "forbidden")}
}

// NewInvalidOTP returns an InvalidOTP error.
func NewInvalidOTP(msg string, cause error) *InvalidOTP {
	return &InvalidOTP{newBase(msg, cause, "invalid one-time passcode")}
}

// NewServerError returns a ServerError for the given 5xx status.
func NewServerError(msg string, cause error, statusCode int) *ServerError {
	return &ServerError{
		base:       newBase(msg, cause, "authorization server error (status "+strconv.Itoa(statusCode)+")"),
		StatusCode: statusCode,
	}
}

// NewUnknown returns an Unknown error. An empty msg takes the text of cause.
func NewUnknown(msg string, cause error) *Unknown {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Unknown{newBase(msg, cause, "unknown error")}
}

// KindOf reports the Kind of the first Error in err's chain, or KindUnknown
// when there is none.
func KindOf(err error) Kind {
	var ae Error
	if errors.As(err, &ae) {
		return ae.Kind()
	}
	return KindUnknown
}

// Retryable reports whether err is a transient failure worth retrying
// without user interaction.
func Retryable(err error) bool {
	var ae Error
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Kind() {
	case KindNetworkError, KindTimeout, KindServerError:
		return true
	}
	return false
}
