// Package result provides the two-state container returned at every
// fallible boundary of the token cache: a success value or a classified
// auth0err.Error. There is no third state.
package result

import "github.com/ggoodman/tokencache-go/auth0err"

// Result holds either a value or an error. Build one with Success or
// Failure; the zero value behaves as a failure with an Unknown error.
type Result[T any] struct {
	value T
	err   auth0err.Error
	ok    bool
}

// Success wraps v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Failure wraps err. A nil err is replaced by an Unknown error so the result
// never ends up without a cause.
func Failure[T any](err auth0err.Error) Result[T] {
	if err == nil {
		err = auth0err.NewUnknown("result: failure without error", nil)
	}
	return Result[T]{err: err}
}

// IsSuccess reports whether r holds a value.
func (r Result[T]) IsSuccess() bool { return r.ok }

// Value returns the wrapped value and whether r is a success.
func (r Result[T]) Value() (T, bool) { return r.value, r.ok }

// Err returns the wrapped error, or nil for a success.
func (r Result[T]) Err() auth0err.Error {
	if r.ok {
		return nil
	}
	if r.err == nil {
		return auth0err.NewUnknown("result: zero value", nil)
	}
	return r.err
}

// Unwrap returns the value and a plain error for idiomatic handling.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.value, nil
	}
	return r.value, r.Err()
}

// OnSuccess calls fn with the value when r is a success and returns r
// unchanged.
func (r Result[T]) OnSuccess(fn func(T)) Result[T] {
	if r.ok && fn != nil {
		fn(r.value)
	}
	return r
}

// OnError calls fn with the error when r is a failure and returns r
// unchanged.
func (r Result[T]) OnError(fn func(auth0err.Error)) Result[T] {
	if !r.ok && fn != nil {
		fn(r.Err())
	}
	return r
}
