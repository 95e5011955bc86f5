package result

import (
	"errors"
	"testing"

	"github.com/ggoodman/tokencache-go/auth0err"
)

func TestSuccessChaining(t *testing.T) {
	var got string
	errCalled := false
	r := Success("tok").
		OnSuccess(func(v string) { got = v }).
		OnError(func(auth0err.Error) { errCalled = true })

	if got != "tok" {
		t.Fatalf("OnSuccess value = %q", got)
	}
	if errCalled {
		t.Fatalf("OnError called on success")
	}
	if !r.IsSuccess() {
		t.Fatalf("chaining changed state")
	}
	v, err := r.Unwrap()
	if err != nil || v != "tok" {
		t.Fatalf("Unwrap() = %q, %v", v, err)
	}
	if r.Err() != nil {
		t.Fatalf("Err() on success = %v", r.Err())
	}
}

func TestFailureChaining(t *testing.T) {
	want := auth0err.NewForbidden("", nil)
	var got auth0err.Error
	successCalled := false
	r := Failure[string](want).
		OnError(func(e auth0err.Error) { got = e }).
		OnSuccess(func(string) { successCalled = true })

	if got != want {
		t.Fatalf("OnError got %v, want %v", got, want)
	}
	if successCalled {
		t.Fatalf("OnSuccess called on failure")
	}
	if r.IsSuccess() {
		t.Fatalf("chaining changed state")
	}
	if _, ok := r.Value(); ok {
		t.Fatalf("Value() reported ok on failure")
	}
	_, err := r.Unwrap()
	var fb *auth0err.Forbidden
	if !errors.As(err, &fb) {
		t.Fatalf("Unwrap() error = %v", err)
	}
}

func TestFailureWithNilError(t *testing.T) {
	r := Failure[int](nil)
	if r.IsSuccess() {
		t.Fatalf("nil failure became success")
	}
	if auth0err.KindOf(r.Err()) != auth0err.KindUnknown {
		t.Fatalf("Err() = %v", r.Err())
	}
}

func TestZeroValueIsFailure(t *testing.T) {
	var r Result[string]
	if r.IsSuccess() {
		t.Fatalf("zero value reported success")
	}
	if r.Err() == nil {
		t.Fatalf("zero value has no error")
	}
}

func TestNilCallbacksIgnored(t *testing.T) {
	Success(1).OnSuccess(nil).OnError(nil)
	Failure[int](auth0err.NewTimeout("", nil)).OnSuccess(nil).OnError(nil)
}
