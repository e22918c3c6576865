package api

import (
	"errors"
	"fmt"
)

// ErrCredentialsMissing means no usable email/password pair is stored, so no
// network call was attempted.
var ErrCredentialsMissing = errors.New("credentials missing")

// AuthError wraps any failure of the sign-in handshake. It is terminal for the
// current session: the caller purges cached tokens and stops polling.
type AuthError struct {
	Reason error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Reason }

// RequestError is a transport-level failure (timeout, DNS, reset).
type RequestError struct {
	Label string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Label, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCodeError is a response outside 200-299. The body is kept for the
// diagnostic log.
type StatusCodeError struct {
	Label string
	Code  int
	Body  string
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Label, e.Code)
}

// MissingCookieError means a handshake response lacked an expected cookie.
type MissingCookieError struct {
	Label string
	Name  string
}

func (e *MissingCookieError) Error() string {
	return fmt.Sprintf("%s response missing cookie %q", e.Label, e.Name)
}
