package connect

import (
	"errors"
	"fmt"
)

var (
	// ErrProbe is returned when the instance alias could not be classified.
	ErrProbe = errors.New("invalid instance identity")

	// ErrLogin is the parent of every interactive login failure.
	ErrLogin = errors.New("login failed")
	// ErrInvalidCredentials means the login page showed the failure marker.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrLogin)
	// ErrCredentialNotFound means login navigated away but no session cookie was set.
	ErrCredentialNotFound = fmt.Errorf("%w: credential not found", ErrLogin)

	ErrUnauthenticated = errors.New("unauthenticated: session has no credential")
	ErrEditToken       = errors.New("edit token not found in edit page")
	ErrInvalidARN      = errors.New("invalid contact flow ARN")
	ErrUploadRejected  = errors.New("flow upload rejected")
	ErrMissingConfig   = errors.New("missing configuration")

	// ErrStatus and ErrFormat match *StatusError and *FormatError via errors.Is.
	ErrStatus = errors.New("unexpected HTTP status")
	ErrFormat = errors.New("unexpected response format")
)

// StatusError is returned when the remote API answers with a 4xx or 5xx status.
// The response body is never read.
type StatusError struct {
	Op         string
	Instance   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s: HTTP %d", e.Op, e.Instance, ErrStatus, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// FormatError is returned when a response does not have the expected shape.
// An HTML content type on an API endpoint usually means the session expired
// and the request was redirected to the login page.
type FormatError struct {
	Op          string
	Instance    string
	ContentType string
	Detail      string
	Err         error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Instance, ErrFormat)
	if e.ContentType != "" {
		msg += fmt.Sprintf(" (content type %q)", e.ContentType)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// opError decorates a sentinel with the operation and instance it came from.
func opError(op, instance string, err error) error {
	return fmt.Errorf("%s %s: %w", op, instance, err)
}
