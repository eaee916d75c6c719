// Package errs defines the error kinds returned by the SGU client.
//
// Every kind is a struct carrying context plus a sentinel usable with errors.Is,
// so callers can branch either on the sentinel or extract details with errors.As:
//
//	var apiErr *errs.APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest { ... }
//	if errors.Is(err, errs.ErrNotFound) { ... }
package errs

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below.
var (
	ErrNetwork         = errors.New("network error")
	ErrAPI             = errors.New("api error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConversion      = errors.New("conversion error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// NetworkError is returned when the API could not be reached after all attempts.
type NetworkError struct {
	URL      string // URL of the last attempt
	Attempts int    // Number of attempts made
	Timeout  bool   // Whether the last failure was a timeout
	Err      error  // Underlying transport error
}

func (e *NetworkError) Error() string {
	kind := "connection failed"
	if e.Timeout {
		kind = "request timed out"
	}
	return fmt.Sprintf("%s after %d attempt(s) for %s: %v", kind, e.Attempts, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// APIError is returned for HTTP responses outside the 2xx range.
type APIError struct {
	URL        string
	StatusCode int
	Message    string // Server-provided message, falls back to the raw body
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d for %s: %s", e.StatusCode, e.URL, e.Message)
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }

// Retryable reports whether the status is a server-side failure.
func (e *APIError) Retryable() bool { return e.StatusCode >= 500 }

// ValidationError is returned when a response body does not match the expected schema.
type ValidationError struct {
	Field  string // JSON path of the offending value, empty for the document itself
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := "invalid response"
	if e.Field != "" {
		msg += " at " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError is returned when a single-entity lookup matched nothing.
type NotFoundError struct {
	Resource string // e.g. "station"
	Key      string // identifier or CQL filter used for the lookup
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConversionError is returned when a collection cannot be turned into a table.
type ConversionError struct {
	Op     string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ConversionError) Is(target error) bool { return target == ErrConversion }

// Validation is a shorthand for building a ValidationError.
func Validation(field, reason string, err error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, Err: err}
}
