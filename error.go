package reqstrategy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRetryUnavailable is returned when a RetryingStrategy is constructed in a
	// build which doesn't carry the backoff engine
	ErrRetryUnavailable = errors.New("retry support is not available")

	// ErrInvalidPolicy is returned when a RetryingStrategy is given a nil or
	// incomplete Policy
	ErrInvalidPolicy = errors.New("invalid retry policy")

	// ErrInvalidConfig is returned when a loaded Config fails validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError is returned synchronously from constructors, before any network
// call is attempted
type ConfigError struct {
	Reason string
	Err    error
}

// Error implements the `Error` interface
func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}

	return fmt.Sprintf("configuration error: %v: %s", e.Err, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when the method or url handed to Request can't be
// used to build an HTTP request
type ValidationError struct {
	Field string
	Value string
}

// Error implements the `Error` interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// HTTPError is returned by the JSONProcessor for any response with a status
// code of 400 or above
type HTTPError struct {
	StatusCode int
	Status     string
	Method     string
	URL        string
	Body       []byte

	// Detail holds whatever the API put in the `error` member of the body, if anything
	Detail string
}

// Error implements the `Error` interface
func (e *HTTPError) Error() string {
	var sb strings.Builder

	kind := "Client Error"
	if e.StatusCode >= 500 {
		kind = "Server Error"
	}

	fmt.Fprintf(&sb, "%s: %s for url: %s", kind, e.Status, e.URL)

	if e.Detail != "" {
		fmt.Fprintf(&sb, " [Error: %s]", e.Detail)
	}

	return sb.String()
}

// IsHTTPStatusError reports whether err is, or wraps, an HTTPError with the given
// status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == statusCode
	}

	return false
}

// RetriesExhaustedError is returned, only for policies with FailOnExhaustion set,
// when every attempt asked for another one. It wraps the error the final attempt
// would otherwise have produced.
type RetriesExhaustedError struct {
	Attempts uint
	Err      error
}

// Error implements the `Error` interface
func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("Request failed %d times: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}
