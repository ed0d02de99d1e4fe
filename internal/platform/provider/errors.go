// Package provider normalizes failures of the remote collaborators (the
// student record store and the registration workflow) into one taxonomy.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorCategory is the normalized failure taxonomy.
type ErrorCategory string

const (
	// ErrorTimeout indicates the remote took too long to respond.
	ErrorTimeout ErrorCategory = "timeout"

	// ErrorBadData indicates a malformed or unexpected response body.
	ErrorBadData ErrorCategory = "bad_data"

	// ErrorAuthentication indicates a rejected API key.
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorOutage indicates the remote is unreachable or failing.
	ErrorOutage ErrorCategory = "outage"

	// ErrorRejected indicates the remote understood and refused the request.
	ErrorRejected ErrorCategory = "rejected"

	// ErrorRateLimited indicates too many requests.
	ErrorRateLimited ErrorCategory = "rate_limited"

	// ErrorInternal indicates a failure on our side of the call.
	ErrorInternal ErrorCategory = "internal"
)

// Error wraps a remote failure with its category.
type Error struct {
	Category   ErrorCategory
	Provider   string
	Message    string
	StatusCode int
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a categorized provider error.
func NewError(category ErrorCategory, providerName, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Provider:   providerName,
		Message:    message,
		Underlying: underlying,
		Retryable: category == ErrorTimeout ||
			category == ErrorOutage ||
			category == ErrorRateLimited,
	}
}

// FromStatus categorizes a non-2xx HTTP status.
func FromStatus(providerName string, status int, message string) *Error {
	var category ErrorCategory
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = ErrorAuthentication
	case status == http.StatusTooManyRequests:
		category = ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		category = ErrorTimeout
	case status >= 500:
		category = ErrorOutage
	default:
		category = ErrorRejected
	}
	if message == "" {
		message = fmt.Sprintf("unexpected status %d", status)
	}
	e := NewError(category, providerName, message, nil)
	e.StatusCode = status
	return e
}

// FromTransport categorizes an error returned by http.Client.Do.
func FromTransport(providerName string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrorTimeout, providerName, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(ErrorTimeout, providerName, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewError(ErrorInternal, providerName, "request canceled", err)
	default:
		return NewError(ErrorOutage, providerName, "request failed", err)
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf extracts the category, defaulting to internal.
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
