// Package errors provides structured error types for notesmith.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrConfigMissing = errors.New("required configuration missing")
	ErrInvalidInput  = errors.New("invalid input")
	ErrTimeout       = errors.New("operation timed out")
	ErrRateLimit     = errors.New("rate limit exceeded")
	ErrUnavailable   = errors.New("service unavailable")
)

// APIError represents an error from an upstream API call.
type APIError struct {
	Service    string // "jira", "llm", "confluence"
	Op         string // logical operation, e.g. "list projects"
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (status %d): %s: %v", e.Service, e.Op, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s (status %d): %s", e.Service, e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error carrying the operation context.
func NewAPIError(service, op string, statusCode int, message string) *APIError {
	return &APIError{Service: service, Op: op, StatusCode: statusCode, Message: message}
}

// WrapAPIError wraps a transport-level cause with operation context.
func WrapAPIError(service, op string, err error) *APIError {
	return &APIError{Service: service, Op: op, Message: "request failed", Err: err}
}

// NotFound returns an ErrNotFound wrapped with a descriptive message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// ConfigMissing returns an ErrConfigMissing naming the absent setting.
func ConfigMissing(setting string) error {
	return fmt.Errorf("%q is not configured, set it on the settings page: %w", setting, ErrConfigMissing)
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}
