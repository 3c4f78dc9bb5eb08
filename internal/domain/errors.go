package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidToken           = errors.New("invalid token")
	ErrOverloaded             = errors.New("overloaded")
	ErrInvalidQuestion        = errors.New("invalid question")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrMissingCredentials     = errors.New("missing credentials")
)

// UpstreamError is a failed call to the answering service.
// StatusCode is -1 when no response was received.
type UpstreamError struct {
	StatusCode int
	Message    string
	cause      error
}

func NewUpstreamError(statusCode int, message string, cause error) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Message:    message,
		cause:      cause,
	}
}

func (e *UpstreamError) Error() string {
	if e.StatusCode < 0 {
		return fmt.Sprintf("upstream error: %s", e.Message)
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.cause
}
