package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrEmptyResponse is a terminal failure: the model returned no text.
var ErrEmptyResponse = errors.New("llm: response contained no text")

// Error is an upstream failure tagged with its retryability.
type Error struct {
	Provider   string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm: %s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a transient, rate-limit shaped
// failure. Untagged errors are terminal.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// RetryableStatus reports whether an HTTP status signals a transient failure:
// request timeout, conflict, rate limiting, server errors and overload (529).
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}

// classify wraps a provider error. statusCode extracts the HTTP status from
// the provider's own error type, returning 0 when err is not one.
func classify(provider string, err error, statusCode func(error) int) error {
	if err == nil {
		return nil
	}
	out := &Error{Provider: provider, Err: err}
	switch {
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, context.Canceled):
		out.Retryable = false
	case errors.Is(err, context.DeadlineExceeded):
		out.Retryable = true
	default:
		if code := statusCode(err); code != 0 {
			out.StatusCode = code
			out.Retryable = RetryableStatus(code)
			break
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			out.Retryable = true
		}
	}
	return out
}
