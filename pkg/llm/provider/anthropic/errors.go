package anthropic

import (
	"errors"
	"fmt"
)

// StatusError is returned by HTTPTransport for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("anthropic non-success status=%d body=%s", e.StatusCode, e.Body)
}

// TransportError is surfaced by Complete once every attempt has failed.
// It wraps the last attempt's failure.
type TransportError struct {
	// Attempts is the number of attempts performed.
	Attempts int

	// Err is the failure of the final attempt.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the upstream HTTP status of the final attempt, or 0 when
// the final attempt failed before a response was received.
func (e *TransportError) StatusCode() int {
	var statusErr *StatusError
	if errors.As(e.Err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
