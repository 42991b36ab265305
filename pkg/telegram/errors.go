package telegram

import "fmt"

// APIError is returned when the Bot API answers with "ok": false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: %d %s", e.Method, e.Code, e.Description)
}

// NetworkError is returned when the Bot API could not be reached or its
// response could not be read.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("telegram %s request failed: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
