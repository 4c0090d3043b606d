package gateway

import (
	"fmt"
	"net/http"
)

// APIError is returned when the gateway answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Errors     string
	Headers    http.Header
}

func (e *APIError) Error() string {
	if e.Errors != "" {
		return fmt.Sprintf("gateway error %d (%s): %s %s", e.StatusCode, e.Type, e.Message, e.Errors)
	}
	return fmt.Sprintf("gateway error %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// NetworkError wraps failures to reach the gateway at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gateway unreachable: %v", e.Err)
}

func (e *NetworkError) Cause() error { return e.Err }
func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError is returned when a 2xx body cannot be understood.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid gateway response (HTTP %d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Cause() error { return e.Err }
func (e *DecodeError) Unwrap() error { return e.Err }
