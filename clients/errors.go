package clients

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// BackendError is a failure status returned by a backend service,
// already mapped to a user-facing message.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return e.Message
}

// TransportError is a network-level failure talking to a backend;
// timeouts and connection failures carry distinct messages.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	return e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type timeouter interface {
	Timeout() bool
}

// mapTransportError wraps a request error from the HTTP client.
func mapTransportError(err error) error {
	var t timeouter
	if errors.As(err, &t) && t.Timeout() {
		return &TransportError{Message: "Request timeout. Please try again.", Err: err}
	}
	return &TransportError{Message: "Network error. Please check your connection.", Err: err}
}

// mapStatusError turns a non-2xx response into a BackendError with the
// user-facing message for its status class.
func mapStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	msg := payload.Message
	switch resp.StatusCode {
	case http.StatusBadRequest:
		if msg == "" {
			msg = "Bad request. Please check your input."
		}
	case http.StatusNotFound:
		msg = "Resource not found."
	case http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "Validation failed. Please check your input."
		}
	case http.StatusInternalServerError:
		msg = "Server error. Please try again later."
	default:
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
	}

	return &BackendError{StatusCode: resp.StatusCode, Message: msg}
}
