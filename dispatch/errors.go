package dispatch

import (
	"fmt"
	"net/http"
)

// SessionExpiredMessage is the only text shown to the user when renewal fails.
const SessionExpiredMessage = "Authentication expired. Please sign in again."

// SessionExpiredError is returned when a request was answered with 401 and the
// session could not be renewed. The local session has been cleared by the time
// the caller sees it; the request must not be retried.
type SessionExpiredError struct {
	Cause error
}

func (e *SessionExpiredError) Error() string {
	return SessionExpiredMessage
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

// RenewalError is returned by a Renewer when the refresh endpoint answers with
// a non-success status (StatusCode set) or cannot be reached (Cause set).
type RenewalError struct {
	StatusCode int
	Cause      error
}

func (e *RenewalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("session renewal failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("session renewal failed: %v", e.Cause)
}

func (e *RenewalError) Unwrap() error {
	return e.Cause
}

// NetworkError wraps a transport failure (DNS, refused connection, timeout).
// It is never retried by the dispatcher.
type NetworkError struct {
	Method string
	URL    string
	Cause  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// StatusError is returned by DispatchJSON for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
