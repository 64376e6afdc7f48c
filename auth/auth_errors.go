package auth

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	MissingCredentialsErr = errors.New("email and password are required")
	MissingProviderErr    = errors.New("oauth provider is required")
	MissingCodeErr        = errors.New("oauth authorization code is required")
)

// AuthError is returned when the backend rejects a sign-in, sign-up or OAuth
// callback. Message is the backend's text, kept for logs only.
type AuthError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("[%s] %d %s", e.Operation, e.StatusCode, http.StatusText(e.StatusCode))
}

// UserMessage is safe to show to the end user.
func (e *AuthError) UserMessage() string {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "Invalid email or password."
	case http.StatusConflict:
		return "An account with this email already exists."
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "Please check the details you entered."
	}
	return "Something went wrong. Please try again."
}

// ProfileFetchError is returned when GET /users/me does not yield a usable
// profile.
type ProfileFetchError struct {
	StatusCode int // 0 when a 2xx body could not be used
	Cause      error
}

func (e *ProfileFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching profile: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetching profile: %v", e.Cause)
}

func (e *ProfileFetchError) Unwrap() error {
	return e.Cause
}
