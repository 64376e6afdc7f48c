package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Credential errors
	ErrEmptyToken        = errors.New("token is empty")
	ErrMalformedToken    = errors.New("token must have three non-empty segments")
	ErrInvalidToken      = errors.New("invalid token")
	ErrEmptyRefreshToken = errors.New("refresh token is empty")

	// Profile errors
	ErrInvalidProfile = errors.New("invalid user profile")
	ErrMissingUserID  = fmt.Errorf("%w: missing userId", ErrInvalidProfile)
	ErrMissingEmail   = fmt.Errorf("%w: missing email", ErrInvalidProfile)

	// OAuth errors
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrInvalidState    = errors.New("invalid oauth state")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
