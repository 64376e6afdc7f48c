package credentials

import "fmt"

// ValidationError is returned when a caller hands the store data it must not
// persist: an empty or malformed token, or an incomplete profile.
type ValidationError struct {
	Field string // "token", "refresh token" or "user profile"
	Err   error  // one of the internal/errors sentinels
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// StorageError is returned when the underlying medium rejects an operation.
type StorageError struct {
	Operation string // "get", "set", "delete"
	Key       string
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Operation, e.Key, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// PersistenceError is the single user facing error returned by the store's
// write operations. Cause is either a *ValidationError or a *StorageError.
type PersistenceError struct {
	What  string // what was being saved, e.g. "credential"
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unable to save %s: %v", e.What, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// UserMessage is safe to show to the end user.
func (e *PersistenceError) UserMessage() string {
	return "Your session could not be saved. Please sign in again."
}
