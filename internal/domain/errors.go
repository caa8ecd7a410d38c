package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidProfile rejects a scan request before any side effect.
var ErrInvalidProfile = errors.New("invalid scan profile")

// ValidationError rejects a malformed target before any side effect.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
}

// AuthzError denies a scan by policy before any network traffic is emitted.
type AuthzError struct {
	Target string
	Reason string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("scan of %s denied: %s", e.Target, e.Reason)
}

// PersistError surfaces a result-store write failure. Findings were
// computed, but an unpersisted result cannot be retrieved later, so the
// scan is reported as failed.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist scan result: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
