package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrActivityNotFound is returned when an activity is neither in the remote store nor cached locally.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityEmpty indicates an activity without questions; no session can run on it.
	ErrActivityEmpty = errors.New("activity has no questions")
	// ErrRemoteUnavailable wraps any failure talking to the remote document store.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrSessionNotFound is returned when an activity session id is unknown.
	ErrSessionNotFound = errors.New("activity session not found")
	// ErrInvalidState is returned when an operation does not apply to the session's current state.
	ErrInvalidState = errors.New("operation not allowed in current session state")
	// ErrKeyNotFound is returned by local stores for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUserNotFound indicates the user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned for a bad username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrResetCodeNotFound indicates no password reset code was issued for the user.
	ErrResetCodeNotFound = errors.New("reset code not found")
	// ErrResetCodeExpired indicates the reset code outlived its validity window.
	ErrResetCodeExpired = errors.New("reset code expired")
	// ErrResetCodeAttempts indicates too many wrong codes were submitted.
	ErrResetCodeAttempts = errors.New("too many invalid reset code attempts")
	// ErrResetCodeIncorrect indicates the submitted code does not match.
	ErrResetCodeIncorrect = errors.New("reset code incorrect")
	// ErrResetCodeUnverified is returned when a password change is attempted before the code was verified.
	ErrResetCodeUnverified = errors.New("reset code not verified")
)

// ValidationError carries field-level messages for account forms.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil returns e when it holds at least one field error.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
