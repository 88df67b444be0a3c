package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound           = errors.New("entry not found")
	ErrAlreadyExists      = errors.New("entry already exists")
	ErrInvalidKey         = errors.New("invalid key")
	ErrReservedKey        = errors.New("key is reserved")
	ErrInvalidType        = errors.New("invalid entry type")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrInvalidValue       = errors.New("invalid value")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrContextMismatch    = errors.New("context mismatch")
	ErrProtected          = errors.New("entry is protected")
	ErrRetypeRequired     = errors.New("document entries must be re-typed explicitly")
	ErrOutOfRange         = errors.New("position out of range")
	ErrTextNotFound       = errors.New("text to replace not found")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrReadOnly           = errors.New("repository is in read-only mode")
)

// Error attaches the failing operation and key to a sentinel error.
type Error struct {
	Op  string
	Key string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

// Unwrap supports errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// E is shorthand for building an *Error.
func E(op, key string, err error) error {
	return &Error{Op: op, Key: key, Err: err}
}
