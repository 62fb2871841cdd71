package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMember is returned when a user has not joined every required channel.
	ErrNotMember = errors.New("user is not a member of the required channels")
	// ErrNotFound is returned when no video matches an id or name query.
	ErrNotFound = errors.New("video not found")
	// ErrDuplicateName is returned when indexing a name that is already taken.
	ErrDuplicateName = errors.New("video name already registered")
	// ErrEmptyName is returned when indexing a video without a usable name.
	ErrEmptyName = errors.New("video name is empty")
)

// TransportError wraps a failed Telegram API call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError returns nil when err is nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
