package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrItemNotFound             = errors.New("item not found")
	ErrPersistence              = errors.New("persistence failure")
	ErrInvalidItem              = errors.New("invalid item")
	ErrOutcomeRecordingDisabled = errors.New("outcome recording disabled")
	ErrDailyCapReached          = errors.New("daily cap reached")
)

// PersistenceError reports a failed load or save against the item store.
// It matches ErrPersistence with errors.Is and is always retryable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s items: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Retryable reports whether the caller may retry the operation unchanged.
func (e *PersistenceError) Retryable() bool { return true }
