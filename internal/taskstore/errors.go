package taskstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any *NotFoundError via errors.Is.
	ErrNotFound = errors.New("task not found")

	// ErrNotAuthenticated is returned by a SessionClient when nobody is
	// signed in.
	ErrNotAuthenticated = errors.New("not signed in")

	ErrUserIDRequired = errors.New("user id is required")
	ErrTaskIDRequired = errors.New("task id is required")
)

// StoreError reports a failed backend call. Op is the client operation:
// list, add, update or delete.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s task: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned by Update when the task document no longer
// exists.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
