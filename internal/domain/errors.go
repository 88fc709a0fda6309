package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrAuthRequired is returned when an action needs a signed-in user.
	ErrAuthRequired = errors.New("sign in required")
	// ErrInvalidTransition is returned for order status moves outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrPrescriptionMissing = errors.New("prescription required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailTaken          = errors.New("email already registered")
)

// ValidationError carries one message per offending form field.
type ValidationError struct {
	Fields map[string]string
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

// PersistenceError wraps a failed read or write against a collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: persistence: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

// UploadRejectedError is returned before any transfer when a file is unacceptable.
type UploadRejectedError struct {
	Reason string
}

func (e *UploadRejectedError) Error() string { return "upload rejected: " + e.Reason }
