package domain

import (
	"errors"
	"fmt"
)

// Collection identifies a record collection in the store.
type Collection string

// Record collections managed by a RecordStore.
const (
	CollectionCharacters Collection = "characters"
	CollectionStatus     Collection = "characterStatus"
)

// ErrNotFound is returned by write paths when the addressed record does not exist.
// Read paths report absence through a boolean instead.
type ErrNotFound struct {
	Collection Collection
	ID         string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Collection, e.ID)
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// PersistenceError wraps a store rejection or transport failure.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError is a local, synchronous rejection of a malformed patch.
// The aggregate the patch targeted is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid patch: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrSlotCollision marks an equipment slot name that normalizes to an existing key.
var ErrSlotCollision = errors.New("equipment slot already exists")

// RenderError reports a failure of the export pipeline. No partial document is kept.
type RenderError struct {
	Format string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
