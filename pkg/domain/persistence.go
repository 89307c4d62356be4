package domain

import "context"

// RecordStore is the document store abstraction used by higher layers.
//
// Read paths report a missing record through the boolean result and a nil
// error. Write paths addressing a missing record return ErrNotFound.
// Implementations must copy aggregates on the way in and out.
type RecordStore interface {
	// ListCharacters returns every character ordered by name, ties broken by id.
	ListCharacters(ctx context.Context) ([]Character, error)
	GetCharacter(ctx context.Context, id string) (Character, bool, error)
	// CreateCharacter ignores any incoming id and returns the assigned one.
	CreateCharacter(ctx context.Context, c Character) (string, error)
	ReplaceCharacter(ctx context.Context, id string, c Character) error
	// DeleteCharacter removes the character and its status. A missing
	// status is not an error.
	DeleteCharacter(ctx context.Context, id string) error
	GetStatus(ctx context.Context, id string) (Status, bool, error)
	// PutStatus fully replaces the status, creating it when absent.
	PutStatus(ctx context.Context, id string, s Status) error
	Close() error
}
