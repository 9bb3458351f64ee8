// Package repo persists identities and notes. Each store comes in a Postgres,
// a MongoDB and an in-memory flavour behind the same interfaces.
package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/imemory/server/internal/model"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field (email, phone number) is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, u *model.Identity) error
	GetByID(ctx context.Context, id string) (model.Identity, error)
	GetByEmail(ctx context.Context, email string) (model.Identity, error)
	GetByPhone(ctx context.Context, phone string) (model.Identity, error)
	// Save overwrites every mutable field of an existing identity. Callers
	// load, mutate and save without locking, so concurrent writers to the
	// same identity race and the last save wins.
	Save(ctx context.Context, u *model.Identity) error
}

// NoteRepo defines the interface for note repository operations
type NoteRepo interface {
	Create(ctx context.Context, n *model.Note) error
	GetByID(ctx context.Context, id string) (model.Note, error)
	ListByUser(ctx context.Context, userID string) ([]model.Note, error)
	Update(ctx context.Context, n *model.Note) error
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
