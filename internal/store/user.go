package store

import (
	"context"

	"github.com/google/uuid"
)

// UserStore defines the minimal user lookups the real-time subsystem needs.
// Account management belongs to the write-path handlers.
type UserStore interface {
	// Exists reports whether a user with the given ID exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
