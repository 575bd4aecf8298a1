// Package store holds the user records of the identity service.
//
// Every operation of the auth service runs inside WithLock, so a single
// process-wide mutex serializes all reads and writes of user records.
// Records returned by a Tx are copies; changes become visible only after
// Tx.Update.
package store

import (
	"context"
	"errors"

	"github.com/PhilHem/go-totp-identity/backend/models"
)

var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("user already exists")
)

// Tx is the view of the store available while the lock is held.
type Tx interface {
	// FindByEmail matches the email exactly.
	FindByEmail(email string) (*models.User, error)
	// FindByEmailFold matches the email case-insensitively.
	FindByEmailFold(email string) (*models.User, error)
	// Insert fails with ErrConflict when a case-insensitively equal email exists.
	Insert(u *models.User) error
	// Update overwrites the stored record that has u's email.
	Update(u *models.User) error
}

type Store interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
	WithLock(ctx context.Context, fn func(tx Tx) error) error
}
