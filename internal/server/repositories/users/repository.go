// Package users is the credential store: it owns persisted identities,
// their password hashes and their current refresh token.
package users

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// ErrRefreshTokenMismatch is returned by SwapRefreshToken when the stored
// token is not the expected one (rotated, revoked or unknown user).
var ErrRefreshTokenMismatch = errors.New("refresh token mismatch")

// Repository defines the operations on identities. Lookups that find
// nothing return an error matching common.ErrorNotFound; uniqueness
// violations return one matching common.ErrorConflict.
//
// Usernames and emails are expected to be normalized (trimmed, lower-case)
// by the caller.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByLogin finds a user by username or email; empty arguments are
	// ignored.
	GetByLogin(ctx context.Context, username, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// SetRefreshToken unconditionally replaces the stored token; "" clears it.
	SetRefreshToken(ctx context.Context, id, token string) error
	// SwapRefreshToken replaces the stored token with next only if it
	// currently equals expected. The comparison and the write are atomic.
	SwapRefreshToken(ctx context.Context, id, expected, next string) error

	// UpdatePassword stores a new hash and, if revokeSession is set, clears
	// the refresh token in the same write.
	UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error
	UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error)
	UpdateAvatar(ctx context.Context, id, url string) (*models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error)
}

// Transactor runs fn against a Repository whose calls share one
// transaction. fn's error rolls the transaction back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}
