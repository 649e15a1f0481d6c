package users

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests and local
// runs without a database. It enforces the same uniqueness and
// compare-and-swap semantics as the PostgreSQL store.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User), now: time.Now}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, common.Conflict("user with this email already exists")
		}
		if u.UserName == user.UserName {
			return nil, common.Conflict("user with this username already exists")
		}
	}

	stored := clone(user)
	stored.ID = uuid.NewString()
	stored.RefreshToken = ""
	stored.CreatedAt = r.now()
	stored.UpdatedAt = stored.CreatedAt
	r.users[stored.ID] = stored

	return clone(stored), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.NotFound("user not found")
	}
	return clone(u), nil
}

func (r *MemoryRepository) GetByLogin(ctx context.Context, username, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.User
	for _, u := range r.users {
		if (username != "" && u.UserName == username) || (email != "" && u.Email == email) {
			if found == nil || u.CreatedAt.Before(found.CreatedAt) {
				found = u
			}
		}
	}
	if found == nil {
		return nil, common.NotFound("user not found")
	}
	return clone(found), nil
}

func (r *MemoryRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByLogin(ctx, "", email)
	return existence(err)
}

func (r *MemoryRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByLogin(ctx, username, "")
	return existence(err)
}

func existence(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case common.KindOf(err) == common.KindNotFound:
		return false, nil
	default:
		return false, err
	}
}

// update runs fn on the stored user under the write lock.
func (r *MemoryRepository) update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.NotFound("user not found")
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.UpdatedAt = r.now()
	return clone(u), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	_, err := r.update(ctx, id, func(u *models.User) error {
		u.RefreshToken = token
		return nil
	})
	return err
}

func (r *MemoryRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	_, err := r.update(ctx, id, func(u *models.User) error {
		if expected == "" || u.RefreshToken != expected {
			return ErrRefreshTokenMismatch
		}
		u.RefreshToken = next
		return nil
	})
	if common.KindOf(err) == common.KindNotFound {
		return ErrRefreshTokenMismatch
	}
	return err
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error {
	_, err := r.update(ctx, id, func(u *models.User) error {
		u.PasswordHash = passwordHash
		if revokeSession {
			u.RefreshToken = ""
		}
		return nil
	})
	return err
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error) {
	return r.update(ctx, id, func(u *models.User) error {
		for otherID, other := range r.users {
			if otherID != id && other.Email == email {
				return common.Conflict("user with this email already exists")
			}
		}
		u.FullName = fullName
		u.Email = email
		return nil
	})
}

func (r *MemoryRepository) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	return r.update(ctx, id, func(u *models.User) error {
		u.Avatar = url
		return nil
	})
}

func (r *MemoryRepository) UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error) {
	return r.update(ctx, id, func(u *models.User) error {
		u.CoverImage = url
		return nil
	})
}

// Delete removes a user. Only the in-memory store offers it; it exists so
// tests can exercise the "identity no longer exists" paths.
func (r *MemoryRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// InTx runs fn directly against the repository. Each call is atomic on its
// own; the sequence is not isolated from concurrent writers.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return fn(ctx, r)
}
