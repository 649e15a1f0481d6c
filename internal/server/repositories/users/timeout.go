package users

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/server/models"
)

type timeoutRepository struct {
	next    Repository
	timeout time.Duration
}

// WithTimeout bounds every call to next by d. A call that runs out of time
// fails with an error of kind common.KindUnavailable.
func WithTimeout(next Repository, d time.Duration) Repository {
	return &timeoutRepository{next: next, timeout: d}
}

func (r *timeoutRepository) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func timedOut(err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && common.KindOf(err) != common.KindUnavailable {
		return common.Unavailable("credential store timed out", err)
	}
	return err
}

func (r *timeoutRepository) user(ctx context.Context, fn func(ctx context.Context) (*models.User, error)) (*models.User, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	u, err := fn(ctx)
	return u, timedOut(err)
}

func (r *timeoutRepository) exec(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	return timedOut(fn(ctx))
}

func (r *timeoutRepository) exists(ctx context.Context, fn func(ctx context.Context) (bool, error)) (bool, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()
	ok, err := fn(ctx)
	return ok, timedOut(err)
}

func (r *timeoutRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.Create(ctx, user) })
}

func (r *timeoutRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.GetByID(ctx, id) })
}

func (r *timeoutRepository) GetByLogin(ctx context.Context, username, email string) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.GetByLogin(ctx, username, email) })
}

func (r *timeoutRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, func(ctx context.Context) (bool, error) { return r.next.ExistsByEmail(ctx, email) })
}

func (r *timeoutRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, func(ctx context.Context) (bool, error) { return r.next.ExistsByUsername(ctx, username) })
}

func (r *timeoutRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, func(ctx context.Context) error { return r.next.SetRefreshToken(ctx, id, token) })
}

func (r *timeoutRepository) SwapRefreshToken(ctx context.Context, id, expected, next string) error {
	return r.exec(ctx, func(ctx context.Context) error { return r.next.SwapRefreshToken(ctx, id, expected, next) })
}

func (r *timeoutRepository) UpdatePassword(ctx context.Context, id, passwordHash string, revokeSession bool) error {
	return r.exec(ctx, func(ctx context.Context) error {
		return r.next.UpdatePassword(ctx, id, passwordHash, revokeSession)
	})
}

func (r *timeoutRepository) UpdateAccount(ctx context.Context, id, fullName, email string) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.UpdateAccount(ctx, id, fullName, email) })
}

func (r *timeoutRepository) UpdateAvatar(ctx context.Context, id, url string) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.UpdateAvatar(ctx, id, url) })
}

func (r *timeoutRepository) UpdateCoverImage(ctx context.Context, id, url string) (*models.User, error) {
	return r.user(ctx, func(ctx context.Context) (*models.User, error) { return r.next.UpdateCoverImage(ctx, id, url) })
}
