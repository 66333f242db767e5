package user

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrVersionConflict = errors.New("user was modified concurrently")
)

type Repository interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Update persists the full record guarded by u.Version and returns the
	// stored row with the bumped version. ErrVersionConflict when the row
	// moved underneath the caller.
	Update(ctx context.Context, u User) (User, error)

	// UpdateLastLogin stamps last_login_at without touching the version; a
	// login timestamp cannot lose meaningful data to a racing profile write.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int64, error)
}
