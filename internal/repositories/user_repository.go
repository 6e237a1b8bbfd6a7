package repositories

import (
	"context"
	"errors"

	"clubsite/internal/models"
)

var (
	// ErrDuplicateEmail is returned by Create when the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUserNotFound is returned by lookups that match no user.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository defines the interface for user data access.
// Implementations must enforce email uniqueness atomically.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Ping(ctx context.Context) error
}
