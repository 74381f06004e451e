package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDisabled           = errors.New("user disabled")
)

type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Count(ctx context.Context) (int, error)
	// SetStatus returns ErrNotFound for an unknown user.
	SetStatus(ctx context.Context, userID, status string) error
}
