package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"dsr-backend/internal/shared/auth"
	"dsr-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// CreateInput describes a new account.
type CreateInput struct {
	Username    string
	DisplayName string
	Password    string
	Role        string
}

// Create hashes the password and stores a new active user.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, errors.New("username is required")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	role := in.Role
	if role != RoleAdmin {
		role = RoleStaff
	}
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: hash,
		Role:         role,
		Status:       StatusActive,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate returns the user for valid credentials. Unknown usernames and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	user, err := s.Repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	if user.Status != StatusActive {
		return User{}, ErrDisabled
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// SetStatus enables or disables an account. Open sessions of a disabled
// account are rejected on their next authenticated request.
func (s *Service) SetStatus(ctx context.Context, userID, status string) error {
	if status != StatusActive && status != StatusDisabled {
		return fmt.Errorf("unknown status %q", status)
	}
	if err := s.Repo.SetStatus(ctx, userID, status); err != nil {
		return err
	}
	telemetry.Info("users.status_changed", map[string]any{"user_id": userID, "status": status})
	return nil
}

// IsActive reports whether the session user may still act. Unknown users are
// not active.
func (s *Service) IsActive(ctx context.Context, userID string) (bool, error) {
	user, err := s.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.Status == StatusActive, nil
}

// EnsureAdmin seeds an admin account when the user store is empty. Without
// a configured password it only logs a warning.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) error {
	n, err := s.Repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if password == "" {
		telemetry.Warn("users.no_admin", map[string]any{
			"hint": "set ADMIN_PASSWORD to seed the first account",
		})
		return nil
	}
	user, err := s.Create(ctx, CreateInput{
		Username:    username,
		DisplayName: "Administrator",
		Password:    password,
		Role:        RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}
	telemetry.Info("users.admin_seeded", map[string]any{"user_id": user.ID, "username": user.Username})
	return nil
}
