package user

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost the accounts were originally hashed with.
const bcryptCost = 10

// ErrWrongPassword is returned when the current password does not match.
var ErrWrongPassword = errors.New("current password is incorrect")

// Service contains business logic for user management.
type Service struct {
	repo *Repository
}

// NewService creates a new user Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmailOrUsername returns a user by their login identifier.
func (s *Service) GetByEmailOrUsername(ctx context.Context, emailOrUsername string) (*User, error) {
	return s.repo.GetByEmailOrUsername(ctx, emailOrUsername)
}

// UpdateProfile changes the display name and login identifier.
func (s *Service) UpdateProfile(ctx context.Context, id, name, emailOrUsername string) (*User, error) {
	return s.repo.UpdateProfile(ctx, id, name, emailOrUsername)
}

// ChangePassword verifies the current password and stores a fresh hash of
// the new one.
func (s *Service) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !VerifyPassword(currentPassword, u.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

// UpdateAvatar stores the new avatar key and returns the previous one for
// cleanup.
func (s *Service) UpdateAvatar(ctx context.Context, id, avatarKey string) (string, error) {
	return s.repo.UpdateAvatar(ctx, id, avatarKey)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
