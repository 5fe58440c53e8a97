package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmattos/bilheteria/internal/domain/models"
	"github.com/dmattos/bilheteria/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// UserService — административное управление пользователями.
// Пользователи никогда не удаляются физически, только деактивируются.
type UserService interface {
	Provision(ctx context.Context, username, password, role string) (*models.User, error)
	Deactivate(ctx context.Context, userID int64) error
}

type userService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
}

func NewUserService(log *slog.Logger, userRepo storage.UserStorage) UserService {
	return &userService{log: log, userRepo: userRepo}
}

func validRole(role string) bool {
	switch role {
	case models.RoleAdmin, models.RoleManager, models.RoleClerk:
		return true
	}
	return false
}

// Provision создаёт пользователя с bcrypt-хэшем пароля (соль добавляется автоматически).
func (s *userService) Provision(ctx context.Context, username, password, role string) (*models.User, error) {
	const op = "service.UserService.Provision"
	logger := s.log.With(slog.String("op", op), slog.String("username", username), slog.String("role", role))

	if username == "" {
		return nil, fmt.Errorf("%s: %w: username is required", op, ErrValidation)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%s: %w: password must be at least 8 characters", op, ErrValidation)
	}
	if !validRole(role) {
		return nil, fmt.Errorf("%s: %w: unknown role %q", op, ErrValidation, role)
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := s.userRepo.CreateUser(ctx, &models.User{
		Username: username,
		PassHash: passHash,
		Role:     role,
		IsActive: true,
	})
	if err != nil {
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w", op, err)
	}

	logger.Info("user provisioned", slog.Int64("userID", user.ID))
	return user, nil
}

func (s *userService) Deactivate(ctx context.Context, userID int64) error {
	const op = "service.UserService.Deactivate"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if err := s.userRepo.SetUserActive(ctx, userID, false); err != nil {
		logger.Error("failed to deactivate user", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("user deactivated")
	return nil
}
