package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swanith1234/LibraryManagementSystem/internal/apiclient"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/model"
	"github.com/swanith1234/LibraryManagementSystem/internal/domain/rbac"
)

// UserAPI — операции REST API над пользователями и профилями.
type UserAPI interface {
	ListUsers(ctx context.Context) (*apiclient.UserList, error)
	SearchUsers(ctx context.Context, query string) ([]model.User, error)
	UpdateUserRole(ctx context.Context, userID string, role rbac.Role) error
	DeleteUser(ctx context.Context, userID string) error
	DashboardSummary(ctx context.Context) (*model.DashboardSummary, error)
	ProfileByID(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) (*model.User, error)
	Register(ctx context.Context, reg apiclient.Registration) (*model.User, error)
}

// UserService — администрирование пользователей и профили.
type UserService struct {
	api    UserAPI
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(api UserAPI, logger *slog.Logger) *UserService {
	return &UserService{
		api:    api,
		logger: logger.With(slog.String("component", "users")),
	}
}

// List возвращает всех пользователей или результаты поиска по username/email.
func (s *UserService) List(ctx context.Context, query string) ([]model.User, error) {
	query = strings.TrimSpace(query)
	if query != "" {
		users, err := s.api.SearchUsers(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("поиск пользователей: %w", err)
		}
		return users, nil
	}

	list, err := s.api.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("список пользователей: %w", err)
	}
	return list.Users, nil
}

// ChangeRole меняет роль пользователя. Собственную роль изменить нельзя.
func (s *UserService) ChangeRole(ctx context.Context, actor *model.User, userID, role string) error {
	r, err := rbac.ParseRole(role)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if actor != nil && actor.ID == userID {
		return fmt.Errorf("%w: нельзя изменить собственную роль", ErrValidation)
	}

	if err := s.api.UpdateUserRole(ctx, userID, r); err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("пользователь %s: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("смена роли %s: %w", userID, err)
	}
	s.logger.Info("Роль пользователя изменена",
		slog.String("user_id", userID),
		slog.String("role", r.String()),
	)
	return nil
}

// Delete удаляет пользователя. Удалить самого себя нельзя.
func (s *UserService) Delete(ctx context.Context, actor *model.User, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: не указан пользователь", ErrValidation)
	}
	if actor != nil && actor.ID == userID {
		return fmt.Errorf("%w: нельзя удалить собственную учётную запись", ErrValidation)
	}
	if err := s.api.DeleteUser(ctx, userID); err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("пользователь %s: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("удаление пользователя %s: %w", userID, err)
	}
	s.logger.Info("Пользователь удалён", slog.String("user_id", userID))
	return nil
}

// Summary возвращает сводку дашборда администратора.
func (s *UserService) Summary(ctx context.Context) (*model.DashboardSummary, error) {
	sum, err := s.api.DashboardSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("сводка дашборда: %w", err)
	}
	return sum, nil
}

// Profile возвращает профиль другого пользователя.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.api.ProfileByID(ctx, userID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("профиль %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("профиль %s: %w", userID, err)
	}
	return u, nil
}

// UpdateProfile проверяет и сохраняет изменения собственного профиля.
func (s *UserService) UpdateProfile(ctx context.Context, upd apiclient.ProfileUpdate) (*model.User, error) {
	upd.FullName = strings.TrimSpace(upd.FullName)
	upd.Phone = strings.TrimSpace(upd.Phone)
	upd.Address = strings.TrimSpace(upd.Address)
	if err := validateStruct(upd); err != nil {
		return nil, err
	}
	u, err := s.api.UpdateProfile(ctx, upd)
	if err != nil {
		return nil, fmt.Errorf("изменение профиля: %w", err)
	}
	return u, nil
}

// Register проверяет форму и регистрирует пользователя.
func (s *UserService) Register(ctx context.Context, reg apiclient.Registration) (*model.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validateStruct(reg); err != nil {
		return nil, err
	}
	u, err := s.api.Register(ctx, reg)
	if err != nil {
		return nil, fmt.Errorf("регистрация: %w", err)
	}
	s.logger.Info("Пользователь зарегистрирован", slog.String("username", reg.Username))
	return u, nil
}
