// Package user отдаёт данные пользователей с проверкой прав.
package user

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Repository чтение пользователей.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

// Service чтение пользователей.
type Service struct {
	repo Repository
}

// New создает новый экземпляр Service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// List возвращает всех пользователей. Доступно только администратору.
func (s *Service) List(ctx context.Context, caller models.Caller) ([]*models.User, error) {
	const op = "user.List"
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden(op, "admin role required")
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// Get возвращает пользователя id самому пользователю или администратору.
func (s *Service) Get(ctx context.Context, caller models.Caller, id string) (*models.User, error) {
	const op = "user.Get"
	if caller.ID != id && !caller.IsAdmin() {
		return nil, apperr.Forbidden(op, "you can only view your own account")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound(op, "user not found")
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
