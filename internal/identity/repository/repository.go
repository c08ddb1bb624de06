package repository

import (
	"context"

	"frootex/backend/internal/identity/domain"
)

// Repository defines persistence for provider accounts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	Create(ctx context.Context, a *domain.Account) error
}
