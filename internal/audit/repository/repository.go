package repository

import (
	"context"

	"frootex/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, l *domain.AuditLog) error
	ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error)
}
