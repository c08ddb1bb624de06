package repository

import (
	"context"
	"database/sql"

	"frootex/backend/internal/audit/domain"
)

// PostgresRepository persists audit logs in the audit_logs table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists one audit log entry.
func (r *PostgresRepository) Create(ctx context.Context, l *domain.AuditLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, resource, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.ActorID, l.Action, l.Resource, l.IP, l.Metadata, l.CreatedAt)
	return err
}

// ListByActor returns the most recent entries for actorID, newest first.
func (r *PostgresRepository) ListByActor(ctx context.Context, actorID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, resource, ip, metadata, created_at
		 FROM audit_logs WHERE actor_id = $1
		 ORDER BY created_at DESC LIMIT $2`, actorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(&l.ID, &l.ActorID, &l.Action, &l.Resource, &l.IP, &l.Metadata, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
