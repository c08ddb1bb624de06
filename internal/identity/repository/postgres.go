package repository

import (
	"context"
	"database/sql"
	"errors"

	"frootex/backend/internal/identity/domain"
)

// PostgresRepository persists accounts in the accounts table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an account repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, phone, password_hash, created_at`

// GetByID returns the account for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByEmail returns the account with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// GetByPhone returns the account with the given phone number, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE phone = $1`, phone)
	return scanAccount(row)
}

// Create persists the account. The account must have ID set; it is not
// assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	email := sql.NullString{String: a.Email, Valid: a.Email != ""}
	phone := sql.NullString{String: a.Phone, Valid: a.Phone != ""}
	hash := sql.NullString{String: a.PasswordHash, Valid: a.PasswordHash != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, phone, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, email, phone, hash, a.CreatedAt)
	return err
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var a domain.Account
	var email, phone, hash sql.NullString
	err := row.Scan(&a.ID, &email, &phone, &hash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	a.Email = email.String
	a.Phone = phone.String
	a.PasswordHash = hash.String
	return &a, nil
}
