package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, name, role, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

// GetUserByID loads an account by primary key.
func (s *Store) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail performs a case-insensitive account lookup.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower(trim($1))`, email)
	return scanUser(row)
}

// CreateUserParams names the columns for a new account.
type CreateUserParams struct {
	Email        string
	Name         string
	Role         string
	PasswordHash string
}

// CreateUser inserts an account; used by the seeder.
func (s *Store) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, name, role, password_hash)
		VALUES (lower(trim($1)), $2, $3, $4)
		RETURNING `+userColumns,
		arg.Email, arg.Name, arg.Role, arg.PasswordHash)
	return scanUser(row)
}
