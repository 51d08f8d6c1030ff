package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/quintal-io/authcore"
)

const userColumns = `id, email, password_hash, first_name, last_name, email_verified, is_active, last_login_at, created_at, updated_at`

// CreateUser describes the createuser operation and its observable behavior.
//
// CreateUser may return an error when input validation, dependency calls, or security checks fail.
// CreateUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateUser(ctx context.Context, input authcore.CreateUserInput) (authcore.User, error) {
	id := uuid.NewString()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		id, input.Email, input.PasswordHash, input.FirstName, input.LastName, input.EmailVerified,
	)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return authcore.User{}, authcore.ErrDuplicateEmail
		}
		return authcore.User{}, err
	}

	return user, nil
}

// UserByID describes the userbyid operation and its observable behavior.
//
// UserByID may return an error when input validation, dependency calls, or security checks fail.
// UserByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UserByID(ctx context.Context, userID string) (authcore.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// UserByEmail describes the userbyemail operation and its observable behavior.
//
// UserByEmail may return an error when input validation, dependency calls, or security checks fail.
// UserByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UserByEmail(ctx context.Context, email string) (authcore.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// UpdatePasswordHash describes the updatepasswordhash operation and its observable behavior.
//
// UpdatePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpdatePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, newHash,
	)
	if err != nil {
		return err
	}
	return requireRows(result)
}

// TouchLastLogin describes the touchlastlogin operation and its observable behavior.
//
// TouchLastLogin may return an error when input validation, dependency calls, or security checks fail.
// TouchLastLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = now() WHERE id = $1`,
		userID, at,
	)
	if err != nil {
		return err
	}
	return requireRows(result)
}

func scanUser(row *sql.Row) (authcore.User, error) {
	var (
		user        authcore.User
		lastLoginAt sql.NullTime
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.EmailVerified,
		&user.IsActive,
		&lastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.User{}, authcore.ErrNotFound
		}
		return authcore.User{}, err
	}

	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		user.LastLoginAt = &t
	}

	return user, nil
}

func requireRows(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrNotFound
	}
	return nil
}
