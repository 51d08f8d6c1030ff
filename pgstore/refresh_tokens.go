package pgstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/quintal-io/authcore"
)

// CreateRefreshToken describes the createrefreshtoken operation and its observable behavior.
//
// CreateRefreshToken may return an error when input validation, dependency calls, or security checks fail.
// CreateRefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateRefreshToken(ctx context.Context, record authcore.RefreshTokenRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, family_id, device_info, ip_address, is_revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		record.ID, record.UserID, record.TokenHash, record.FamilyID,
		record.DeviceInfo, record.IPAddress, record.IsRevoked, record.ExpiresAt, record.CreatedAt,
	)
	return err
}

// RefreshTokenByHash describes the refreshtokenbyhash operation and its observable behavior.
//
// RefreshTokenByHash may return an error when input validation, dependency calls, or security checks fail.
// RefreshTokenByHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RefreshTokenByHash(ctx context.Context, tokenHash string) (authcore.RefreshTokenRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, family_id, device_info, ip_address, is_revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1`,
		tokenHash,
	)

	var record authcore.RefreshTokenRecord
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.TokenHash,
		&record.FamilyID,
		&record.DeviceInfo,
		&record.IPAddress,
		&record.IsRevoked,
		&record.ExpiresAt,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.RefreshTokenRecord{}, authcore.ErrNotFound
		}
		return authcore.RefreshTokenRecord{}, err
	}

	return record, nil
}

// RevokeRefreshTokenIfActive revokes the token only when it has not been
// revoked yet, in one conditional UPDATE. The affected-row count decides the
// rotation race: zero rows means another caller got there first.
func (s *Store) RevokeRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1 AND NOT is_revoked`,
		tokenID,
	)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeRefreshTokenByHash describes the revokerefreshtokenbyhash operation and its observable behavior.
//
// RevokeRefreshTokenByHash may return an error when input validation, dependency calls, or security checks fail.
// RevokeRefreshTokenByHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE token_hash = $1 AND NOT is_revoked`,
		tokenHash,
	)
	return err
}

// RevokeFamily describes the revokefamily operation and its observable behavior.
//
// RevokeFamily may return an error when input validation, dependency calls, or security checks fail.
// RevokeFamily does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RevokeFamily(ctx context.Context, familyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE family_id = $1 AND NOT is_revoked`,
		familyID,
	)
	return err
}

// RevokeAllForUser describes the revokeallforuser operation and its observable behavior.
//
// RevokeAllForUser may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllForUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND NOT is_revoked`,
		userID,
	)
	return err
}
