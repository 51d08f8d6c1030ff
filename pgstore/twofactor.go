package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quintal-io/authcore"
)

// UpsertPendingTwoFactor stores a pending enrollment secret. A re-run
// replaces the secret and clears any previous backup codes; a confirmed
// enrollment row is reset to pending only through this path, which the
// engine never takes while two-factor is enabled.
func (s *Store) UpsertPendingTwoFactor(ctx context.Context, userID string, secret string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO two_factor_auth (user_id, secret, is_enabled, verified_at)
		VALUES ($1, $2, FALSE, NULL)
		ON CONFLICT (user_id) DO UPDATE SET secret = EXCLUDED.secret, is_enabled = FALSE, verified_at = NULL`,
		userID, secret,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}

	return tx.Commit()
}

// TwoFactorByUserID describes the twofactorbyuserid operation and its observable behavior.
//
// TwoFactorByUserID may return an error when input validation, dependency calls, or security checks fail.
// TwoFactorByUserID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) TwoFactorByUserID(ctx context.Context, userID string) (authcore.TwoFactorRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, secret, is_enabled, verified_at FROM two_factor_auth WHERE user_id = $1`,
		userID,
	)

	var (
		record     authcore.TwoFactorRecord
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&record.UserID, &record.Secret, &record.Enabled, &verifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.TwoFactorRecord{}, authcore.ErrNotFound
		}
		return authcore.TwoFactorRecord{}, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		record.VerifiedAt = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code_hash FROM two_factor_backup_codes WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return authcore.TwoFactorRecord{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return authcore.TwoFactorRecord{}, err
		}
		record.BackupCodes = append(record.BackupCodes, hash)
	}
	if err := rows.Err(); err != nil {
		return authcore.TwoFactorRecord{}, err
	}

	return record, nil
}

// EnableTwoFactor describes the enabletwofactor operation and its observable behavior.
//
// EnableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// EnableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) EnableTwoFactor(ctx context.Context, userID string, backupCodeHashes []string, verifiedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE two_factor_auth SET is_enabled = TRUE, verified_at = $2 WHERE user_id = $1`,
		userID, verifiedAt,
	)
	if err != nil {
		return err
	}
	if err := requireRows(result); err != nil {
		return err
	}

	if err := replaceBackupCodesTx(ctx, tx, userID, backupCodeHashes); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceBackupCodes describes the replacebackupcodes operation and its observable behavior.
//
// ReplaceBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// ReplaceBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ReplaceBackupCodes(ctx context.Context, userID string, backupCodeHashes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceBackupCodesTx(ctx, tx, userID, backupCodeHashes); err != nil {
		return err
	}

	return tx.Commit()
}

// ConsumeBackupCode deletes the matching unused code. Delete-if-present is
// the single-use guarantee: two concurrent presentations of the same code
// cannot both see an affected row.
func (s *Store) ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM two_factor_backup_codes WHERE user_id = $1 AND code_hash = $2`,
		userID, codeHash,
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

// DeleteTwoFactor describes the deletetwofactor operation and its observable behavior.
//
// DeleteTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DeleteTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) DeleteTwoFactor(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM two_factor_auth WHERE user_id = $1`, userID)
	return err
}

func replaceBackupCodesTx(ctx context.Context, tx *sql.Tx, userID string, hashes []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM two_factor_backup_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}

	for _, hash := range hashes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO two_factor_backup_codes (user_id, code_hash) VALUES ($1, $2)`,
			userID, hash,
		); err != nil {
			return err
		}
	}

	return nil
}
