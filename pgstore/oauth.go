package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/quintal-io/authcore"
)

// CreateOAuthAccount describes the createoauthaccount operation and its observable behavior.
//
// CreateOAuthAccount may return an error when input validation, dependency calls, or security checks fail.
// CreateOAuthAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateOAuthAccount(ctx context.Context, record authcore.OAuthAccountRecord) error {
	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	var expiresAt sql.NullTime
	if record.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *record.ExpiresAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_accounts (id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, record.UserID, record.Provider, record.ProviderAccountID,
		record.AccessToken, record.RefreshToken, expiresAt,
	)
	return err
}

// OAuthAccountByProvider describes the oauthaccountbyprovider operation and its observable behavior.
//
// OAuthAccountByProvider may return an error when input validation, dependency calls, or security checks fail.
// OAuthAccountByProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) OAuthAccountByProvider(ctx context.Context, provider, providerAccountID string) (authcore.OAuthAccountRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at
		FROM oauth_accounts
		WHERE provider = $1 AND provider_account_id = $2`,
		provider, providerAccountID,
	)

	var (
		record    authcore.OAuthAccountRecord
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.Provider,
		&record.ProviderAccountID,
		&record.AccessToken,
		&record.RefreshToken,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcore.OAuthAccountRecord{}, authcore.ErrNotFound
		}
		return authcore.OAuthAccountRecord{}, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}

	return record, nil
}

// UpdateOAuthTokens describes the updateoauthtokens operation and its observable behavior.
//
// UpdateOAuthTokens may return an error when input validation, dependency calls, or security checks fail.
// UpdateOAuthTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpdateOAuthTokens(ctx context.Context, accountID string, accessToken, refreshToken string, expiresAt *time.Time) error {
	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE oauth_accounts SET access_token = $2, refresh_token = $3, expires_at = $4 WHERE id = $1`,
		accountID, accessToken, refreshToken, expires,
	)
	if err != nil {
		return err
	}
	return requireRows(result)
}

// OAuthProvidersForUser describes the oauthprovidersforuser operation and its observable behavior.
//
// OAuthProvidersForUser may return an error when input validation, dependency calls, or security checks fail.
// OAuthProvidersForUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) OAuthProvidersForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider FROM oauth_accounts WHERE user_id = $1 ORDER BY provider`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}

	return providers, rows.Err()
}
