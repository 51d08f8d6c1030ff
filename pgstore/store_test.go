package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/quintal-io/authcore"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := New(db)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return store, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func userRows(id, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name",
		"email_verified", "is_active", "last_login_at", "created_at", "updated_at",
	}).AddRow(id, email, "phc-hash", "Alice", "Smith", false, true, nil, now, now)
}

func TestCreateUser(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "phc-hash", "Alice", "Smith", false).
		WillReturnRows(userRows("u1", "alice@example.com"))

	user, err := store.CreateUser(context.Background(), authcore.CreateUserInput{
		Email:        "alice@example.com",
		PasswordHash: "phc-hash",
		FirstName:    "Alice",
		LastName:     "Smith",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID != "u1" || !user.IsActive {
		t.Errorf("unexpected user: %+v", user)
	}

	expectationsMet(t, mock)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	_, err := store.CreateUser(context.Background(), authcore.CreateUserInput{Email: "alice@example.com"})
	if !errors.Is(err, authcore.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestUserByEmailNotFound(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.UserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestRevokeRefreshTokenIfActive(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = \$1 AND NOT is_revoked`).
		WithArgs("rt1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	rotated, err := store.RevokeRefreshTokenIfActive(context.Background(), "rt1")
	if err != nil {
		t.Fatalf("RevokeRefreshTokenIfActive failed: %v", err)
	}
	if !rotated {
		t.Error("expected the revocation to land")
	}

	// Second caller loses the conditional update.
	mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = \$1 AND NOT is_revoked`).
		WithArgs("rt1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	rotated, err = store.RevokeRefreshTokenIfActive(context.Background(), "rt1")
	if err != nil {
		t.Fatalf("RevokeRefreshTokenIfActive failed: %v", err)
	}
	if rotated {
		t.Error("already-revoked token reported as rotated")
	}

	expectationsMet(t, mock)
}

func TestRefreshTokenByHash(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens\s+WHERE token_hash = \$1`).
		WithArgs("hash-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "token_hash", "family_id", "device_info",
			"ip_address", "is_revoked", "expires_at", "created_at",
		}).AddRow("rt1", "u1", "hash-1", "fam-1", "cli", "127.0.0.1", false, now.Add(time.Hour), now))

	record, err := store.RefreshTokenByHash(context.Background(), "hash-1")
	if err != nil {
		t.Fatalf("RefreshTokenByHash failed: %v", err)
	}
	if record.ID != "rt1" || record.FamilyID != "fam-1" || record.IsRevoked {
		t.Errorf("unexpected record: %+v", record)
	}

	mock.ExpectQuery(`SELECT .+ FROM refresh_tokens\s+WHERE token_hash = \$1`).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.RefreshTokenByHash(context.Background(), "unknown"); !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestRevokeFamily(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE refresh_tokens SET is_revoked = TRUE WHERE family_id = \$1 AND NOT is_revoked`).
		WithArgs("fam-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := store.RevokeFamily(context.Background(), "fam-1"); err != nil {
		t.Fatalf("RevokeFamily failed: %v", err)
	}

	expectationsMet(t, mock)
}

func TestConsumeBackupCode(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`DELETE FROM two_factor_backup_codes WHERE user_id = \$1 AND code_hash = \$2`).
		WithArgs("u1", "hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	consumed, err := store.ConsumeBackupCode(context.Background(), "u1", "hash-1")
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if !consumed {
		t.Error("expected the code to be consumed")
	}

	// The code is gone on the second attempt.
	mock.ExpectExec(`DELETE FROM two_factor_backup_codes WHERE user_id = \$1 AND code_hash = \$2`).
		WithArgs("u1", "hash-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	consumed, err = store.ConsumeBackupCode(context.Background(), "u1", "hash-1")
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if consumed {
		t.Error("consumed code reported as consumed again")
	}

	expectationsMet(t, mock)
}

func TestEnableTwoFactor(t *testing.T) {
	store, mock := newTestStore(t)
	verifiedAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE two_factor_auth SET is_enabled = TRUE`).
		WithArgs("u1", verifiedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM two_factor_backup_codes WHERE user_id = \$1`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO two_factor_backup_codes`).
		WithArgs("u1", "hash-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO two_factor_backup_codes`).
		WithArgs("u1", "hash-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.EnableTwoFactor(context.Background(), "u1", []string{"hash-1", "hash-2"}, verifiedAt)
	if err != nil {
		t.Fatalf("EnableTwoFactor failed: %v", err)
	}

	expectationsMet(t, mock)
}

func TestEnableTwoFactorMissingEnrollment(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE two_factor_auth SET is_enabled = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.EnableTwoFactor(context.Background(), "u1", nil, time.Now())
	if !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestTwoFactorByUserID(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT user_id, secret, is_enabled, verified_at FROM two_factor_auth`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "secret", "is_enabled", "verified_at"}).
			AddRow("u1", "JBSWY3DPEHPK3PXP", true, time.Now()))
	mock.ExpectQuery(`SELECT code_hash FROM two_factor_backup_codes`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"code_hash"}).AddRow("hash-1").AddRow("hash-2"))

	record, err := store.TwoFactorByUserID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("TwoFactorByUserID failed: %v", err)
	}
	if !record.Enabled || record.Secret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.BackupCodes) != 2 {
		t.Errorf("got %d backup codes, want 2", len(record.BackupCodes))
	}
	if record.VerifiedAt == nil {
		t.Error("VerifiedAt missing")
	}

	expectationsMet(t, mock)
}

func TestTouchLastLoginMissingUser(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE users SET last_login_at`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.TouchLastLogin(context.Background(), "missing", time.Now())
	if !errors.Is(err, authcore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	expectationsMet(t, mock)
}

func TestOAuthAccountLifecycle(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO oauth_accounts`).
		WithArgs(sqlmock.AnyArg(), "u1", "github", "gh-1", "at", "rt", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.CreateOAuthAccount(context.Background(), authcore.OAuthAccountRecord{
		UserID:            "u1",
		Provider:          "github",
		ProviderAccountID: "gh-1",
		AccessToken:       "at",
		RefreshToken:      "rt",
	})
	if err != nil {
		t.Fatalf("CreateOAuthAccount failed: %v", err)
	}

	mock.ExpectQuery(`SELECT provider FROM oauth_accounts WHERE user_id = \$1 ORDER BY provider`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"provider"}).AddRow("github").AddRow("google"))

	providers, err := store.OAuthProvidersForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("OAuthProvidersForUser failed: %v", err)
	}
	if len(providers) != 2 || providers[0] != "github" {
		t.Errorf("providers = %v", providers)
	}

	expectationsMet(t, mock)
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New accepted a nil db handle")
	}
}
