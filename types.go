package authcore

import (
	"context"
	"errors"
	"time"
)

// User is the full account record returned by [CredentialStore]. PasswordHash
// is empty for accounts created through an OAuth provider.
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	IsActive      bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RefreshTokenRecord is the persisted form of one opaque refresh token.
// TokenHash is the SHA-256 hex digest of the secret; the plaintext is never
// stored. FamilyID links every descendant of one login into a single lineage
// so reuse can revoke the whole chain.
type RefreshTokenRecord struct {
	ID         string
	UserID     string
	TokenHash  string
	FamilyID   string
	DeviceInfo string
	IPAddress  string
	IsRevoked  bool
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// TwoFactorRecord carries the TOTP enrollment state for one user. Secret is
// the base32-encoded shared secret. BackupCodes holds SHA-256 hex hashes of
// the unused single-use codes; consumed codes are removed.
type TwoFactorRecord struct {
	UserID      string
	Secret      string
	Enabled     bool
	BackupCodes []string
	VerifiedAt  *time.Time
}

// OAuthAccountRecord links a user to one external provider identity.
type OAuthAccountRecord struct {
	ID                string
	UserID            string
	Provider          string
	ProviderAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
}

// CreateUserInput is the input for [CredentialStore.CreateUser].
type CreateUserInput struct {
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
}

var (
	// ErrNotFound is returned by CredentialStore lookups when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by CredentialStore.CreateUser on an email collision.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// CredentialStore is the primary interface that callers must implement to
// integrate authcore with their database. It covers the four persisted
// entities: users, refresh tokens, two-factor enrollment, and linked OAuth
// accounts. Implementations must return [ErrNotFound] and [ErrDuplicateEmail]
// where documented; every other failure is treated as a backend error.
//
// RevokeRefreshTokenIfActive is the rotation primitive: it must revoke the
// row only if it is not already revoked and report whether the update landed,
// in a single atomic step (a conditional UPDATE with an affected-row check).
type CredentialStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (User, error)
	UserByID(ctx context.Context, userID string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	CreateRefreshToken(ctx context.Context, record RefreshTokenRecord) error
	RefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshTokenRecord, error)
	RevokeRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error)
	RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error

	UpsertPendingTwoFactor(ctx context.Context, userID string, secret string) error
	TwoFactorByUserID(ctx context.Context, userID string) (TwoFactorRecord, error)
	EnableTwoFactor(ctx context.Context, userID string, backupCodeHashes []string, verifiedAt time.Time) error
	ReplaceBackupCodes(ctx context.Context, userID string, backupCodeHashes []string) error
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)
	DeleteTwoFactor(ctx context.Context, userID string) error

	CreateOAuthAccount(ctx context.Context, record OAuthAccountRecord) error
	OAuthAccountByProvider(ctx context.Context, provider, providerAccountID string) (OAuthAccountRecord, error)
	UpdateOAuthTokens(ctx context.Context, accountID string, accessToken, refreshToken string, expiresAt *time.Time) error
	OAuthProvidersForUser(ctx context.Context, userID string) ([]string, error)
}

// ChallengeGuard marks temp-token identifiers as consumed so a step-up
// challenge can be answered at most once. Consume reports false when the
// identifier was already spent.
type ChallengeGuard interface {
	Consume(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// RegisterInput is the input for [Engine.Register].
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SessionResult is returned by every operation that mints a session. ExpiresIn
// is the access-token lifetime in seconds.
type SessionResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult is returned by [Engine.Login]. When the account has two-factor
// authentication enabled, Requires2FA is true, TempToken carries the step-up
// challenge, and the session fields are empty.
type LoginResult struct {
	SessionResult

	Requires2FA bool
	TempToken   string
}

// TwoFactorSetup holds the pending TOTP enrollment returned by
// [Engine.SetupTwoFactor]. ManualEntryKey is the secret grouped for typing
// into an authenticator app that cannot scan the provisioning URI.
type TwoFactorSetup struct {
	Secret         string
	ProvisionURI   string
	ManualEntryKey string
}

// AuthResult is returned by [Engine.Validate] for a verified access token.
type AuthResult struct {
	UserID string
	Email  string
}

// Profile is the redacted account projection returned by [Engine.Profile].
// It never includes the password hash, TOTP secret, or backup-code hashes.
type Profile struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	EmailVerified   bool
	IsActive        bool
	Has2FA          bool
	LinkedProviders []string
	LastLoginAt     *time.Time
	CreatedAt       time.Time
}

// OAuthProfile is the provider identity passed to
// [Engine.FindOrCreateOAuthUser] after the caller has completed the provider
// handshake.
type OAuthProfile struct {
	Provider          string
	ProviderAccountID string
	Email             string
	FirstName         string
	LastName          string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
}
