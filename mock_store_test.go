package authcore

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

// mockStore is an in-memory CredentialStore used by the engine tests.
type mockStore struct {
	mu sync.Mutex

	users         map[string]User
	refreshTokens map[string]RefreshTokenRecord
	twoFactor     map[string]TwoFactorRecord
	oauthAccounts map[string]OAuthAccountRecord

	nextID int

	failNext error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:         map[string]User{},
		refreshTokens: map[string]RefreshTokenRecord{},
		twoFactor:     map[string]TwoFactorRecord{},
		oauthAccounts: map[string]OAuthAccountRecord{},
	}
}

func (m *mockStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *mockStore) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return User{}, err
	}

	for _, u := range m.users {
		if u.Email == input.Email {
			return User{}, ErrDuplicateEmail
		}
	}

	m.nextID++
	now := time.Now()
	user := User{
		ID:            "u" + strconv.Itoa(m.nextID),
		Email:         input.Email,
		PasswordHash:  input.PasswordHash,
		FirstName:     input.FirstName,
		LastName:      input.LastName,
		EmailVerified: input.EmailVerified,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *mockStore) UserByID(ctx context.Context, userID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return User{}, err
	}

	user, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *mockStore) UserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return User{}, err
	}

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *mockStore) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.PasswordHash = newHash
	m.users[userID] = user
	return nil
}

func (m *mockStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.LastLoginAt = &at
	m.users[userID] = user
	return nil
}

func (m *mockStore) CreateRefreshToken(ctx context.Context, record RefreshTokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	m.refreshTokens[record.ID] = record
	return nil
}

func (m *mockStore) RefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshTokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return RefreshTokenRecord{}, err
	}

	for _, record := range m.refreshTokens {
		if record.TokenHash == tokenHash {
			return record, nil
		}
	}
	return RefreshTokenRecord{}, ErrNotFound
}

func (m *mockStore) RevokeRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return false, err
	}

	record, ok := m.refreshTokens[tokenID]
	if !ok || record.IsRevoked {
		return false, nil
	}
	record.IsRevoked = true
	m.refreshTokens[tokenID] = record
	return true, nil
}

func (m *mockStore) RevokeRefreshTokenByHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.refreshTokens {
		if record.TokenHash == tokenHash {
			record.IsRevoked = true
			m.refreshTokens[id] = record
		}
	}
	return nil
}

func (m *mockStore) RevokeFamily(ctx context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.refreshTokens {
		if record.FamilyID == familyID {
			record.IsRevoked = true
			m.refreshTokens[id] = record
		}
	}
	return nil
}

func (m *mockStore) RevokeAllForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, record := range m.refreshTokens {
		if record.UserID == userID {
			record.IsRevoked = true
			m.refreshTokens[id] = record
		}
	}
	return nil
}

func (m *mockStore) UpsertPendingTwoFactor(ctx context.Context, userID string, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.twoFactor[userID] = TwoFactorRecord{UserID: userID, Secret: secret}
	return nil
}

func (m *mockStore) TwoFactorByUserID(ctx context.Context, userID string) (TwoFactorRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return TwoFactorRecord{}, err
	}

	record, ok := m.twoFactor[userID]
	if !ok {
		return TwoFactorRecord{}, ErrNotFound
	}
	return record, nil
}

func (m *mockStore) EnableTwoFactor(ctx context.Context, userID string, backupCodeHashes []string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.twoFactor[userID]
	if !ok {
		return ErrNotFound
	}
	record.Enabled = true
	record.BackupCodes = append([]string(nil), backupCodeHashes...)
	record.VerifiedAt = &verifiedAt
	m.twoFactor[userID] = record
	return nil
}

func (m *mockStore) ReplaceBackupCodes(ctx context.Context, userID string, backupCodeHashes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.twoFactor[userID]
	if !ok {
		return ErrNotFound
	}
	record.BackupCodes = append([]string(nil), backupCodeHashes...)
	m.twoFactor[userID] = record
	return nil
}

func (m *mockStore) ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.twoFactor[userID]
	if !ok {
		return false, nil
	}
	for i, hash := range record.BackupCodes {
		if hash == codeHash {
			record.BackupCodes = append(record.BackupCodes[:i], record.BackupCodes[i+1:]...)
			m.twoFactor[userID] = record
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) DeleteTwoFactor(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.twoFactor, userID)
	return nil
}

func (m *mockStore) CreateOAuthAccount(ctx context.Context, record OAuthAccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.ID == "" {
		m.nextID++
		record.ID = "oa" + strconv.Itoa(m.nextID)
	}
	m.oauthAccounts[record.Provider+"/"+record.ProviderAccountID] = record
	return nil
}

func (m *mockStore) OAuthAccountByProvider(ctx context.Context, provider, providerAccountID string) (OAuthAccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.oauthAccounts[provider+"/"+providerAccountID]
	if !ok {
		return OAuthAccountRecord{}, ErrNotFound
	}
	return record, nil
}

func (m *mockStore) UpdateOAuthTokens(ctx context.Context, accountID string, accessToken, refreshToken string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, record := range m.oauthAccounts {
		if record.ID == accountID {
			record.AccessToken = accessToken
			record.RefreshToken = refreshToken
			record.ExpiresAt = expiresAt
			m.oauthAccounts[key] = record
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockStore) OAuthProvidersForUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var providers []string
	for _, record := range m.oauthAccounts {
		if record.UserID == userID {
			providers = append(providers, record.Provider)
		}
	}
	return providers, nil
}

func (m *mockStore) refreshTokenCount(revoked bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, record := range m.refreshTokens {
		if record.IsRevoked == revoked {
			n++
		}
	}
	return n
}

func engineTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	// Minimum argon2 cost keeps the tests fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, store *mockStore) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(engineTestConfig()).
		WithStore(store).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}

func registerTestUser(t *testing.T, engine *Engine, email string) User {
	t.Helper()

	user, err := engine.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "correct-password-123",
		FirstName: "Alice",
		LastName:  "Smith",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return user
}
