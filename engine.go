package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/quintal-io/authcore/password"
	"github.com/quintal-io/authcore/token"
)

// Engine is the authentication orchestrator. All methods are safe for
// concurrent use after construction through [Builder.Build].
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config Config

	store CredentialStore
	guard ChallengeGuard

	codec        *token.Codec
	passwordHash *password.Argon2
	policy       password.Policy
	totp         *totpManager

	audit   *auditDispatcher
	metrics *Metrics
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func storeFailure(err error) error {
	return ErrStoreUnavailable.WithMessage("credential store failure: " + err.Error())
}

// Login verifies the email/password pair. When the account has two-factor
// authentication enabled it returns a temp token instead of a session; the
// caller completes the login through [Engine.ValidateTwoFactor].
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, email, plainPassword string) (LoginResult, error) {
	if e == nil || e.store == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	user, err := e.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, nil)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, storeFailure(err)
	}

	// Accounts created through an OAuth provider have no password hash and
	// cannot log in with credentials.
	if user.PasswordHash == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrAccountDisabled, nil)
		return LoginResult{}, ErrAccountDisabled
	}

	ok, err := e.passwordHash.Verify(plainPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, "", ErrInvalidCredentials, nil)
		return LoginResult{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnLogin {
		if upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && upgrade {
			if newHash, err := e.passwordHash.Hash(plainPassword); err == nil {
				_ = e.store.UpdatePasswordHash(ctx, user.ID, newHash)
			}
		}
	}

	twoFactor, err := e.store.TwoFactorByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return LoginResult{}, storeFailure(err)
	}
	if err == nil && twoFactor.Enabled {
		tempToken, _, err := e.codec.IssueTemp(user.ID)
		if err != nil {
			return LoginResult{}, err
		}

		e.metricInc(MetricTwoFactorRequired)
		e.emitAudit(ctx, auditEventLoginTwoFactorStart, true, user.ID, "", nil, nil)

		return LoginResult{Requires2FA: true, TempToken: tempToken}, nil
	}

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, "", nil, nil)

	return LoginResult{SessionResult: session}, nil
}

// ValidateTwoFactor completes a two-factor login. It accepts the temp token
// from [Engine.Login] plus either a current TOTP code or an unused backup
// code, and mints a full session on success. With a challenge guard
// configured, each temp token is accepted at most once, and the token is
// consumed before the code is checked: a wrong code spends the challenge and
// the caller restarts from [Engine.Login] rather than retrying the token.
//
// ValidateTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// ValidateTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateTwoFactor(ctx context.Context, tempToken, code string) (SessionResult, error) {
	if e == nil || e.store == nil {
		return SessionResult{}, ErrEngineNotReady
	}

	claims, err := e.codec.ParseTemp(tempToken)
	if err != nil {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, "", "", ErrInvalidTempToken, nil)
		return SessionResult{}, ErrInvalidTempToken
	}

	if e.guard != nil {
		fresh, err := e.guard.Consume(ctx, claims.ID, e.config.Token.TempTTL)
		if err != nil {
			return SessionResult{}, ErrStoreUnavailable.WithMessage("challenge guard failure: " + err.Error())
		}
		if !fresh {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, claims.UserID, "", ErrInvalidTempToken, nil)
			return SessionResult{}, ErrInvalidTempToken
		}
	}

	user, err := e.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SessionResult{}, ErrUserNotFound
		}
		return SessionResult{}, storeFailure(err)
	}

	twoFactor, err := e.store.TwoFactorByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SessionResult{}, ErrUserNotFound
		}
		return SessionResult{}, storeFailure(err)
	}
	if !twoFactor.Enabled {
		return SessionResult{}, ErrInvalidTempToken
	}

	verified, err := e.totp.VerifyCode(twoFactor.Secret, code, time.Now())
	if err != nil {
		return SessionResult{}, err
	}

	usedBackupCode := false
	if !verified {
		// A code that is not a valid TOTP may still be a backup code.
		canonical := CanonicalizeBackupCode(code)
		consumed, err := e.store.ConsumeBackupCode(ctx, user.ID, backupCodeHash(user.ID, canonical))
		if err != nil && !errors.Is(err, ErrNotFound) {
			return SessionResult{}, storeFailure(err)
		}
		if !consumed {
			e.metricInc(MetricTwoFactorFailure)
			e.emitAudit(ctx, auditEventTwoFactorFailure, false, user.ID, "", ErrInvalidTwoFactorCode, nil)
			return SessionResult{}, ErrInvalidTwoFactorCode
		}
		usedBackupCode = true
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, user.ID, "", nil, nil)
	}

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}

	e.metricInc(MetricTwoFactorSuccess)
	e.emitAudit(ctx, auditEventTwoFactorSuccess, true, user.ID, "", nil, func() map[string]string {
		if !usedBackupCode {
			return nil
		}
		return map[string]string{"method": "backup_code"}
	})

	return session, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// one is minted in the same family, together with a fresh access token.
// Presenting an already-revoked token is treated as theft and revokes the
// entire family.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (SessionResult, error) {
	if e == nil || e.store == nil {
		return SessionResult{}, ErrEngineNotReady
	}

	record, err := e.store.RefreshTokenByHash(ctx, token.HashRefreshSecret(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", ErrInvalidRefreshToken, nil)
			return SessionResult{}, ErrInvalidRefreshToken
		}
		return SessionResult{}, storeFailure(err)
	}

	if record.IsRevoked {
		return SessionResult{}, e.revokeFamilyOnReuse(ctx, record)
	}

	if time.Now().After(record.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, record.UserID, record.FamilyID, ErrRefreshTokenExpired, nil)
		return SessionResult{}, ErrRefreshTokenExpired
	}

	user, err := e.store.UserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			return SessionResult{}, ErrInvalidRefreshToken
		}
		return SessionResult{}, storeFailure(err)
	}
	if !user.IsActive {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.ID, record.FamilyID, ErrAccountDisabled, nil)
		return SessionResult{}, ErrAccountDisabled
	}

	// Conditional revocation is the rotation point: exactly one concurrent
	// caller can win. The loser observes an already-revoked row, which is
	// indistinguishable from token theft.
	rotated, err := e.store.RevokeRefreshTokenIfActive(ctx, record.ID)
	if err != nil {
		return SessionResult{}, storeFailure(err)
	}
	if !rotated {
		return SessionResult{}, e.revokeFamilyOnReuse(ctx, record)
	}

	session, err := e.mintSession(ctx, user, record.FamilyID, record.DeviceInfo, record.IPAddress)
	if err != nil {
		return SessionResult{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, record.FamilyID, nil, nil)

	return session, nil
}

func (e *Engine) revokeFamilyOnReuse(ctx context.Context, record RefreshTokenRecord) error {
	if err := e.store.RevokeFamily(ctx, record.FamilyID); err != nil {
		return storeFailure(err)
	}

	e.metricInc(MetricRefreshReuseDetected)
	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, record.UserID, record.FamilyID, ErrTokenReuseDetected, nil)

	return ErrTokenReuseDetected
}

// Logout revokes the presented refresh token. Unknown or already-revoked
// tokens are not an error, so repeated logout calls are idempotent.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	err := e.store.RevokeRefreshTokenByHash(ctx, token.HashRefreshSecret(refreshToken))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return storeFailure(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", "", nil, nil)

	return nil
}

// LogoutAll revokes every refresh token belonging to userID, ending all of
// the user's sessions once their current access tokens expire.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.RevokeAllForUser(ctx, userID); err != nil {
		return storeFailure(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)

	return nil
}

// Validate checks an access token and returns its identity claims. It is the
// hot path: purely computational, no store round-trips.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Validate(tokenStr string) (AuthResult, error) {
	if e == nil || e.codec == nil {
		return AuthResult{}, ErrEngineNotReady
	}

	start := time.Now()
	claims, err := e.codec.ParseAccess(tokenStr)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return AuthResult{}, ErrUnauthorized
	}

	return AuthResult{UserID: claims.UserID, Email: claims.Email}, nil
}

// Profile returns the redacted account projection for userID, including the
// two-factor flag and linked OAuth providers. Credential material is never
// part of the result.
//
// Profile may return an error when input validation, dependency calls, or security checks fail.
// Profile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Profile(ctx context.Context, userID string) (Profile, error) {
	if e == nil || e.store == nil {
		return Profile{}, ErrEngineNotReady
	}

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, storeFailure(err)
	}

	has2FA := false
	twoFactor, err := e.store.TwoFactorByUserID(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Profile{}, storeFailure(err)
	}
	if err == nil {
		has2FA = twoFactor.Enabled
	}

	providers, err := e.store.OAuthProvidersForUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Profile{}, storeFailure(err)
	}

	return Profile{
		ID:              user.ID,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		EmailVerified:   user.EmailVerified,
		IsActive:        user.IsActive,
		Has2FA:          has2FA,
		LinkedProviders: providers,
		LastLoginAt:     user.LastLoginAt,
		CreatedAt:       user.CreatedAt,
	}, nil
}

// issueSession mints the access token and the first refresh token of a new
// family. Every session mint path funnels through here so the active-account
// check cannot be bypassed.
func (e *Engine) issueSession(ctx context.Context, user User) (SessionResult, error) {
	if !user.IsActive {
		return SessionResult{}, ErrAccountDisabled
	}
	return e.mintSession(ctx, user, token.NewFamilyID(), "", "")
}

func (e *Engine) mintSession(ctx context.Context, user User, familyID, fallbackDevice, fallbackIP string) (SessionResult, error) {
	accessToken, err := e.codec.IssueAccess(user.ID, user.Email)
	if err != nil {
		return SessionResult{}, err
	}

	secret, err := token.NewRefreshSecret()
	if err != nil {
		return SessionResult{}, err
	}

	deviceInfo := deviceInfoFromContext(ctx)
	if deviceInfo == "" {
		deviceInfo = fallbackDevice
	}
	ip := clientIPFromContext(ctx)
	if ip == "" {
		ip = fallbackIP
	}

	now := time.Now()
	record := RefreshTokenRecord{
		ID:         token.NewTokenID(),
		UserID:     user.ID,
		TokenHash:  token.HashRefreshSecret(secret),
		FamilyID:   familyID,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
		ExpiresAt:  now.Add(e.config.Refresh.TTL),
		CreatedAt:  now,
	}

	if err := e.store.CreateRefreshToken(ctx, record); err != nil {
		return SessionResult{}, storeFailure(err)
	}

	_ = e.store.TouchLastLogin(ctx, user.ID, now)

	e.metricInc(MetricSessionCreated)

	return SessionResult{
		AccessToken:  accessToken,
		RefreshToken: secret,
		ExpiresIn:    int64(e.config.Token.AccessTTL.Seconds()),
	}, nil
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The Engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}
