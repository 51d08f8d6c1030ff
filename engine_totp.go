package authcore

import (
	"context"
	"errors"
	"time"
)

// SetupTwoFactor begins TOTP enrollment: it generates a secret, stores it as
// pending, and returns the provisioning material. The enrollment only takes
// effect after [Engine.ConfirmTwoFactor] proves the authenticator works.
//
// SetupTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// SetupTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) SetupTwoFactor(ctx context.Context, userID string) (TwoFactorSetup, error) {
	if e == nil || e.store == nil {
		return TwoFactorSetup{}, ErrEngineNotReady
	}

	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TwoFactorSetup{}, ErrUserNotFound
		}
		return TwoFactorSetup{}, storeFailure(err)
	}

	existing, err := e.store.TwoFactorByUserID(ctx, user.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return TwoFactorSetup{}, storeFailure(err)
	}
	if err == nil && existing.Enabled {
		return TwoFactorSetup{}, ErrTwoFactorAlreadyEnabled
	}

	// Re-running setup replaces any pending secret; only a confirmed
	// enrollment is protected.
	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}

	if err := e.store.UpsertPendingTwoFactor(ctx, user.ID, secret); err != nil {
		return TwoFactorSetup{}, storeFailure(err)
	}

	e.emitAudit(ctx, auditEventTwoFactorSetup, true, user.ID, "", nil, nil)

	return TwoFactorSetup{
		Secret:         secret,
		ProvisionURI:   e.totp.ProvisionURI(secret, user.Email),
		ManualEntryKey: e.totp.ManualEntryKey(secret),
	}, nil
}

// ConfirmTwoFactor verifies a code against the pending secret and switches
// two-factor authentication on. It returns the freshly generated backup
// codes in plaintext; this is the only time they are visible.
//
// ConfirmTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// ConfirmTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmTwoFactor(ctx context.Context, userID, code string) ([]string, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	record, err := e.store.TwoFactorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTwoFactorNotSetup
		}
		return nil, storeFailure(err)
	}
	if record.Enabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	verified, err := e.totp.VerifyCode(record.Secret, code, time.Now())
	if err != nil {
		return nil, err
	}
	if !verified {
		e.metricInc(MetricTwoFactorFailure)
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, "", ErrInvalidTwoFactorCode, nil)
		return nil, ErrInvalidTwoFactorCode
	}

	plaintext, hashes, err := generateBackupCodes(userID, e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, err
	}

	if err := e.store.EnableTwoFactor(ctx, userID, hashes, time.Now()); err != nil {
		return nil, storeFailure(err)
	}

	e.metricInc(MetricTwoFactorEnabled)
	e.emitAudit(ctx, auditEventTwoFactorEnabled, true, userID, "", nil, nil)

	return plaintext, nil
}

// DisableTwoFactor turns two-factor authentication off after re-proving the
// account password. The enrollment record, including backup codes, is
// deleted.
//
// DisableTwoFactor may return an error when input validation, dependency calls, or security checks fail.
// DisableTwoFactor does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, plainPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.reprovePassword(ctx, userID, plainPassword); err != nil {
		return err
	}

	record, err := e.store.TwoFactorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTwoFactorNotEnabled
		}
		return storeFailure(err)
	}
	if !record.Enabled {
		return ErrTwoFactorNotEnabled
	}

	if err := e.store.DeleteTwoFactor(ctx, userID); err != nil {
		return storeFailure(err)
	}

	e.metricInc(MetricTwoFactorDisabled)
	e.emitAudit(ctx, auditEventTwoFactorDisabled, true, userID, "", nil, nil)

	return nil
}

// RegenerateBackupCodes replaces every backup code after re-proving the
// account password. Previously issued codes stop working immediately. The
// new codes are returned in plaintext exactly once.
//
// RegenerateBackupCodes may return an error when input validation, dependency calls, or security checks fail.
// RegenerateBackupCodes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, plainPassword string) ([]string, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.reprovePassword(ctx, userID, plainPassword); err != nil {
		return nil, err
	}

	record, err := e.store.TwoFactorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTwoFactorNotEnabled
		}
		return nil, storeFailure(err)
	}
	if !record.Enabled {
		return nil, ErrTwoFactorNotEnabled
	}

	plaintext, hashes, err := generateBackupCodes(userID, e.config.TOTP.BackupCodeCount, e.config.TOTP.BackupCodeLength)
	if err != nil {
		return nil, err
	}

	if err := e.store.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		return nil, storeFailure(err)
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.emitAudit(ctx, auditEventBackupCodesReplaced, true, userID, "", nil, nil)

	return plaintext, nil
}

// reprovePassword guards the destructive two-factor operations: a stolen
// session alone must not be enough to weaken the second factor.
func (e *Engine) reprovePassword(ctx context.Context, userID, plainPassword string) error {
	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUserNotFound
		}
		return storeFailure(err)
	}

	if user.PasswordHash == "" {
		return ErrInvalidPassword
	}

	ok, err := e.passwordHash.Verify(plainPassword, user.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventTwoFactorFailure, false, userID, "", ErrInvalidPassword, nil)
		return ErrInvalidPassword
	}

	return nil
}
