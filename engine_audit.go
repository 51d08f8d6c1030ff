package authcore

import (
	"context"
	"errors"
)

const (
	auditEventRegisterSuccess      = "register_success"
	auditEventRegisterFailure      = "register_failure"
	auditEventRegisterDuplicate    = "register_duplicate"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginTwoFactorStart  = "login_2fa_required"
	auditEventTwoFactorSuccess     = "2fa_success"
	auditEventTwoFactorFailure     = "2fa_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshInvalid       = "refresh_invalid"
	auditEventRefreshReuseDetected = "refresh_reuse_detected"
	auditEventLogout               = "logout"
	auditEventLogoutAll            = "logout_all"
	auditEventTwoFactorSetup       = "2fa_setup_requested"
	auditEventTwoFactorEnabled     = "2fa_enabled"
	auditEventTwoFactorDisabled    = "2fa_disabled"
	auditEventBackupCodesReplaced  = "backup_codes_regenerated"
	auditEventBackupCodeUsed       = "backup_code_used"
	auditEventOAuthLogin           = "oauth_login"
	auditEventOAuthUserCreated     = "oauth_user_created"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrRefreshExpired     AuditErrorCode = "refresh_expired"
	auditErrRefreshReuse       AuditErrorCode = "refresh_reuse"
	auditErrTwoFactorInvalid   AuditErrorCode = "2fa_invalid"
	auditErrTwoFactorState     AuditErrorCode = "2fa_state"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	// Timestamp, client IP and device metadata are stamped by the dispatcher.
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		FamilyID:  familyID,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidPassword):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrEmailExists):
		return auditErrDuplicate
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidTempToken),
		errors.Is(err, ErrInvalidRefreshToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrRefreshTokenExpired):
		return auditErrRefreshExpired
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrRefreshReuse
	case errors.Is(err, ErrInvalidTwoFactorCode):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrTwoFactorAlreadyEnabled),
		errors.Is(err, ErrTwoFactorNotSetup),
		errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorState
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
