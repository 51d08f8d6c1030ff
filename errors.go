package authcore

import "net/http"

// Error is the typed failure returned by all Engine operations. Code is a
// stable machine-readable identifier and Status is the HTTP-aligned severity
// class transports should map it to.
//
// Error instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Error struct {
	Code   string
	Status int

	message string
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Is reports whether target carries the same failure code, so derived
// instances (for example a weak-password error with a specific reason)
// still match their sentinel under errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a more specific message. The code
// and status class are preserved so errors.Is matching is unaffected.
func (e *Error) WithMessage(message string) *Error {
	if e == nil {
		return nil
	}
	return &Error{Code: e.Code, Status: e.Status, message: message}
}

func newError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, message: message}
}

var (
	// ErrEmailExists is an exported constant or variable used by the authentication engine.
	ErrEmailExists = newError("EMAIL_EXISTS", http.StatusConflict, "email already registered")
	// ErrWeakPassword is an exported constant or variable used by the authentication engine.
	ErrWeakPassword = newError("WEAK_PASSWORD", http.StatusBadRequest, "password does not meet strength requirements")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = newError("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	// ErrAccountDisabled is an exported constant or variable used by the authentication engine.
	ErrAccountDisabled = newError("ACCOUNT_DISABLED", http.StatusForbidden, "account disabled")
	// ErrUserNotFound is an exported constant or variable used by the authentication engine.
	ErrUserNotFound = newError("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	// ErrInvalidTempToken is an exported constant or variable used by the authentication engine.
	ErrInvalidTempToken = newError("INVALID_TEMP_TOKEN", http.StatusUnauthorized, "invalid or expired temporary token")
	// ErrInvalidTwoFactorCode is an exported constant or variable used by the authentication engine.
	ErrInvalidTwoFactorCode = newError("INVALID_2FA_CODE", http.StatusUnauthorized, "invalid two-factor code")
	// ErrInvalidRefreshToken is an exported constant or variable used by the authentication engine.
	ErrInvalidRefreshToken = newError("INVALID_REFRESH_TOKEN", http.StatusUnauthorized, "invalid refresh token")
	// ErrRefreshTokenExpired is an exported constant or variable used by the authentication engine.
	ErrRefreshTokenExpired = newError("REFRESH_TOKEN_EXPIRED", http.StatusUnauthorized, "refresh token expired")
	// ErrTokenReuseDetected is an exported constant or variable used by the authentication engine.
	ErrTokenReuseDetected = newError("TOKEN_REUSE_DETECTED", http.StatusUnauthorized, "refresh token reuse detected")
	// ErrTwoFactorAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorAlreadyEnabled = newError("2FA_ALREADY_ENABLED", http.StatusBadRequest, "two-factor authentication already enabled")
	// ErrTwoFactorNotSetup is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotSetup = newError("2FA_NOT_SETUP", http.StatusBadRequest, "two-factor authentication not set up")
	// ErrTwoFactorNotEnabled is an exported constant or variable used by the authentication engine.
	ErrTwoFactorNotEnabled = newError("2FA_NOT_ENABLED", http.StatusBadRequest, "two-factor authentication not enabled")
	// ErrInvalidPassword is an exported constant or variable used by the authentication engine.
	ErrInvalidPassword = newError("INVALID_PASSWORD", http.StatusUnauthorized, "invalid password")
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = newError("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = newError("ENGINE_NOT_READY", http.StatusInternalServerError, "engine not initialized")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = newError("STORE_UNAVAILABLE", http.StatusInternalServerError, "credential store unavailable")
)
