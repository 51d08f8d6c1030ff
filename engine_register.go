package authcore

import (
	"context"
	"errors"
	"strings"
)

// normalizeEmail is applied to every address crossing an Engine boundary, so
// lookups always match the stored form regardless of caller casing.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a credential-backed account. The password must pass the
// configured strength policy; the returned User never carries the hash.
//
// Register may return an error when input validation, dependency calls, or security checks fail.
// Register does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (User, error) {
	if e == nil || e.store == nil {
		return User{}, ErrEngineNotReady
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return User{}, ErrInvalidCredentials.WithMessage("email required")
	}

	// A taken address is reported before the password policy runs; the unique
	// constraint on the store still catches a concurrent register.
	if _, err := e.store.UserByEmail(ctx, email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailExists, nil)
		return User{}, ErrEmailExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, storeFailure(err)
	}

	if err := e.policy.Check(input.Password); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", ErrWeakPassword, nil)
		return User{}, ErrWeakPassword.WithMessage(err.Error())
	}

	hash, err := e.passwordHash.Hash(input.Password)
	if err != nil {
		return User{}, err
	}

	user, err := e.store.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrEmailExists, nil)
			return User{}, ErrEmailExists
		}
		return User{}, storeFailure(err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, "", nil, nil)

	user.PasswordHash = ""
	return user, nil
}
