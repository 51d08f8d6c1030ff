package authcore

import (
	"context"
	"errors"
	"strings"
)

// FindOrCreateOAuthUser resolves a completed provider login to a local
// account and mints a session for it. An existing link refreshes the stored
// provider tokens; an unknown identity is linked to the account matching the
// profile email, creating the account first if necessary. Accounts created
// this way have no password hash and a verified email.
//
// FindOrCreateOAuthUser may return an error when input validation, dependency calls, or security checks fail.
// FindOrCreateOAuthUser does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FindOrCreateOAuthUser(ctx context.Context, profile OAuthProfile) (SessionResult, error) {
	if e == nil || e.store == nil {
		return SessionResult{}, ErrEngineNotReady
	}

	if profile.Provider == "" || profile.ProviderAccountID == "" {
		return SessionResult{}, ErrInvalidCredentials.WithMessage("provider identity required")
	}

	account, err := e.store.OAuthAccountByProvider(ctx, profile.Provider, profile.ProviderAccountID)
	switch {
	case err == nil:
		if err := e.store.UpdateOAuthTokens(ctx, account.ID, profile.AccessToken, profile.RefreshToken, profile.ExpiresAt); err != nil {
			return SessionResult{}, storeFailure(err)
		}
		return e.oauthSession(ctx, account.UserID)

	case errors.Is(err, ErrNotFound):
		// fall through to email-based resolution

	default:
		return SessionResult{}, storeFailure(err)
	}

	email := normalizeEmail(profile.Email)
	if email == "" {
		return SessionResult{}, ErrInvalidCredentials.WithMessage("provider profile has no email")
	}

	created := false
	user, err := e.store.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		// The provider has already verified ownership of this address.
		user, err = e.store.CreateUser(ctx, CreateUserInput{
			Email:         email,
			FirstName:     strings.TrimSpace(profile.FirstName),
			LastName:      strings.TrimSpace(profile.LastName),
			EmailVerified: true,
		})
		created = err == nil
	}
	if err != nil {
		return SessionResult{}, storeFailure(err)
	}

	if err := e.store.CreateOAuthAccount(ctx, OAuthAccountRecord{
		UserID:            user.ID,
		Provider:          profile.Provider,
		ProviderAccountID: profile.ProviderAccountID,
		AccessToken:       profile.AccessToken,
		RefreshToken:      profile.RefreshToken,
		ExpiresAt:         profile.ExpiresAt,
	}); err != nil {
		return SessionResult{}, storeFailure(err)
	}

	if created {
		e.metricInc(MetricOAuthUserCreated)
		e.emitAudit(ctx, auditEventOAuthUserCreated, true, user.ID, "", nil, func() map[string]string {
			return map[string]string{"provider": profile.Provider}
		})
	}

	return e.oauthSession(ctx, user.ID)
}

func (e *Engine) oauthSession(ctx context.Context, userID string) (SessionResult, error) {
	user, err := e.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SessionResult{}, ErrUserNotFound
		}
		return SessionResult{}, storeFailure(err)
	}

	session, err := e.issueSession(ctx, user)
	if err != nil {
		return SessionResult{}, err
	}

	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, auditEventOAuthLogin, true, user.ID, "", nil, nil)

	return session, nil
}
