package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quintal-io/authcore"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName,omitempty"`
	LastName      string     `json:"lastName,omitempty"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type loginResponse struct {
	sessionResponse

	Requires2FA bool   `json:"requires2FA,omitempty"`
	TempToken   string `json:"tempToken,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type validateTwoFactorRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

type twoFactorSetupResponse struct {
	Secret         string `json:"secret"`
	QRCodeURL      string `json:"qrCodeUrl"`
	ManualEntryKey string `json:"manualEntryKey"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type backupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

type profileResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName,omitempty"`
	LastName        string     `json:"lastName,omitempty"`
	EmailVerified   bool       `json:"emailVerified"`
	Has2FA          bool       `json:"has2FA"`
	LinkedProviders []string   `json:"linkedProviders"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func decode(r *http.Request, into any) bool {
	return json.NewDecoder(r.Body).Decode(into) == nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(r, &req) {
		badRequest(w, "invalid request body")
		return
	}

	user, err := s.engine.Register(r.Context(), authcore.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(r, &req) {
		badRequest(w, "invalid request body")
		return
	}

	result, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		sessionResponse: sessionResponse{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			ExpiresIn:    result.ExpiresIn,
		},
		Requires2FA: result.Requires2FA,
		TempToken:   result.TempToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(r, &req) || req.RefreshToken == "" {
		badRequest(w, "refreshToken required")
		return
	}

	session, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(r, &req) || req.RefreshToken == "" {
		badRequest(w, "refreshToken required")
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	if err := s.engine.LogoutAll(r.Context(), identity.UserID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req validateTwoFactorRequest
	if !decode(r, &req) || req.TempToken == "" || req.Code == "" {
		badRequest(w, "tempToken and code required")
		return
	}

	session, err := s.engine.ValidateTwoFactor(r.Context(), req.TempToken, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	})
}

func (s *Server) handleSetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	setup, err := s.engine.SetupTwoFactor(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, twoFactorSetupResponse{
		Secret:         setup.Secret,
		QRCodeURL:      setup.ProvisionURI,
		ManualEntryKey: setup.ManualEntryKey,
	})
}

func (s *Server) handleConfirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	var req codeRequest
	if !decode(r, &req) || req.Code == "" {
		badRequest(w, "code required")
		return
	}

	codes, err := s.engine.ConfirmTwoFactor(r.Context(), identity.UserID, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (s *Server) handleDisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	var req passwordRequest
	if !decode(r, &req) || req.Password == "" {
		badRequest(w, "password required")
		return
	}

	if err := s.engine.DisableTwoFactor(r.Context(), identity.UserID, req.Password); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	var req passwordRequest
	if !decode(r, &req) || req.Password == "" {
		badRequest(w, "password required")
		return
	}

	codes, err := s.engine.RegenerateBackupCodes(r.Context(), identity.UserID, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, backupCodesResponse{BackupCodes: codes})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeError(w, authcore.ErrUnauthorized)
		return
	}

	profile, err := s.engine.Profile(r.Context(), identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	providers := profile.LinkedProviders
	if providers == nil {
		providers = []string{}
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:              profile.ID,
		Email:           profile.Email,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		EmailVerified:   profile.EmailVerified,
		Has2FA:          profile.Has2FA,
		LinkedProviders: providers,
		LastLoginAt:     profile.LastLoginAt,
		CreatedAt:       profile.CreatedAt,
	})
}
