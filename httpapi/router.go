// Package httpapi is the thin HTTP transport over the authentication engine.
// It maps requests to engine operations and typed failures to status codes;
// it contains no authentication logic of its own.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/quintal-io/authcore"
)

// Server defines a public type used by authcore APIs.
//
// Server instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Server struct {
	engine *authcore.Engine
}

// NewServer describes the newserver operation and its observable behavior.
//
// NewServer may return an error when input validation, dependency calls, or security checks fail.
// NewServer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewServer(engine *authcore.Engine) *Server {
	return &Server{engine: engine}
}

// Router describes the router operation and its observable behavior.
//
// Router may return an error when input validation, dependency calls, or security checks fail.
// Router does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Post("/2fa/validate", s.handleValidateTwoFactor)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleProfile)
			r.Post("/logout-all", s.handleLogoutAll)
			r.Post("/2fa/setup", s.handleSetupTwoFactor)
			r.Post("/2fa/verify", s.handleConfirmTwoFactor)
			r.Post("/2fa/disable", s.handleDisableTwoFactor)
			r.Post("/2fa/backup-codes", s.handleRegenerateBackupCodes)
		})
	})

	return r
}
