package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/quintal-io/authcore"
)

type identityContextKey struct{}

// requestContext forwards transport metadata to the engine so it lands on
// refresh-token rows and audit events.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := authcore.WithClientIP(r.Context(), r.RemoteAddr)
		if ua := r.UserAgent(); ua != "" {
			ctx = authcore.WithDeviceInfo(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth validates the bearer access token and stores the verified
// identity on the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, authcore.ErrUnauthorized)
			return
		}

		identity, err := s.engine.Validate(token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func identityFromRequest(r *http.Request) (authcore.AuthResult, bool) {
	identity, ok := r.Context().Value(identityContextKey{}).(authcore.AuthResult)
	return identity, ok
}
