package httpx

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
)

// RequireBearer admits only requests presenting secret as a bearer token. An
// empty secret disables the check.
func RequireBearer(secret string) Middleware {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			if subtle.ConstantTimeCompare([]byte(raw), []byte(secret)) != 1 {
				slogx.FromContext(r.Context()).Warn("agent secret mismatch")
				writeBearerError(w, "invalid agent secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdentitySource is the part of the session coordinator RequireSession
// reads.
type IdentitySource interface {
	IsAuthenticated() bool
	GetCurrentIdentity() *session.Identity
}

// RequireSession rejects requests while nobody is signed in and otherwise
// puts the subject into the request context.
func RequireSession(src IdentitySource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := src.GetCurrentIdentity()
			if id == nil || !src.IsAuthenticated() {
				WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"error":             "login_required",
					"error_description": "no active session",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), id)))
		})
	}
}

func contextWithIdentity(ctx context.Context, id *session.Identity) context.Context {
	return context.WithValue(ctx, CtxKeySubject, id.SubjectID)
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
