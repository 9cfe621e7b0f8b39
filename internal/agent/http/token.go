package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/aussiebroadwan/authsession/internal/agent/navigator"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
)

// TokenHandler hands out a bearer token, renewing it first when it is close
// to expiry.
type TokenHandler struct {
	Coordinator *session.Coordinator
}

// ServeHTTP godoc
//
//	@Summary		Get access token
//	@Description	Returns a bearer token valid for at least the refresh lead. When renewal fails the session ends and the response carries the sign-in URL.
//	@Tags			Session
//	@Produce		json
//	@Security		AgentSecret
//	@Success		200	{object}	client.TokenResponse
//	@Failure		401	{object}	client.ErrorResponse	"login_required or session_expired"
//	@Router			/v1/token [get]
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, pending := navigator.WithRequest(r.Context(), "")

	raw, err := h.Coordinator.GetToken(ctx)
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		loginURL, _ := pending.Target()
		writeLoginRequired(w, ErrorCodeSessionExpired, "session expired, sign in again", loginURL)
		return
	case errors.Is(err, session.ErrUnauthenticated):
		writeLoginRequired(w, ErrorCodeLoginRequired, "no active session", "")
		return
	case err != nil:
		slogx.FromContext(ctx).Warn("token request abandoned", "error", err)
		writeError(w, http.StatusServiceUnavailable, ErrorCodeUnavailable, err.Error())
		return
	}

	resp := client.TokenResponse{AccessToken: raw, TokenType: "Bearer"}
	if claims, err := jwtx.Decode(raw); err == nil {
		resp.ExpiresAt = claims.ExpiresAtTime()
		resp.ExpiresIn = int(time.Until(resp.ExpiresAt).Seconds())
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// MeHandler describes the signed-in user.
type MeHandler struct {
	Coordinator *session.Coordinator
}

// ServeHTTP godoc
//
//	@Summary		Current identity
//	@Description	Returns the identity projected from the current access token.
//	@Tags			Session
//	@Produce		json
//	@Security		AgentSecret
//	@Success		200	{object}	client.IdentityResponse
//	@Failure		401	{object}	client.ErrorResponse	"login_required"
//	@Router			/v1/me [get]
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := h.Coordinator.GetCurrentIdentity()
	if id == nil {
		writeLoginRequired(w, ErrorCodeLoginRequired, "no active session", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, client.IdentityResponse{
		Subject:       id.SubjectID,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		DisplayName:   id.DisplayName,
		Username:      id.Username,
		Roles:         nonNil(id.RoleList()),
		Scopes:        nonNil(id.ScopeList()),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
