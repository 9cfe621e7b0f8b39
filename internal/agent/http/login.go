package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/aussiebroadwan/authsession/internal/agent/navigator"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/session"
)

// LoginHandler starts a browser sign-in, or registration when Register is
// set.
type LoginHandler struct {
	Coordinator *session.Coordinator
	Home        string
	Logger      *slog.Logger
	Register    bool
}

// ServeHTTP godoc
//
//	@Summary		Start sign-in
//	@Description	Records where to return after sign-in and redirects the browser to the identity provider.
//	@Description	GET /register behaves the same but opens the provider's registration page.
//	@Tags			Login
//	@Param			return_to	query	string	false	"Page to return to after sign-in (relative, or on the application origin)"
//	@Param			login_hint	query	string	false	"Pre-fills the username at the provider"
//	@Param			prompt		query	string	false	"OIDC prompt value, e.g. login"
//	@Param			ui_locales	query	string	false	"Preferred UI locale"
//	@Success		302
//	@Failure		502	{object}	client.ErrorResponse	"identity provider unreachable"
//	@Router			/login [get]
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx, pending := navigator.WithRequest(r.Context(), safeReturnTo(q.Get("return_to"), h.Home))

	opts := session.RedirectOptions{
		LoginHint: q.Get("login_hint"),
		Prompt:    q.Get("prompt"),
		Locale:    q.Get("ui_locales"),
	}

	start := h.Coordinator.Login
	if h.Register {
		start = h.Coordinator.Register
	}
	if err := start(ctx, opts); err != nil {
		h.Logger.Error("failed to start sign-in", "error", err)
		writeError(w, http.StatusBadGateway, ErrorCodeUnavailable, "identity provider unavailable")
		return
	}

	target, ok := pending.Target()
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrorCodeServerError, "no redirect issued")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// safeReturnTo accepts a relative path or a URL on home's origin and drops
// anything else. Browsers read a backslash as a slash, so `/\host` is
// protocol-relative and any backslash is refused.
func safeReturnTo(raw, home string) string {
	if raw == "" || strings.ContainsRune(raw, '\\') {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" && u.Host == "" {
		if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
			return raw
		}
		return ""
	}

	h, err := url.Parse(home)
	if err != nil || h.Host == "" {
		return ""
	}
	if u.Scheme == h.Scheme && u.Host == h.Host {
		return raw
	}
	return ""
}

// CallbackHandler completes a sign-in.
type CallbackHandler struct {
	Coordinator *session.Coordinator
}

// ServeHTTP godoc
//
//	@Summary		Sign-in callback
//	@Description	Redirect target registered with the identity provider. Exchanges the code, then sends the browser back to where sign-in started.
//	@Tags			Login
//	@Param			code	query	string	false	"Authorization code"
//	@Param			state	query	string	false	"Login attempt identifier"
//	@Param			error	query	string	false	"Error reported by the provider"
//	@Success		302
//	@Failure		400	{object}	client.ErrorResponse	"sign-in did not complete"
//	@Router			/auth/callback [get]
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.Coordinator.HandleCallback(r.Context(), r.URL.Query()) {
		writeError(w, http.StatusBadRequest, ErrorCodeAccessDenied, "sign-in did not complete, start again from /login")
		return
	}
	http.Redirect(w, r, h.Coordinator.NextURL(r.Context()), http.StatusFound)
}

// LogoutHandler ends the session.
type LogoutHandler struct {
	Coordinator *session.Coordinator
}

// ServeHTTP godoc
//
//	@Summary		Sign out
//	@Description	Clears the local session and returns the provider logout URL to open in a browser.
//	@Tags			Login
//	@Produce		json
//	@Security		AgentSecret
//	@Success		200	{object}	client.LogoutResponse
//	@Failure		502	{object}	client.ErrorResponse	"identity provider unreachable"
//	@Router			/logout [post]
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, pending := navigator.WithRequest(r.Context(), "")

	if err := h.Coordinator.Logout(ctx, session.RedirectOptions{}); err != nil {
		// The local session is gone either way.
		writeError(w, http.StatusBadGateway, ErrorCodeUnavailable, "signed out locally, provider logout unavailable")
		return
	}

	target, _ := pending.Target()
	httpx.WriteJSON(w, http.StatusOK, client.LogoutResponse{LogoutURL: target})
}
