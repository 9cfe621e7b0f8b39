package http

import (
	"net/http"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/aussiebroadwan/authsession/pkg/httpx"
)

const (
	ErrorCodeLoginRequired  = "login_required"
	ErrorCodeSessionExpired = "session_expired"
	ErrorCodeServerError    = "server_error"
	ErrorCodeAccessDenied   = "access_denied"
	ErrorCodeUnavailable    = "temporarily_unavailable"
)

func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, client.ErrorResponse{Error: code, ErrorDescription: description})
}

func writeLoginRequired(w http.ResponseWriter, code, description, loginURL string) {
	httpx.WriteJSON(w, http.StatusUnauthorized, client.ErrorResponse{
		Error:            code,
		ErrorDescription: description,
		LoginURL:         loginURL,
	})
}
