package idp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authsession/pkg/httpx"
)

var (
	ErrUnknownState      = errors.New("idp: unknown or expired login state")
	ErrMissingCode       = errors.New("idp: callback carries no authorization code")
	ErrMissingIDToken    = errors.New("idp: token response carries no id_token")
	ErrInvalidIDToken    = errors.New("idp: id_token failed verification")
	ErrNonceMismatch     = errors.New("idp: id_token nonce does not match the login attempt")
	ErrLogoutUnsupported = errors.New("idp: provider has no end_session_endpoint and no post-logout URL is configured")
)

// OAuth2 error codes (RFC 6749 section 5.2, plus the authorization endpoint
// codes from section 4.1.2.1).
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeInvalidClient          = "invalid_client"
	ErrorCodeInvalidGrant           = "invalid_grant"
	ErrorCodeUnauthorizedClient     = "unauthorized_client"
	ErrorCodeUnsupportedGrantType   = "unsupported_grant_type"
	ErrorCodeInvalidScope           = "invalid_scope"
	ErrorCodeAccessDenied           = "access_denied"
	ErrorCodeLoginRequired          = "login_required"
	ErrorCodeServerError            = "server_error"
	ErrorCodeTemporarilyUnavailable = "temporarily_unavailable"
	ErrorCodeInvalidToken           = "invalid_token"
)

// OAuth2Error is an RFC 6749 error response. The agent writes its own errors
// in the same shape so one parser serves both.
type OAuth2Error struct {
	// StatusCode is the HTTP status the error arrived with, or is written
	// with. Zero for errors returned on the redirect URI.
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON response.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	status := e.StatusCode
	if status == 0 {
		status = http.StatusBadRequest
	}
	httpx.WriteJSON(w, status, e)
}

func NewOAuth2Error(statusCode int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: statusCode, Code: code, Description: description}
}

// ParseErrorResponse turns a non-2xx response into an OAuth2Error. Bodies
// that are not RFC 6749 JSON fall back to a server_error carrying the
// status text. It returns nil for 2xx statuses.
func ParseErrorResponse(statusCode int, body []byte) *OAuth2Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var resp OAuth2Error
	if err := json.Unmarshal(body, &resp); err == nil && resp.Code != "" {
		resp.StatusCode = statusCode
		return &resp
	}

	return &OAuth2Error{
		StatusCode:  statusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode)),
	}
}
