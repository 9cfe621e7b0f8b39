package client

import "time"

// ErrorResponse is the body of every non-2xx agent response. It is an
// RFC 6749 error with an optional login URL to follow.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`

	// LoginURL is set when the session ended and the user must sign in.
	LoginURL string `json:"login_url,omitempty"`
}

// TokenResponse is returned by GET /v1/token.
type TokenResponse struct {
	// AccessToken is the bearer token to send to resource servers
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	ExpiresAt time.Time `json:"expires_at"`

	// ExpiresIn is the remaining lifetime in seconds
	ExpiresIn int `json:"expires_in"`
}

// IdentityResponse is returned by GET /v1/me.
type IdentityResponse struct {
	Subject       string   `json:"sub"`
	Email         string   `json:"email,omitempty"`
	EmailVerified bool     `json:"email_verified"`
	DisplayName   string   `json:"name,omitempty"`
	Username      string   `json:"preferred_username,omitempty"`
	Roles         []string `json:"roles"`
	Scopes        []string `json:"scopes"`
}

// SessionResponse is returned by GET /v1/session.
type SessionResponse struct {
	Authenticated bool      `json:"authenticated"`
	Subject       string    `json:"sub,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	ExpiresIn     int       `json:"expires_in,omitempty"`

	// StorageDegraded is true when persistent storage failed and the
	// session now only lives in memory.
	StorageDegraded bool `json:"storage_degraded"`

	// LoginURL is the sign-in page last opened in the background, if the
	// session was lost while no request was in flight.
	LoginURL string `json:"login_url,omitempty"`

	LastExpired *ExpiredNotice `json:"last_expired,omitempty"`
}

// ExpiredNotice describes the last session lost on the critical path.
type ExpiredNotice struct {
	Subject string    `json:"sub,omitempty"`
	At      time.Time `json:"at"`
	Reason  string    `json:"reason,omitempty"`
}

// LogoutResponse is returned by POST /logout.
type LogoutResponse struct {
	// LogoutURL ends the session at the identity provider when opened in
	// a browser.
	LogoutURL string `json:"logout_url"`
}

// HealthResponse is returned by GET /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
