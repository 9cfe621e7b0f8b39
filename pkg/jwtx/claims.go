package jwtx

import (
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Access is a Keycloak style role container, used for realm_access and each
// entry of resource_access.
type Access struct {
	Roles []string `json:"roles,omitempty"`
}

// Claims is the self-describing payload of an access token issued by an
// OIDC provider. Only the fields the session layer projects are declared.
type Claims struct {
	jwt.RegisteredClaims

	SID string `json:"sid,omitempty"`

	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`

	RealmAccess    Access            `json:"realm_access,omitzero"`
	ResourceAccess map[string]Access `json:"resource_access,omitempty"`

	// Scope is the space delimited form most providers emit. Some issuers send
	// a JSON array under "scopes" instead, so both are read.
	Scope  string   `json:"scope,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// ExpiresAtTime returns exp as a time.Time, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ExpiryMillis returns exp in milliseconds since the epoch. exp is carried in
// seconds on the wire.
func (c *Claims) ExpiryMillis() int64 {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.UnixMilli()
}

// Expired reports whether exp is at or before now.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAtTime().After(now)
}

// Roles returns the realm roles followed by the roles granted on each of the
// named clients, without duplicates.
func (c *Claims) Roles(clients ...string) []string {
	out := slices.Clone(c.RealmAccess.Roles)
	for _, client := range clients {
		for _, role := range c.ResourceAccess[client].Roles {
			if !slices.Contains(out, role) {
				out = append(out, role)
			}
		}
	}
	return out
}

// ScopeList merges the space delimited scope claim with the scopes array.
func (c *Claims) ScopeList() []string {
	out := strings.Fields(c.Scope)
	for _, s := range c.Scopes {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// DisplayName prefers name, then given and family names, then the username.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if full := strings.TrimSpace(c.GivenName + " " + c.FamilyName); full != "" {
		return full
	}
	return c.PreferredUsername
}
