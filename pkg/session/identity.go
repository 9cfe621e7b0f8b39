package session

import (
	"slices"
	"sort"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

// Identity is the UI-facing projection of the current token's claims. It is
// rebuilt on every token change and must be treated as read-only.
type Identity struct {
	SubjectID     string
	Email         string
	DisplayName   string
	Username      string
	EmailVerified bool
	Roles         map[string]bool
	Scopes        map[string]bool
}

func newIdentity(c *jwtx.Claims, roleClients []string) *Identity {
	id := &Identity{
		SubjectID:     c.Subject,
		Email:         c.Email,
		DisplayName:   c.DisplayName(),
		Username:      c.PreferredUsername,
		EmailVerified: c.EmailVerified,
		Roles:         make(map[string]bool),
		Scopes:        make(map[string]bool),
	}
	for _, r := range c.Roles(roleClients...) {
		id.Roles[r] = true
	}
	for _, s := range c.ScopeList() {
		id.Scopes[s] = true
	}
	return id
}

func (i *Identity) HasRole(role string) bool {
	return i != nil && i.Roles[role]
}

func (i *Identity) HasAnyRole(roles ...string) bool {
	return slices.ContainsFunc(roles, i.HasRole)
}

func (i *Identity) HasScope(scope string) bool {
	return i != nil && i.Scopes[scope]
}

// RoleList returns the roles in sorted order.
func (i *Identity) RoleList() []string {
	if i == nil {
		return nil
	}
	return sortedKeys(i.Roles)
}

// ScopeList returns the scopes in sorted order.
func (i *Identity) ScopeList() []string {
	if i == nil {
		return nil
	}
	return sortedKeys(i.Scopes)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, ok := range m {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
