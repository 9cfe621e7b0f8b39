package session

// RoleRoute maps a role to the page a user holding it lands on after login.
type RoleRoute struct {
	Role string `yaml:"role" json:"role"`
	Path string `yaml:"path" json:"path"`
}

// LandingByRole returns a landing function that picks the first route whose
// role the identity holds, or fallback.
func LandingByRole(routes []RoleRoute, fallback string) func(*Identity) string {
	return func(id *Identity) string {
		for _, r := range routes {
			if id.HasRole(r.Role) {
				return r.Path
			}
		}
		return fallback
	}
}
