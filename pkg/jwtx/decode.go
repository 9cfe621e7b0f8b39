// Package jwtx reads the claims carried in bearer tokens. Tokens are never
// verified here: the session layer only needs sub, exp, roles and scopes to
// drive refresh timing and identity, and the resource servers that receive
// the token do their own validation.
package jwtx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed covers bad segment structure, bad encoding, unparseable JSON
// and payloads missing sub or exp.
var ErrMalformed = errors.New("jwtx: malformed token")

var parser = jwt.NewParser()

// Decode parses the payload of raw without checking its signature or expiry.
func Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	var c Claims
	if _, _, err := parser.ParseUnverified(raw, &c); err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrMalformed)
	}
	if c.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrMalformed)
	}

	return &c, nil
}
