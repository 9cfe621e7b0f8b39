// Package jwtxtest mints unverified bearer tokens for tests.
package jwtxtest

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("jwtxtest-signing-key")

// Mint signs c with a throwaway HMAC key. Callers only ever decode the
// payload, so the key does not matter.
func Mint(tb testing.TB, c jwtx.Claims) string {
	tb.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(signingKey)
	if err != nil {
		tb.Fatalf("jwtxtest: sign: %v", err)
	}
	return raw
}

// Token mints a token for subject that expires at exp, granting roles in the
// realm.
func Token(tb testing.TB, subject string, exp time.Time, roles ...string) string {
	tb.Helper()

	return Mint(tb, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(exp.Add(-5 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		PreferredUsername: subject,
		RealmAccess:       jwtx.Access{Roles: roles},
		Scope:             "openid profile email",
	})
}
