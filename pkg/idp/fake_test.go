package idp_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/httpx"
	"github.com/aussiebroadwan/authsession/pkg/idp"
	"github.com/aussiebroadwan/authsession/pkg/jwtx/jwtxtest"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	clientID = "portal"
	realm    = "/realms/test"
	kid      = "test-key"
)

// fakeIssuer is a minimal Keycloak realm: discovery, JWKS and the token
// endpoint.
type fakeIssuer struct {
	t   *testing.T
	srv *httptest.Server
	key *rsa.PrivateKey

	tokenCalls atomic.Int32

	mu        sync.Mutex
	subject   string
	nonce     string
	challenge string
	down      bool
	status    int
	code      string
	noIDToken bool
	noLogout  bool
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{t: t, key: key, subject: "ada"}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+realm+"/.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("GET "+realm+"/protocol/openid-connect/certs", f.certs)
	mux.HandleFunc("POST "+realm+"/protocol/openid-connect/token", f.token)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) issuer() string { return f.srv.URL + realm }

func (f *fakeIssuer) set(fn func(f *fakeIssuer)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeIssuer) discovery(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	noLogout := f.noLogout
	f.mu.Unlock()

	base := f.issuer() + "/protocol/openid-connect"
	doc := map[string]any{
		"issuer":                                f.issuer(),
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/certs",
		"userinfo_endpoint":                     base + "/userinfo",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	}
	if !noLogout {
		doc["end_session_endpoint"] = base + "/logout"
	}
	httpx.WriteJSON(w, http.StatusOK, doc)
}

func (f *fakeIssuer) certs(w http.ResponseWriter, r *http.Request) {
	pub := f.key.PublicKey
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	if err := r.ParseForm(); err != nil {
		idp.NewOAuth2Error(http.StatusBadRequest, idp.ErrorCodeInvalidRequest, "bad form").WriteError(w)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
		return
	}
	if f.status != 0 {
		if f.code == "" {
			http.Error(w, http.StatusText(f.status), f.status)
			return
		}
		idp.NewOAuth2Error(f.status, f.code, "").WriteError(w)
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		if r.PostForm.Get("code") != "good-code" {
			idp.NewOAuth2Error(http.StatusBadRequest, idp.ErrorCodeInvalidGrant, "Code not valid").WriteError(w)
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != f.challenge {
			idp.NewOAuth2Error(http.StatusBadRequest, idp.ErrorCodeInvalidGrant, "PKCE verification failed").WriteError(w)
			return
		}
	case "refresh_token":
		if r.PostForm.Get("refresh_token") == "revoked" {
			idp.NewOAuth2Error(http.StatusBadRequest, idp.ErrorCodeInvalidGrant, "Token is not active").WriteError(w)
			return
		}
	default:
		idp.NewOAuth2Error(http.StatusBadRequest, "unsupported_grant_type", "").WriteError(w)
		return
	}

	resp := map[string]any{
		"access_token":  jwtxtest.Token(f.t, f.subject, time.Now().Add(5*time.Minute), "user"),
		"token_type":    "Bearer",
		"expires_in":    300,
		"refresh_token": "refresh-" + f.subject,
	}
	if !f.noIDToken {
		resp["id_token"] = f.idToken()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// idToken is called with f.mu held.
func (f *fakeIssuer) idToken() string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   f.issuer(),
		"sub":   f.subject,
		"aud":   clientID,
		"iat":   now.Unix(),
		"exp":   now.Add(5 * time.Minute).Unix(),
		"nonce": f.nonce,
	})
	tok.Header["kid"] = kid

	raw, err := tok.SignedString(f.key)
	if err != nil {
		f.t.Errorf("sign id_token: %v", err)
	}
	return raw
}

func newClient(t *testing.T, f *fakeIssuer) (*idp.Client, *tokenstore.Store) {
	t.Helper()

	store := tokenstore.New(tokenstore.NewMemory(), tokenstore.WithLogger(slogx.Nop()))
	c, err := idp.New(idp.Config{
		IssuerURL:             f.issuer(),
		ClientID:              clientID,
		ClientSecret:          "secret",
		RedirectURL:           "http://localhost:8400/auth/callback",
		PostLogoutRedirectURL: "http://localhost:8400/",
	}, store,
		idp.WithHTTPClient(f.srv.Client()),
		idp.WithLogger(slogx.Nop()),
	)
	require.NoError(t, err)
	return c, store
}
