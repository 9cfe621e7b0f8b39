// Package idp is the OpenID Connect client the session coordinator drives.
// It discovers the provider's endpoints lazily, runs the authorization code
// flow with PKCE, renews tokens with the refresh grant and builds the
// registration and RP-initiated logout URLs Keycloak exposes.
package idp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFlowTTL bounds how long a started login may take to come back.
	DefaultFlowTTL = 10 * time.Minute

	defaultHTTPTimeout = 10 * time.Second
)

var _ session.Provider = (*Client)(nil)

type Config struct {
	// IssuerURL is the realm URL, e.g. https://sso.example.com/realms/acme.
	IssuerURL             string
	ClientID              string
	ClientSecret          string
	RedirectURL           string
	PostLogoutRedirectURL string

	// Scopes requested at login. openid is always included.
	Scopes []string
}

// Client implements session.Provider against an OIDC provider.
type Client struct {
	cfg     Config
	store   *tokenstore.Store
	http    *http.Client
	logger  *slog.Logger
	now     func() time.Time
	flowTTL time.Duration

	mu        sync.Mutex
	endpoints *endpoints
	discovery singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithFlowTTL sets how long an unfinished login attempt is remembered.
func WithFlowTTL(d time.Duration) Option {
	return func(c *Client) { c.flowTTL = d }
}

// New returns a Client. No network traffic happens until the first call that
// needs the provider's endpoints.
func New(cfg Config, store *tokenstore.Store, opts ...Option) (*Client, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("idp: issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("idp: client id is required")
	}

	c := &Client{
		cfg:     cfg,
		store:   store,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		logger:  slog.Default(),
		now:     time.Now,
		flowTTL: DefaultFlowTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg.Scopes = withOpenID(cfg.Scopes)
	c.logger = c.logger.With("component", "idp", "issuer", cfg.IssuerURL)
	return c, nil
}

func withOpenID(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{oidc.ScopeOpenID, "profile", "email"}
	}
	for _, s := range scopes {
		if s == oidc.ScopeOpenID {
			return scopes
		}
	}
	return append([]string{oidc.ScopeOpenID}, scopes...)
}

/* Discovery */

// endpoints is what discovery yields. It is immutable once published.
type endpoints struct {
	oauth        oauth2.Config
	verifier     *oidc.IDTokenVerifier
	registration string
	endSession   string
}

// discover returns the provider's endpoints, fetching them on first use.
// Concurrent callers share one fetch; a failed fetch is retried by the next
// caller.
func (c *Client) discover(ctx context.Context) (*endpoints, error) {
	c.mu.Lock()
	e := c.endpoints
	c.mu.Unlock()
	if e != nil {
		return e, nil
	}

	v, err, _ := c.discovery.Do("discover", func() (any, error) {
		// The provider keeps this context for later JWKS fetches, so it must
		// outlive the request that triggered discovery.
		pctx := oidc.ClientContext(context.WithoutCancel(ctx), c.http)
		provider, err := oidc.NewProvider(pctx, c.cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("%w: discovery: %w", session.ErrProviderUnreachable, err)
		}

		var extra struct {
			EndSession string `json:"end_session_endpoint"`
		}
		if err := provider.Claims(&extra); err != nil {
			c.logger.Warn("failed to read discovery metadata", "error", err)
		}

		endpoint := provider.Endpoint()
		e := &endpoints{
			oauth: oauth2.Config{
				ClientID:     c.cfg.ClientID,
				ClientSecret: c.cfg.ClientSecret,
				RedirectURL:  c.cfg.RedirectURL,
				Scopes:       c.cfg.Scopes,
				Endpoint:     endpoint,
			},
			verifier: provider.Verifier(&oidc.Config{
				ClientID: c.cfg.ClientID,
				Now:      c.now,
			}),
			registration: registrationURL(endpoint.AuthURL),
			endSession:   extra.EndSession,
		}

		c.mu.Lock()
		c.endpoints = e
		c.mu.Unlock()

		c.logger.Debug("provider discovered",
			"authorization_endpoint", endpoint.AuthURL,
			"token_endpoint", endpoint.TokenURL,
		)
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*endpoints), nil
}

// registrationURL derives Keycloak's registration page from its
// authorization endpoint. Other providers get "" and fall back to
// prompt=create.
func registrationURL(authURL string) string {
	const suffix = "/protocol/openid-connect/auth"
	if !strings.HasSuffix(authURL, suffix) {
		return ""
	}
	return strings.TrimSuffix(authURL, "auth") + "registrations"
}

// httpContext makes x/oauth2 use the client's HTTP client.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// classify maps a failed token endpoint call onto the session sentinels.
func classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("%s: %w: %w", op, session.ErrProviderUnreachable, err)
	}

	oe := &OAuth2Error{Code: re.ErrorCode, Description: re.ErrorDescription}
	if re.Response != nil {
		oe.StatusCode = re.Response.StatusCode
	}
	if oe.Code == "" {
		oe = ParseErrorResponse(oe.StatusCode, re.Body)
	}

	if denied(oe) {
		return fmt.Errorf("%s: %w: %w", op, session.ErrRefreshRejected, oe)
	}
	return fmt.Errorf("%s: %w: %w", op, session.ErrProviderUnreachable, oe)
}

// denied reports whether the provider explicitly refused the grant. Anything
// else, including throttling and timeouts, is treated as transient.
func denied(oe *OAuth2Error) bool {
	switch oe.Code {
	case ErrorCodeInvalidGrant, ErrorCodeInvalidToken, ErrorCodeInvalidClient,
		ErrorCodeUnauthorizedClient, ErrorCodeAccessDenied, ErrorCodeLoginRequired:
		return true
	case ErrorCodeServerError, ErrorCodeTemporarilyUnavailable:
		return false
	}
	return oe.StatusCode == http.StatusBadRequest || oe.StatusCode == http.StatusUnauthorized
}
