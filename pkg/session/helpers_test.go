package session_test

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/aussiebroadwan/authsession/pkg/jwtx/jwtxtest"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/slogx"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

const (
	loginURL    = "https://idp.example.com/auth?flow=login"
	registerURL = "https://idp.example.com/registrations"
	logoutURL   = "https://idp.example.com/logout"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var jti atomic.Int64

// mint returns a token whose access token carries subject and exp. Every call
// yields a distinct access token string.
func mint(t testing.TB, subject string, exp time.Time, roles ...string) *oauth2.Token {
	t.Helper()

	access := jwtxtest.Mint(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("jti-%d", jti.Add(1)),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:             subject + "@example.com",
		PreferredUsername: subject,
		RealmAccess:       jwtx.Access{Roles: roles},
		Scope:             "openid profile",
	})
	return (&oauth2.Token{
		AccessToken:  access,
		RefreshToken: "refresh-" + subject,
		Expiry:       exp,
	}).WithExtra(map[string]any{"id_token": "id-" + subject})
}

type fakeProvider struct {
	t     testing.TB
	clock *fakeClock

	initCalls     atomic.Int32
	refreshCalls  atomic.Int32
	exchangeCalls atomic.Int32

	mu         sync.Mutex
	initGate   chan struct{}
	initTok    *oauth2.Token
	initErr    error
	persisted  *oauth2.Token
	refreshFn  func(current *oauth2.Token) (*oauth2.Token, error)
	exchange   *oauth2.Token
	logoutOpts session.RedirectOptions
}

func newProvider(t testing.TB, clock *fakeClock) *fakeProvider {
	return &fakeProvider{t: t, clock: clock, initErr: session.ErrNoSession}
}

func (p *fakeProvider) InitSilent(ctx context.Context, persisted *oauth2.Token) (*oauth2.Token, error) {
	p.initCalls.Add(1)

	p.mu.Lock()
	gate := p.initGate
	p.persisted = persisted
	tok, err := p.initTok, p.initErr
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if tok != nil {
		return tok, nil
	}
	return nil, err
}

func (p *fakeProvider) ExchangeCallback(ctx context.Context, params url.Values) (*oauth2.Token, error) {
	p.exchangeCalls.Add(1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if params.Get("code") == "" || p.exchange == nil {
		return nil, session.ErrRefreshRejected
	}
	return p.exchange, nil
}

func (p *fakeProvider) RefreshToken(ctx context.Context, current *oauth2.Token, minValidity time.Duration) (*oauth2.Token, error) {
	p.refreshCalls.Add(1)

	p.mu.Lock()
	fn := p.refreshFn
	p.mu.Unlock()

	if fn != nil {
		return fn(current)
	}
	claims, err := jwtx.Decode(current.AccessToken)
	if err != nil {
		return nil, err
	}
	return mint(p.t, claims.Subject, p.clock.Now().Add(time.Hour)), nil
}

func (p *fakeProvider) LoginURL(context.Context, session.RedirectOptions) (string, error) {
	return loginURL, nil
}

func (p *fakeProvider) RegisterURL(context.Context, session.RedirectOptions) (string, error) {
	return registerURL, nil
}

func (p *fakeProvider) LogoutURL(_ context.Context, opts session.RedirectOptions) (string, error) {
	p.mu.Lock()
	p.logoutOpts = opts
	p.mu.Unlock()
	return logoutURL + "?id_token_hint=" + url.QueryEscape(opts.IDTokenHint), nil
}

type fakeNav struct {
	mu        sync.Mutex
	location  string
	redirects []string
}

func (n *fakeNav) Location(context.Context) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *fakeNav) Redirect(_ context.Context, target string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, target)
	return nil
}

func (n *fakeNav) Redirects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.redirects...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []session.ExpiredEvent
}

func (n *fakeNotifier) SessionExpired(_ context.Context, ev session.ExpiredEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *fakeNotifier) Events() []session.ExpiredEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]session.ExpiredEvent(nil), n.events...)
}

type harness struct {
	clock    *fakeClock
	provider *fakeProvider
	nav      *fakeNav
	notifier *fakeNotifier
	store    *tokenstore.Store
	coord    *session.Coordinator
}

func newHarness(t *testing.T, opts ...session.Option) *harness {
	t.Helper()

	h := &harness{
		clock:    newClock(),
		nav:      &fakeNav{location: "https://app.example.com/portal/jobs"},
		notifier: &fakeNotifier{},
		store:    tokenstore.New(tokenstore.NewMemory(), tokenstore.WithLogger(slogx.Nop())),
	}
	h.provider = newProvider(t, h.clock)

	base := []session.Option{
		session.WithLogger(slogx.Nop()),
		session.WithClock(h.clock.Now),
		session.WithRefreshLead(time.Minute),
		session.WithNotifier(h.notifier),
	}
	h.coord = session.New(h.provider, h.store, h.nav, append(base, opts...)...)
	t.Cleanup(h.coord.Close)
	return h
}

// signIn makes InitSilent succeed with a token expiring in ttl.
func (h *harness) signIn(t *testing.T, subject string, ttl time.Duration, roles ...string) *oauth2.Token {
	t.Helper()

	tok := mint(t, subject, h.clock.Now().Add(ttl), roles...)
	h.provider.mu.Lock()
	h.provider.initTok = tok
	h.provider.mu.Unlock()
	return tok
}
