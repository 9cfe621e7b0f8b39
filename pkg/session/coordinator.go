// Package session coordinates the client side of an OAuth2/OIDC login: it
// resumes or establishes a session, keeps the bearer token fresh ahead of
// expiry, forces re-authentication when renewal fails on the critical path,
// and tells subscribers whenever the signed-in identity changes.
//
// A Coordinator is built once per application with New and passed to
// whatever needs it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/aussiebroadwan/authsession/pkg/refresh"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// state is the committed Session State. version increases on every commit so
// late results from superseded work can be recognised and dropped.
type state struct {
	token    *oauth2.Token
	claims   *jwtx.Claims
	identity *Identity
	version  uint64
}

// Coordinator owns the Session State of one application: the current token,
// its decoded claims and the identity derived from them. It is safe for
// concurrent use.
type Coordinator struct {
	provider Provider
	store    *tokenstore.Store
	nav      Navigator
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	lead        time.Duration
	interval    time.Duration
	landing     func(*Identity) string
	roleClients []string

	sched *refresh.Scheduler
	bg    context.Context
	stop  context.CancelFunc

	initOnce sync.Once
	initDone chan struct{}
	initOK   bool

	// writeMu serialises commits together with their storage writes; mu
	// guards reads of st.
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      state

	refreshes singleflight.Group
	reauthing atomic.Bool

	subsMu    sync.RWMutex
	subs      map[SubscriptionID]func(*Identity)
	notifyMu  sync.Mutex
	delivered uint64
}

// New builds a Coordinator. Nothing happens until Initialize or
// HandleCallback is called; Close releases the background workers.
func New(provider Provider, store *tokenstore.Store, nav Navigator, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider: provider,
		store:    store,
		nav:      nav,
		notifier: NotifierFunc(func(context.Context, ExpiredEvent) {}),
		logger:   slog.Default(),
		now:      time.Now,
		lead:     refresh.DefaultLead,
		interval: refresh.DefaultInterval,
		initDone: make(chan struct{}),
		subs:     make(map[SubscriptionID]func(*Identity)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "session")
	c.sched = refresh.New(c.lead, c.interval, c.logger)
	c.sched.Now = c.now
	c.bg, c.stop = context.WithCancel(context.Background())
	return c
}

// Close stops the safety net and disarms the refresh timer.
func (c *Coordinator) Close() {
	c.sched.Stop()
	c.stop()
}

/* Initialization */

// Initialize resumes any existing session without user interaction. The
// attempt runs once; every caller, concurrent or later, gets its result. The
// error is only ever the caller's own context error while waiting.
func (c *Coordinator) Initialize(ctx context.Context) (bool, error) {
	c.initOnce.Do(func() {
		go c.initialize(context.WithoutCancel(ctx))
	})

	select {
	case <-c.initDone:
		return c.initOK, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (c *Coordinator) initialize(ctx context.Context) {
	defer c.sched.Start(c.bg, c.safetyNet)

	start := c.version()
	persisted, _ := c.store.Read(ctx)

	tok, err := c.provider.InitSilent(ctx, persisted)
	if err == nil {
		var claims *jwtx.Claims
		if claims, err = jwtx.Decode(tok.AccessToken); err == nil {
			c.commit(ctx, commitIfCurrent, start, tok, claims)
			c.finishInit()
			return
		}
	}

	if errors.Is(err, ErrNoSession) {
		c.logger.Debug("no session to resume")
	} else {
		c.logger.Warn("silent sign-in failed", "error", err)
	}

	// An unreachable provider says nothing about the stored token, so it is
	// kept for the next start.
	c.clear(ctx, start, false, !errors.Is(err, ErrProviderUnreachable))
	c.finishInit()
}

func (c *Coordinator) finishInit() {
	c.initOK = c.IsAuthenticated()
	close(c.initDone)
}

/* Redirect flows */

// Login records where the user is and redirects to the provider's sign-in
// page.
func (c *Coordinator) Login(ctx context.Context, opts RedirectOptions) error {
	return c.redirect(ctx, opts, c.provider.LoginURL)
}

// Register is Login aimed at the provider's registration page.
func (c *Coordinator) Register(ctx context.Context, opts RedirectOptions) error {
	return c.redirect(ctx, opts, c.provider.RegisterURL)
}

func (c *Coordinator) redirect(
	ctx context.Context,
	opts RedirectOptions,
	build func(context.Context, RedirectOptions) (string, error),
) error {
	returnTo := opts.ReturnTo
	if returnTo == "" {
		returnTo = c.nav.Location(ctx)
	}
	if returnTo != "" {
		c.store.SetReturnURL(ctx, returnTo)
	}

	target, err := build(ctx, opts)
	if err != nil {
		return fmt.Errorf("build redirect: %w", err)
	}
	return c.nav.Redirect(ctx, target)
}

// HandleCallback completes a login from the parameters the provider sent back
// and reports whether a session was established. When it runs before
// Initialize it also settles initialization.
func (c *Coordinator) HandleCallback(ctx context.Context, params url.Values) bool {
	ok := c.handleCallback(ctx, params)

	c.initOnce.Do(func() {
		c.sched.Start(c.bg, c.safetyNet)
		c.finishInit()
	})
	return ok
}

func (c *Coordinator) handleCallback(ctx context.Context, params url.Values) bool {
	tok, err := c.provider.ExchangeCallback(ctx, params)
	if err != nil {
		c.logger.Warn("login callback failed", "error", err)
		return false
	}

	claims, err := jwtx.Decode(tok.AccessToken)
	if err != nil {
		c.logger.Warn("login callback returned an unusable token", "error", err)
		return false
	}

	c.commit(ctx, commitAlways, 0, tok, claims)
	c.logger.Info("signed in", "subject", claims.Subject)
	return true
}

// NextURL consumes the pending redirect marker. Without one it falls back to
// the landing page for the current identity, then "/".
func (c *Coordinator) NextURL(ctx context.Context) string {
	if u, ok := c.store.TakeReturnURL(ctx); ok {
		return u
	}
	if c.landing != nil {
		if p := c.landing(c.GetCurrentIdentity()); p != "" {
			return p
		}
	}
	return "/"
}

// Logout signs the user out. Subscribers hear about it while the token is
// still persisted; storage is cleared afterwards and the browser is sent to
// the provider's logout endpoint.
func (c *Coordinator) Logout(ctx context.Context, opts RedirectOptions) error {
	prev := c.snapshot()
	if opts.IDTokenHint == "" {
		opts.IDTokenHint = tokenstore.IDToken(prev.token)
	}

	c.writeMu.Lock()
	v := c.swap(state{})
	c.writeMu.Unlock()

	c.notify(v, nil)

	// A sign-in that completed while subscribers were being told owns storage
	// and the timer now.
	c.writeMu.Lock()
	if c.version() == v {
		c.store.Clear(ctx)
		c.store.ClearReturnURL(ctx)
		c.sched.Cancel()
	}
	c.writeMu.Unlock()

	if prev.identity != nil {
		c.logger.Info("signed out", "subject", prev.identity.SubjectID)
	}

	target, err := c.provider.LogoutURL(ctx, opts)
	if err != nil {
		return fmt.Errorf("build logout redirect: %w", err)
	}
	return c.nav.Redirect(ctx, target)
}

/* Accessors */

// GetToken returns a bearer token that is not inside the refresh lead window,
// renewing it first when needed. If renewal fails re-authentication is forced
// and ErrSessionExpired returned; a stale token is never handed out.
func (c *Coordinator) GetToken(ctx context.Context) (string, error) {
	if _, err := c.Initialize(ctx); err != nil {
		return "", err
	}

	snap := c.snapshot()
	if snap.token == nil {
		return "", ErrUnauthenticated
	}
	if snap.claims.ExpiresAtTime().Sub(c.now()) > c.lead {
		return snap.token.AccessToken, nil
	}

	tok, err := c.refreshShared(ctx, c.lead)
	switch {
	case err == nil:
		return tok.AccessToken, nil
	case errors.Is(err, ErrUnauthenticated):
		return "", ErrUnauthenticated
	case ctx.Err() != nil:
		return "", ctx.Err()
	case c.superseded(err):
		// Signed in again while the old token was being renewed.
		if cur := c.snapshot(); cur.token != nil && !cur.claims.Expired(c.now()) {
			return cur.token.AccessToken, nil
		}
		return "", ErrUnauthenticated
	}

	c.forceReauth(context.WithoutCancel(ctx), err)
	return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

// GetCurrentIdentity returns the signed-in identity or nil.
func (c *Coordinator) GetCurrentIdentity() *Identity {
	return c.snapshot().identity
}

// IsAuthenticated reports whether a token is held and has not yet expired.
func (c *Coordinator) IsAuthenticated() bool {
	snap := c.snapshot()
	return snap.claims != nil && !snap.claims.Expired(c.now())
}

// Expiry returns when the current token expires.
func (c *Coordinator) Expiry() (time.Time, bool) {
	snap := c.snapshot()
	if snap.claims == nil {
		return time.Time{}, false
	}
	return snap.claims.ExpiresAtTime(), true
}

func (c *Coordinator) snapshot() state {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st
}

func (c *Coordinator) version() uint64 {
	return c.snapshot().version
}

/* Commits */

type commitMode int

const (
	// commitIfCurrent drops the result when anything else committed since the
	// work started.
	commitIfCurrent commitMode = iota
	// commitRefresh is commitIfCurrent for renewed tokens.
	commitRefresh
	// commitAlways is used by a completed login.
	commitAlways
)

// commit persists tok, makes it the Session State, arms the scheduler and
// notifies subscribers. It returns false when the result was superseded.
func (c *Coordinator) commit(ctx context.Context, mode commitMode, expect uint64, tok *oauth2.Token, claims *jwtx.Claims) bool {
	identity := newIdentity(claims, c.roleClients)

	c.writeMu.Lock()
	if mode != commitAlways && c.version() != expect {
		c.writeMu.Unlock()
		return false
	}
	c.store.Save(ctx, tok)
	v := c.swap(state{token: tok, claims: claims, identity: identity})
	c.arm(claims, mode == commitRefresh)
	c.writeMu.Unlock()

	c.reauthing.Store(false)
	c.notify(v, identity)
	return true
}

// clear empties Session State. Without force it does nothing when something
// else committed since expect. dropToken also removes the persisted token.
func (c *Coordinator) clear(ctx context.Context, expect uint64, force, dropToken bool) bool {
	c.writeMu.Lock()
	if !force && c.version() != expect {
		c.writeMu.Unlock()
		return false
	}
	if dropToken {
		c.store.Clear(ctx)
	}
	v := c.swap(state{})
	c.sched.Cancel()
	c.writeMu.Unlock()

	c.notify(v, nil)
	return true
}

// swap installs next with a fresh version. Callers hold writeMu.
func (c *Coordinator) swap(next state) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	next.version = c.st.version + 1
	c.st = next
	return next.version
}

// arm schedules the next proactive refresh. A renewed token that already sits
// inside the lead window (lifetime shorter than the lead) is refreshed at its
// half-life instead, so the timer cannot spin.
func (c *Coordinator) arm(claims *jwtx.Claims, renewed bool) {
	exp := claims.ExpiresAtTime()
	if renewed {
		now := c.now()
		if remaining := exp.Sub(now); remaining <= c.lead {
			exp = now.Add(c.lead + remaining/2)
		}
	}
	c.sched.Schedule(exp, c.onDue)
}
