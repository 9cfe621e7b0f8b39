// Package navigator is the agent's session.Navigator. Inside an HTTP request
// redirects are captured so the handler can answer with them; outside one
// (a refresh timer forcing re-authentication) the login page is opened in
// the system browser or logged for the user to follow.
package navigator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/skratchdot/open-golang/open"
)

type ctxKey struct{}

// Pending collects the redirect issued while serving one request.
type Pending struct {
	location string

	mu     sync.Mutex
	target string
}

// WithRequest returns a context whose redirects are captured in the returned
// Pending. location is what the coordinator records as the return URL; empty
// means the navigator's default.
func WithRequest(ctx context.Context, location string) (context.Context, *Pending) {
	p := &Pending{location: location}
	return context.WithValue(ctx, ctxKey{}, p), p
}

func fromContext(ctx context.Context) *Pending {
	p, _ := ctx.Value(ctxKey{}).(*Pending)
	return p
}

// Target returns the captured redirect, if any.
func (p *Pending) Target() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target, p.target != ""
}

type Navigator struct {
	home   string
	open   bool
	opener func(string) error
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

type Option func(*Navigator)

// WithBrowser makes background redirects open the system browser.
func WithBrowser(enabled bool) Option {
	return func(n *Navigator) { n.open = enabled }
}

// WithOpener replaces the browser launcher, mostly for tests.
func WithOpener(fn func(string) error) Option {
	return func(n *Navigator) { n.opener = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) { n.logger = logger }
}

// New returns a Navigator whose location outside a request is home.
func New(home string, opts ...Option) *Navigator {
	n := &Navigator{
		home:   home,
		opener: open.Run,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Navigator) Location(ctx context.Context) string {
	if p := fromContext(ctx); p != nil && p.location != "" {
		return p.location
	}
	return n.home
}

func (n *Navigator) Redirect(ctx context.Context, target string) error {
	if p := fromContext(ctx); p != nil {
		p.mu.Lock()
		p.target = target
		p.mu.Unlock()
		return nil
	}

	n.mu.Lock()
	n.last = target
	n.mu.Unlock()

	if n.open {
		err := n.opener(target)
		if err == nil {
			n.logger.Info("opened browser", "url", target)
			return nil
		}
		n.logger.Warn("failed to open browser", "error", err)
	}
	n.logger.Warn("sign-in required, open this URL to continue", "url", target)
	return nil
}

// LastRedirect returns the most recent redirect issued outside a request.
func (n *Navigator) LastRedirect() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// ClearLastRedirect forgets it once a new session is established.
func (n *Navigator) ClearLastRedirect() {
	n.mu.Lock()
	n.last = ""
	n.mu.Unlock()
}
