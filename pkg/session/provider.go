package session

import (
	"context"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// RedirectOptions tune the URLs a Provider builds for browser redirects.
type RedirectOptions struct {
	// ReturnTo overrides the Navigator location recorded as the pending
	// redirect marker by Login and Register.
	ReturnTo string

	// RedirectURI replaces the provider's configured callback (or
	// post-logout) URL.
	RedirectURI string

	LoginHint string
	Prompt    string
	Locale    string

	// IDTokenHint is set by Logout from the current session.
	IDTokenHint string
}

// Provider is the identity-provider client the coordinator drives. Any error
// fails the calling operation. Implementations wrap ErrProviderUnreachable,
// ErrRefreshRejected or ErrNoSession so callers can tell them apart.
type Provider interface {
	// InitSilent resumes an existing session without user interaction. The
	// persisted token may be nil.
	InitSilent(ctx context.Context, persisted *oauth2.Token) (*oauth2.Token, error)

	// ExchangeCallback turns the query parameters of the redirect back from
	// the provider into a token.
	ExchangeCallback(ctx context.Context, params url.Values) (*oauth2.Token, error)

	// RefreshToken renews current. It may return current unchanged while it
	// stays valid for longer than minValidity; a negative minValidity forces
	// the exchange.
	RefreshToken(ctx context.Context, current *oauth2.Token, minValidity time.Duration) (*oauth2.Token, error)

	LoginURL(ctx context.Context, opts RedirectOptions) (string, error)
	RegisterURL(ctx context.Context, opts RedirectOptions) (string, error)
	LogoutURL(ctx context.Context, opts RedirectOptions) (string, error)
}

// Navigator is where the coordinator reads the current location from and
// sends full redirects to.
type Navigator interface {
	Location(ctx context.Context) string
	Redirect(ctx context.Context, target string) error
}

// ExpiredEvent describes a session lost on the critical path. Presentation
// decides how to surface it.
type ExpiredEvent struct {
	Subject   string
	ReturnURL string
	At        time.Time
	Cause     error
}

// Notifier renders the single notice shown when re-authentication is forced.
type Notifier interface {
	SessionExpired(ctx context.Context, ev ExpiredEvent)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev ExpiredEvent)

func (f NotifierFunc) SessionExpired(ctx context.Context, ev ExpiredEvent) { f(ctx, ev) }
