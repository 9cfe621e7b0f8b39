package session

import (
	"log/slog"
	"time"
)

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithRefreshLead sets how long before expiry the token is renewed.
func WithRefreshLead(d time.Duration) Option {
	return func(c *Coordinator) { c.lead = d }
}

// WithSafetyNetInterval sets how often the periodic expiry check runs.
func WithSafetyNetInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithLanding sets where NextURL sends a user when no pending redirect was
// recorded.
func WithLanding(fn func(*Identity) string) Option {
	return func(c *Coordinator) { c.landing = fn }
}

// WithRoleClients adds the client roles granted under resource_access for the
// named clients to Identity.Roles.
func WithRoleClients(clients ...string) Option {
	return func(c *Coordinator) { c.roleClients = append(c.roleClients, clients...) }
}
