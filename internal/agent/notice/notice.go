// Package notice presents session events to the person at the keyboard: the
// one-time "session expired" notice and a warning shortly before the token
// runs out.
package notice

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/authsession/pkg/session"
)

// Notice is the agent's session.Notifier. It logs the expiry notice and keeps
// the latest one for the status endpoint.
type Notice struct {
	logger *slog.Logger

	mu   sync.Mutex
	last *session.ExpiredEvent
}

func New(logger *slog.Logger) *Notice {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notice{logger: logger}
}

func (n *Notice) SessionExpired(ctx context.Context, ev session.ExpiredEvent) {
	attrs := []any{"subject", ev.Subject, "at", ev.At}
	if ev.Cause != nil {
		attrs = append(attrs, "cause", ev.Cause.Error())
	}
	n.logger.WarnContext(ctx, "Your session has expired. Please sign in again.", attrs...)

	n.mu.Lock()
	n.last = &ev
	n.mu.Unlock()
}

// Last returns the most recent expiry notice.
func (n *Notice) Last() (session.ExpiredEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == nil {
		return session.ExpiredEvent{}, false
	}
	return *n.last, true
}

// Reset drops the stored notice after a successful sign-in.
func (n *Notice) Reset() {
	n.mu.Lock()
	n.last = nil
	n.mu.Unlock()
}
