package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"golang.org/x/oauth2"
)

// forceRenewal asks the provider for a new token even if the current one is
// still comfortably valid.
const forceRenewal = -1 * time.Second

// Refresh renews the token now. A failure leaves Session State alone so a
// transient outage is retried later, except ErrRefreshRejected which forces
// re-authentication.
func (c *Coordinator) Refresh(ctx context.Context) (bool, error) {
	return c.backgroundRefresh(ctx, forceRenewal)
}

func (c *Coordinator) backgroundRefresh(ctx context.Context, minValidity time.Duration) (bool, error) {
	_, err := c.refreshShared(ctx, minValidity)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRefreshRejected):
		c.forceReauth(context.WithoutCancel(ctx), err)
	case errors.Is(err, ErrUnauthenticated), ctx.Err() != nil:
	default:
		c.logger.Warn("background refresh failed, will retry", "error", err)
	}
	return false, err
}

// refreshError is a failed renewal of the session committed as version.
type refreshError struct {
	version uint64
	err     error
}

func (e *refreshError) Error() string { return e.err.Error() }
func (e *refreshError) Unwrap() error { return e.err }

// superseded reports whether err is a renewal failure for a session that has
// since been replaced by a newer commit.
func (c *Coordinator) superseded(err error) bool {
	var re *refreshError
	return errors.As(err, &re) && re.version != c.version()
}

// refreshShared joins the refresh already in flight or starts one. The
// exchange itself is detached from ctx so one caller giving up does not fail
// the others.
func (c *Coordinator) refreshShared(ctx context.Context, minValidity time.Duration) (*oauth2.Token, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return c.doRefresh(detached, minValidity)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) doRefresh(ctx context.Context, minValidity time.Duration) (*oauth2.Token, error) {
	snap := c.snapshot()
	if snap.token == nil {
		return nil, ErrUnauthenticated
	}
	// A flight that finished just before this one may already have renewed
	// the token.
	if minValidity >= 0 && snap.claims.ExpiresAtTime().Sub(c.now()) > minValidity {
		return snap.token, nil
	}

	tok, err := c.provider.RefreshToken(ctx, snap.token, minValidity)
	if err != nil {
		return nil, &refreshError{version: snap.version, err: err}
	}
	if tok.AccessToken == snap.token.AccessToken {
		return snap.token, nil
	}

	claims, err := jwtx.Decode(tok.AccessToken)
	if err != nil {
		return nil, &refreshError{version: snap.version, err: fmt.Errorf("renewed token: %w", err)}
	}
	if claims.Subject != snap.claims.Subject {
		err := fmt.Errorf("%w: subject changed from %q to %q", ErrRefreshRejected, snap.claims.Subject, claims.Subject)
		return nil, &refreshError{version: snap.version, err: err}
	}
	if claims.Expired(c.now()) {
		err := fmt.Errorf("%w: renewed token is already expired", ErrRefreshRejected)
		return nil, &refreshError{version: snap.version, err: err}
	}

	if !c.commit(ctx, commitRefresh, snap.version, tok, claims) {
		// Logged out or signed in again while the exchange was in flight.
		if cur := c.snapshot(); cur.token != nil {
			return cur.token, nil
		}
		return nil, ErrUnauthenticated
	}

	c.logger.Debug("token refreshed", "subject", claims.Subject, "expires_at", claims.ExpiresAtTime())
	return tok, nil
}

// onDue runs when the proactive timer fires. It is on the critical path, so
// failure forces re-authentication.
func (c *Coordinator) onDue() {
	if c.snapshot().token == nil {
		return
	}

	_, err := c.refreshShared(c.bg, c.lead)
	if err == nil || errors.Is(err, ErrUnauthenticated) || c.bg.Err() != nil {
		return
	}
	c.forceReauth(c.bg, err)
}

// safetyNet catches a refresh the timer missed, for example after the host
// slept through it. It follows the background policy.
func (c *Coordinator) safetyNet(ctx context.Context) {
	snap := c.snapshot()
	if snap.token == nil {
		return
	}

	if snap.claims.ExpiresAtTime().Sub(c.now()) > c.lead {
		if !c.sched.Armed() {
			c.arm(snap.claims, false)
		}
		return
	}

	c.logger.Info("refresh timer missed, refreshing from safety net",
		"expires_at", snap.claims.ExpiresAtTime(),
	)
	_, _ = c.backgroundRefresh(ctx, c.lead)
}

// forceReauth records where the user was, raises one expiry notice, drops the
// session and sends the browser to the provider's login page. Concurrent
// triggers collapse into one; a new commit re-arms it. A failure that belongs
// to a session already replaced by a newer sign-in is ignored.
func (c *Coordinator) forceReauth(ctx context.Context, cause error) {
	snap := c.snapshot()
	var re *refreshError
	if errors.As(cause, &re) && re.version != snap.version {
		c.logger.Debug("ignoring renewal failure of a replaced session", "error", cause)
		return
	}
	if !c.reauthing.CompareAndSwap(false, true) {
		return
	}
	returnURL := c.nav.Location(ctx)
	if returnURL != "" {
		c.store.SetReturnURL(ctx, returnURL)
	}

	ev := ExpiredEvent{ReturnURL: returnURL, At: c.now(), Cause: cause}
	if snap.identity != nil {
		ev.Subject = snap.identity.SubjectID
	}
	c.logger.Warn("session expired, re-authentication required", "subject", ev.Subject, "error", cause)
	c.notifier.SessionExpired(ctx, ev)

	if !c.clear(ctx, snap.version, false, true) {
		c.reauthing.Store(false)
		return
	}

	target, err := c.provider.LoginURL(ctx, RedirectOptions{})
	if err != nil {
		c.logger.Error("failed to build login redirect", "error", err)
		return
	}
	if err := c.nav.Redirect(ctx, target); err != nil {
		c.logger.Error("failed to redirect to login", "error", err)
	}
}
