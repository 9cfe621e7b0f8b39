package idp

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"golang.org/x/oauth2"
)

// InitSilent resumes the persisted session. A still-valid access token is
// returned as is; an expired one is renewed with its refresh token.
func (c *Client) InitSilent(ctx context.Context, persisted *oauth2.Token) (*oauth2.Token, error) {
	if persisted == nil || persisted.AccessToken == "" {
		return nil, session.ErrNoSession
	}

	claims, err := jwtx.Decode(persisted.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrNoSession, err)
	}
	if !claims.Expired(c.now()) {
		return persisted, nil
	}
	if persisted.RefreshToken == "" {
		return nil, fmt.Errorf("%w: stored token expired", session.ErrNoSession)
	}
	return c.refresh(ctx, persisted)
}

// RefreshToken renews current with the refresh grant unless it stays valid
// for longer than minValidity. A negative minValidity always renews.
func (c *Client) RefreshToken(ctx context.Context, current *oauth2.Token, minValidity time.Duration) (*oauth2.Token, error) {
	if current == nil {
		return nil, session.ErrNoSession
	}
	if minValidity >= 0 {
		if claims, err := jwtx.Decode(current.AccessToken); err == nil &&
			claims.ExpiresAtTime().Sub(c.now()) > minValidity {
			return current, nil
		}
	}
	return c.refresh(ctx, current)
}

func (c *Client) refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", session.ErrRefreshRejected)
	}

	e, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	// An empty access token is never valid, so the source goes straight to
	// the refresh grant.
	src := e.oauth.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classify(ctx, "refresh token", err)
	}

	// Keycloak omits the id_token on some refreshes; keep the old one so
	// logout can still pass it as a hint.
	if tokenstore.IDToken(tok) == "" {
		if prev := tokenstore.IDToken(current); prev != "" {
			tok = tok.WithExtra(map[string]any{"id_token": prev})
		}
	}
	return tok, nil
}
