package idp

import (
	"cmp"
	"context"
	"fmt"
	"net/url"

	"github.com/aussiebroadwan/authsession/pkg/session"
)

// LogoutURL builds the RP-initiated logout URL. Providers without an
// end_session_endpoint get the post-logout redirect itself.
func (c *Client) LogoutURL(ctx context.Context, opts session.RedirectOptions) (string, error) {
	e, err := c.discover(ctx)
	if err != nil {
		return "", err
	}

	post := cmp.Or(opts.RedirectURI, c.cfg.PostLogoutRedirectURL)
	if e.endSession == "" {
		if post == "" {
			return "", ErrLogoutUnsupported
		}
		return post, nil
	}

	u, err := url.Parse(e.endSession)
	if err != nil {
		return "", fmt.Errorf("parse end_session_endpoint: %w", err)
	}

	q := u.Query()
	q.Set("client_id", c.cfg.ClientID)
	if opts.IDTokenHint != "" {
		q.Set("id_token_hint", opts.IDTokenHint)
	}
	if post != "" {
		q.Set("post_logout_redirect_uri", post)
	}
	if opts.Locale != "" {
		q.Set("ui_locales", opts.Locale)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
