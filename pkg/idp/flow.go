package idp

import (
	"cmp"
	"context"
	"fmt"
	"net/url"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
	"github.com/aussiebroadwan/authsession/pkg/session"
	"github.com/aussiebroadwan/authsession/pkg/tokenstore"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// LoginURL starts an authorization code flow and returns the URL to send the
// browser to.
func (c *Client) LoginURL(ctx context.Context, opts session.RedirectOptions) (string, error) {
	return c.authorize(ctx, opts, false)
}

// RegisterURL is LoginURL aimed at the provider's registration page.
func (c *Client) RegisterURL(ctx context.Context, opts session.RedirectOptions) (string, error) {
	return c.authorize(ctx, opts, true)
}

func (c *Client) authorize(ctx context.Context, opts session.RedirectOptions, register bool) (string, error) {
	e, err := c.discover(ctx)
	if err != nil {
		return "", err
	}

	flow, err := c.newFlow(cmp.Or(opts.RedirectURI, c.cfg.RedirectURL))
	if err != nil {
		return "", err
	}
	c.store.PutFlow(ctx, flow, c.flowTTL)

	params := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(flow.Verifier),
		oidc.Nonce(flow.Nonce),
		oauth2.SetAuthURLParam("redirect_uri", flow.RedirectURI),
	}
	if opts.LoginHint != "" {
		params = append(params, oauth2.SetAuthURLParam("login_hint", opts.LoginHint))
	}
	if opts.Locale != "" {
		params = append(params, oauth2.SetAuthURLParam("ui_locales", opts.Locale))
	}

	cfg := e.oauth
	prompt := opts.Prompt
	if register {
		if e.registration != "" {
			cfg.Endpoint.AuthURL = e.registration
		} else if prompt == "" {
			prompt = "create"
		}
	}
	if prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", prompt))
	}

	return cfg.AuthCodeURL(flow.State, params...), nil
}

func (c *Client) newFlow(redirectURI string) (tokenstore.Flow, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return tokenstore.Flow{}, fmt.Errorf("generate state: %w", err)
	}
	nonce, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return tokenstore.Flow{}, fmt.Errorf("generate nonce: %w", err)
	}

	return tokenstore.Flow{
		State:       state,
		Nonce:       nonce,
		Verifier:    oauth2.GenerateVerifier(),
		RedirectURI: redirectURI,
		CreatedAt:   c.now(),
	}, nil
}

// ExchangeCallback completes the flow identified by the state parameter. The
// flow is consumed whether or not the exchange succeeds.
func (c *Client) ExchangeCallback(ctx context.Context, params url.Values) (*oauth2.Token, error) {
	if code := params.Get("error"); code != "" {
		return nil, fmt.Errorf("authorization failed: %w", &OAuth2Error{
			Code:        code,
			Description: params.Get("error_description"),
		})
	}

	flow, ok := c.store.TakeFlow(ctx, params.Get("state"))
	if !ok {
		return nil, ErrUnknownState
	}
	code := params.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	e, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	hctx := c.httpContext(ctx)
	tok, err := e.oauth.Exchange(hctx, code,
		oauth2.VerifierOption(flow.Verifier),
		oauth2.SetAuthURLParam("redirect_uri", flow.RedirectURI),
	)
	if err != nil {
		return nil, classify(ctx, "exchange code", err)
	}

	raw := tokenstore.IDToken(tok)
	if raw == "" {
		return nil, ErrMissingIDToken
	}
	idToken, err := e.verifier.Verify(hctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}
	if idToken.Nonce != flow.Nonce {
		return nil, ErrNonceMismatch
	}

	c.logger.Debug("authorization code exchanged", "subject", idToken.Subject)
	return tok, nil
}
