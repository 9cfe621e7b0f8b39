// Package client talks to a running agent over its local HTTP API. The CLI
// commands other than serve are built on it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/idp"
)

// ErrAgentUnavailable means nothing answered at the agent address.
var ErrAgentUnavailable = errors.New("agent is not running")

// Error is a non-2xx agent response.
type Error struct {
	*idp.OAuth2Error

	LoginURL string
}

func (e *Error) Unwrap() error { return e.OAuth2Error }

type Client struct {
	BaseURL    string
	Secret     string
	HTTPClient *http.Client
}

func New(baseURL, secret string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Secret:     secret,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoginURL is the agent page that starts a browser login.
func (c *Client) LoginURL(returnTo string) string {
	if returnTo == "" {
		return c.url("/login")
	}
	return c.url("/login?" + url.Values{"return_to": {returnTo}}.Encode())
}

func (c *Client) Token(ctx context.Context) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.call(ctx, http.MethodGet, "/v1/token", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*IdentityResponse, error) {
	var out IdentityResponse
	if err := c.call(ctx, http.MethodGet, "/v1/me", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.call(ctx, http.MethodGet, "/v1/session", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) (*LogoutResponse, error) {
	var out LogoutResponse
	if err := c.call(ctx, http.MethodPost, "/logout", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.call(ctx, http.MethodGet, "/livez", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) call(ctx context.Context, method, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.Secret)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w at %s: %w", ErrAgentUnavailable, c.BaseURL, err)
	}
	return decodeJSON(resp, target)
}

// decodeJSON decodes a 2xx response into target and anything else into an
// *Error.
func decodeJSON(resp *http.Response, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if oe := idp.ParseErrorResponse(resp.StatusCode, body); oe != nil {
		var extra ErrorResponse
		_ = json.Unmarshal(body, &extra)
		return &Error{OAuth2Error: oe, LoginURL: extra.LoginURL}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
