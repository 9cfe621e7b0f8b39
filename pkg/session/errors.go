package session

import (
	"errors"

	"github.com/aussiebroadwan/authsession/pkg/jwtx"
)

var (
	// ErrMalformedToken means a token payload could not be decoded. Such a
	// token is treated exactly like no token at all.
	ErrMalformedToken = jwtx.ErrMalformed

	// ErrProviderUnreachable covers network failures and timeouts talking to
	// the identity provider. Background work retries it; the critical path
	// treats it as fatal.
	ErrProviderUnreachable = errors.New("session: identity provider unreachable")

	// ErrRefreshRejected means the provider refused to renew the session, for
	// example because it was revoked. Always fatal.
	ErrRefreshRejected = errors.New("session: refresh rejected by identity provider")

	// ErrNoSession is returned by Provider.InitSilent when there is nothing to
	// resume.
	ErrNoSession = errors.New("session: no existing session")

	ErrUnauthenticated = errors.New("session: not authenticated")

	// ErrSessionExpired is returned from GetToken after a failed refresh
	// started re-authentication.
	ErrSessionExpired = errors.New("session: expired, re-authentication required")
)
