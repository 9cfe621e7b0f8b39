// Package tokenstore persists the session token, the pending redirect marker
// and in-flight login attempts. It never reports failure to its callers: when
// the backend breaks, the store logs ErrStorageUnavailable once, switches to
// an in-memory backend for the rest of the process and answers "absent" for
// anything it could not read.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

var ErrStorageUnavailable = errors.New("tokenstore: storage unavailable")

const (
	DefaultPrefix = "authsession:"

	slotToken    = "token"
	slotRedirect = "redirect_url"
	slotFlow     = "flow:"
)

// Store is safe for concurrent use.
type Store struct {
	prefix string
	logger *slog.Logger

	mu       sync.RWMutex
	backend  Backend
	degraded bool
}

type Option func(*Store)

// WithPrefix namespaces every slot so several applications can share one
// backend.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		prefix:  DefaultPrefix,
		logger:  slog.Default(),
		backend: backend,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.backend == nil {
		s.backend = NewMemory()
	}
	return s
}

// Degraded reports whether the store has fallen back to memory.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

func (s *Store) Close() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Close()
}

/* Session token */

// record is the persisted form of a token. oauth2.Token drops its extras when
// marshalled, so the id_token travels in its own field.
type record struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
	IDToken      string    `json:"id_token,omitempty"`
}

// IDToken returns the id_token extra carried by tok, if any.
func IDToken(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	v, _ := tok.Extra("id_token").(string)
	return v
}

func (s *Store) Save(ctx context.Context, tok *oauth2.Token) {
	if tok == nil || tok.AccessToken == "" {
		s.Clear(ctx)
		return
	}

	raw, err := json.Marshal(record{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		IDToken:      IDToken(tok),
	})
	if err != nil {
		s.logger.Error("failed to encode session token", "error", err)
		return
	}
	s.set(ctx, slotToken, raw, 0)
}

// Read returns the persisted token. Corrupt records are removed and reported
// as absent.
func (s *Store) Read(ctx context.Context) (*oauth2.Token, bool) {
	raw, ok := s.get(ctx, slotToken)
	if !ok {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.AccessToken == "" {
		s.logger.Warn("discarding unreadable session token")
		s.del(ctx, slotToken)
		return nil, false
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    rec.TokenType,
		RefreshToken: rec.RefreshToken,
		Expiry:       rec.Expiry,
	}
	if rec.IDToken != "" {
		tok = tok.WithExtra(map[string]any{"id_token": rec.IDToken})
	}
	return tok, true
}

func (s *Store) Clear(ctx context.Context) {
	s.del(ctx, slotToken)
}

/* Pending redirect marker */

func (s *Store) SetReturnURL(ctx context.Context, url string) {
	s.set(ctx, slotRedirect, []byte(url), 0)
}

// TakeReturnURL consumes the marker. A second call returns false.
func (s *Store) TakeReturnURL(ctx context.Context) (string, bool) {
	raw, ok := s.take(ctx, slotRedirect)
	if !ok || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// ClearReturnURL drops the marker without reading it.
func (s *Store) ClearReturnURL(ctx context.Context) {
	s.del(ctx, slotRedirect)
}

/* Login flows */

// Flow is the client half of an authorization code request, kept until the
// provider redirects back with a matching state.
type Flow struct {
	State       string    `json:"state"`
	Nonce       string    `json:"nonce"`
	Verifier    string    `json:"verifier"`
	RedirectURI string    `json:"redirect_uri"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) PutFlow(ctx context.Context, f Flow, ttl time.Duration) {
	raw, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("failed to encode login flow", "error", err)
		return
	}
	s.set(ctx, slotFlow+f.State, raw, ttl)
}

// TakeFlow consumes the flow started with state.
func (s *Store) TakeFlow(ctx context.Context, state string) (Flow, bool) {
	if state == "" {
		return Flow{}, false
	}
	raw, ok := s.take(ctx, slotFlow+state)
	if !ok {
		return Flow{}, false
	}

	var f Flow
	if err := json.Unmarshal(raw, &f); err != nil {
		s.logger.Warn("discarding unreadable login flow", "error", err)
		return Flow{}, false
	}
	return f, true
}

// Sweep drops expired slots, returning how many were removed.
func (s *Store) Sweep(ctx context.Context) int {
	n, err := s.current().Sweep(ctx)
	if err != nil {
		s.Degrade(err)
		return 0
	}
	return n
}

/* backend access with degradation */

func (s *Store) current() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// Degrade switches the store to memory for the rest of the process. Callers
// use it when the persistent backend could not be opened at all.
func (s *Store) Degrade(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.degraded {
		return
	}
	s.degraded = true
	old := s.backend
	s.backend = NewMemory()

	s.logger.Error("session storage unavailable, continuing in memory",
		"error", errors.Join(ErrStorageUnavailable, cause),
	)
	_ = old.Close()
}

func (s *Store) get(ctx context.Context, slot string) ([]byte, bool) {
	v, ok, err := s.current().Get(ctx, s.prefix+slot)
	if err != nil {
		s.Degrade(err)
		return nil, false
	}
	return v, ok
}

func (s *Store) take(ctx context.Context, slot string) ([]byte, bool) {
	v, ok, err := s.current().Take(ctx, s.prefix+slot)
	if err != nil {
		s.Degrade(err)
		return nil, false
	}
	return v, ok
}

func (s *Store) set(ctx context.Context, slot string, value []byte, ttl time.Duration) {
	if err := s.current().Set(ctx, s.prefix+slot, value, ttl); err != nil {
		s.Degrade(err)
		// Keep the value for the rest of this process.
		_ = s.current().Set(ctx, s.prefix+slot, value, ttl)
	}
}

func (s *Store) del(ctx context.Context, slot string) {
	if err := s.current().Delete(ctx, s.prefix+slot); err != nil {
		s.Degrade(err)
	}
}
