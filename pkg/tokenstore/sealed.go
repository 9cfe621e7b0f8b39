package tokenstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authsession/pkg/cryptox"
)

// Sealed encrypts every value before handing it to the wrapped Backend. The
// slot key is bound in as additional data, so a value copied into another
// slot fails to open.
type Sealed struct {
	inner  Backend
	sealer *cryptox.Sealer
	logger *slog.Logger
}

// NewSealed wraps inner with AES-256-GCM under a key derived from passphrase.
// salt should be stable for the lifetime of the stored data.
func NewSealed(inner Backend, passphrase, salt string, logger *slog.Logger) (*Sealed, error) {
	sealer, err := cryptox.NewSealer(cryptox.DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sealed{inner: inner, sealer: sealer, logger: logger}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.open(ctx, key, sealed)
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := s.sealer.Seal(value, []byte(key))
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed, ttl)
}

func (s *Sealed) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

func (s *Sealed) Take(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, ok, err := s.inner.Take(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.open(ctx, key, sealed)
}

func (s *Sealed) Sweep(ctx context.Context) (int, error) { return s.inner.Sweep(ctx) }

func (s *Sealed) Close() error { return s.inner.Close() }

// open treats a slot that no longer decrypts (passphrase changed, tampering)
// as absent and drops it.
func (s *Sealed) open(ctx context.Context, key string, sealed []byte) ([]byte, bool, error) {
	plain, err := s.sealer.Open(sealed, []byte(key))
	if err != nil {
		s.logger.Warn("discarding unreadable sealed slot", "key", key, "error", err)
		_ = s.inner.Delete(ctx, key)
		return nil, false, nil
	}
	return plain, true, nil
}
