// Package sqlite is a durable tokenstore.Backend on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Backend struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies pending migrations.
func Open(path string) (*Backend, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	return OpenDSN(dsn)
}

func OpenDSN(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	b := &Backend{db: db, now: time.Now}
	if err := b.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return b, nil
}

func (b *Backend) Close() error { return b.db.Close() }

func (b *Backend) Ping(ctx context.Context) error { return b.db.PingContext(ctx) }

// WithTx runs fn in a transaction, committing when fn returns nil.
func (b *Backend) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *Backend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return get(ctx, b.db, key, b.now())
}

func (b *Backend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := b.now()

	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, value, expires, now.UnixMilli(),
	)
	return err
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, key)
	return err
}

func (b *Backend) Take(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)

	err := b.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		value, found, err = get(ctx, tx, key, b.now())
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, key)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (b *Backend) Sweep(ctx context.Context) (int, error) {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM slots WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		b.now().UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func get(ctx context.Context, q querier, key string, now time.Time) ([]byte, bool, error) {
	var (
		value   []byte
		expires sql.NullInt64
	)

	err := q.QueryRowContext(ctx,
		`SELECT value, expires_at FROM slots WHERE key = ?`, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if expires.Valid && expires.Int64 <= now.UnixMilli() {
		return nil, false, nil
	}
	return value, true, nil
}
