// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/ManuGH/ratewait/internal/ratelimit"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS limiter_state (
	key        TEXT PRIMARY KEY,
	tat        INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS limiter_state_expires ON limiter_state (expires_at);
`

// SQLiteConfig defines SQLite operational parameters.
type SQLiteConfig struct {
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the recommended configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{BusyTimeout: 5 * time.Second}
}

// SQLite keeps limiter state in a SQLite file. All access goes through a
// single connection, which serialises the read-modify-write of Update.
type SQLite struct {
	db     *sql.DB
	now    func() time.Time
	logger zerolog.Logger
}

// OpenSQLite opens the database at path with WAL mode and creates the schema.
func OpenSQLite(ctx context.Context, path string, cfg SQLiteConfig, logger zerolog.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	logger.Info().
		Str("event", "store.opened").
		Str("backend", "sqlite").
		Str("path", path).
		Msg("opened sqlite limiter store")

	return &SQLite{db: db, now: time.Now, logger: logger}, nil
}

func (s *SQLite) Backend() string { return BackendSQLite }

func (s *SQLite) Update(ctx context.Context, key string, ttl time.Duration, fn ratelimit.UpdateFunc) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	var (
		tat     int64
		expires int64
		found   = true
	)
	err = tx.QueryRowContext(ctx,
		`SELECT tat, expires_at FROM limiter_state WHERE key = ?`, key,
	).Scan(&tat, &expires)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		found = false
	case err != nil:
		return fmt.Errorf("sqlite: select: %w", err)
	case expires <= now.UnixNano():
		found = false
	}

	next, err := fn(tat, found)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO limiter_state (key, tat, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET tat = excluded.tat, expires_at = excluded.expires_at`,
		key, next, now.Add(ttl).UnixNano(),
	); err != nil {
		return fmt.Errorf("sqlite: upsert: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Sweep deletes expired rows.
func (s *SQLite) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM limiter_state WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: sweep rows: %w", err)
	}
	return int(n), nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
