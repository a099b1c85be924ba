// Package sqlitestore is the durable KV backend. A single-table sqlite
// database keeps the footprint suitable for device-local storage; an optional
// Sealer encrypts values at rest.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/jking1031/ZZIOT2.0-sub002/internal/seal"
	"github.com/jking1031/ZZIOT2.0-sub002/store"
)

type SQLiteStore struct {
	db     *sql.DB
	sealer *seal.Sealer
}

var _ store.KV = (*SQLiteStore)(nil)

type Option func(*SQLiteStore)

// WithSealer encrypts values before they are written and decrypts on read.
func WithSealer(sealer *seal.Sealer) Option {
	return func(s *SQLiteStore) {
		s.sealer = sealer
	}
}

// Open creates or opens the database at path. ":memory:" is accepted for
// tests.
func Open(path string, options ...Option) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[sqlitestore.Open] resolve db path")
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, pkgerrors.Wrap(err, "[sqlitestore.Open] create db dir")
		}
		dsn = absPath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[sqlitestore.Open] open sqlite db")
	}

	// sqlite single-writer: cap pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	for _, opt := range options {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.migrate] create kv table")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[SQLiteStore.Get] query")
	}
	if s.sealer != nil {
		opened, err := s.sealer.Open(value)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[SQLiteStore.Get] unseal value")
		}
		value = opened
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(value)
		if err != nil {
			return pkgerrors.Wrap(err, "[SQLiteStore.Set] seal value")
		}
		value = sealed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		 updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')`,
		key, value)
	if err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.Set] upsert")
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return pkgerrors.Wrap(err, "[SQLiteStore.Remove] delete")
	}
	return nil
}
