package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "modernc.org/sqlite"
)

// pragmas applied by the driver to every new connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

type DB struct {
	Pool *sql.DB
	Path string
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*DB, error) {
	pool, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one connection: concurrent scan workers queue here instead of
	// tripping SQLITE_BUSY
	pool.SetMaxOpenConns(1)
	pool.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if err := Migrate(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &DB{Pool: pool, Path: path}, nil
}

// Checkpoint folds the WAL back into the main database file.
func (d *DB) Checkpoint(ctx context.Context) error {
	if _, err := d.Pool.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	if d == nil || d.Pool == nil {
		return nil
	}
	return d.Pool.Close()
}
