package store

import (
	"database/sql"
)

const schemaVersion = 1

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= schemaVersion {
		return tx.Commit()
	}

	// ---- Schema v1 ----

	// seq records insertion order; id is the thread id and the dedup key.
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS oa_emails (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  id TEXT NOT NULL UNIQUE,
  subject TEXT NOT NULL DEFAULT '',
  sender TEXT NOT NULL DEFAULT '',
  summary TEXT NOT NULL DEFAULT '',
  snippet TEXT NOT NULL DEFAULT '',
  classification TEXT NOT NULL,
  timestamp INTEGER NOT NULL,
  read INTEGER NOT NULL DEFAULT 0
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_oa_emails_read
ON oa_emails(read);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}
