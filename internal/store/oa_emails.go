package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"jobmail-engine/internal/domain"
)

var ErrNotFound = errors.New("store: not found")

// Export is the blob shape the extension kept under its storage key.
type Export struct {
	OAEmails []domain.OAEmailEntry `json:"oaEmails"`
}

// OAStore persists detected OA emails, one row per thread id.
type OAStore struct {
	db *sql.DB
}

func NewOAStore(db *sql.DB) *OAStore {
	return &OAStore{db: db}
}

// Save inserts e unless its id is already stored. The first saved content for
// an id wins; added reports whether e was written.
func (s *OAStore) Save(ctx context.Context, e domain.OAEmailEntry) (added bool, err error) {
	if e.ID == "" {
		return false, errors.New("save oa email: empty id")
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO oa_emails (id, subject, sender, summary, snippet, classification, timestamp, read)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.Subject, e.Sender, e.Summary, e.Snippet, string(e.Classification), e.Timestamp, e.Read,
	)
	if err != nil {
		return false, fmt.Errorf("save oa email %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save oa email %s: %w", e.ID, err)
	}
	return n > 0, nil
}

const selectCols = `SELECT id, subject, sender, summary, snippet, classification, timestamp, read FROM oa_emails`

// List returns every entry, most recently saved first.
func (s *OAStore) List(ctx context.Context) ([]domain.OAEmailEntry, error) {
	rows, err := s.db.QueryContext(ctx, selectCols+` ORDER BY seq DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list oa emails: %w", err)
	}
	defer rows.Close()

	out := []domain.OAEmailEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list oa emails: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list oa emails: %w", err)
	}
	return out, nil
}

func (s *OAStore) Get(ctx context.Context, id string) (domain.OAEmailEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, selectCols+` WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OAEmailEntry{}, ErrNotFound
	}
	if err != nil {
		return domain.OAEmailEntry{}, fmt.Errorf("get oa email %s: %w", id, err)
	}
	return e, nil
}

func (s *OAStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE oa_emails SET read = 1 WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("mark oa email %s read: %w", id, err)
	}
	return affected(res)
}

func (s *OAStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oa_emails WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete oa email %s: %w", id, err)
	}
	return affected(res)
}

// Clear removes every entry and returns how many were dropped.
func (s *OAStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM oa_emails;`)
	if err != nil {
		return 0, fmt.Errorf("clear oa emails: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *OAStore) Count(ctx context.Context) (total, unread int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN read = 0 THEN 1 ELSE 0 END), 0) FROM oa_emails;`,
	).Scan(&total, &unread)
	if err != nil {
		return 0, 0, fmt.Errorf("count oa emails: %w", err)
	}
	return total, unread, nil
}

// Snapshot returns the whole collection in export form, newest first.
func (s *OAStore) Snapshot(ctx context.Context) (Export, error) {
	list, err := s.List(ctx)
	if err != nil {
		return Export{}, err
	}
	return Export{OAEmails: list}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (domain.OAEmailEntry, error) {
	var e domain.OAEmailEntry
	var class string
	err := r.Scan(&e.ID, &e.Subject, &e.Sender, &e.Summary, &e.Snippet, &class, &e.Timestamp, &e.Read)
	e.Classification = domain.Classification(class)
	return e, err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
