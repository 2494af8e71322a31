package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ndomog/internal/syncerr"
)

// Tx is a write scope over the store. Writes made through a Tx become
// visible atomically when the enclosing Update commits.
type Tx struct {
	tx      *sql.Tx
	touched map[Table]struct{}
}

// ExecContext executes a statement within the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query within the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query within the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// Touch records that the transaction modified the given tables.
// Subscribers of those tables are signalled after commit.
func (t *Tx) Touch(tables ...Table) {
	for _, table := range tables {
		t.touched[table] = struct{}{}
	}
}

// Update runs fn inside a write transaction. If fn returns an error the
// transaction is rolled back and the error is returned; otherwise it is
// committed and subscribers of every touched table are notified.
//
// fn must not call back into the store with s.DB(): the single connection
// is held by the transaction.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}

	// Rollback after Commit is a no-op; the deferred call covers a panicking fn.
	defer func() { _ = sqlTx.Rollback() }()

	tx := &Tx{tx: sqlTx, touched: make(map[Table]struct{})}
	if err := fn(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return Classify("commit transaction", err)
	}

	s.hub.notify(tx.touched)
	return nil
}

// View runs fn inside a transaction that is always rolled back, giving fn a
// consistent snapshot across several queries.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify("begin transaction", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	return fn(&Tx{tx: sqlTx, touched: make(map[Table]struct{})})
}

// Cursor returns the pull cursor stored under name, or "" if none exists.
func (t *Tx) Cursor(ctx context.Context, name string) (string, error) {
	var cursor string
	err := t.tx.QueryRowContext(ctx,
		`SELECT cursor FROM sync_state WHERE name = ?`, name,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", Classify("read cursor", err)
	}
	return cursor, nil
}

// SetCursor stores the pull cursor for name.
func (t *Tx) SetCursor(ctx context.Context, name, cursor string, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sync_state (name, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			cursor = excluded.cursor,
			updated_at = excluded.updated_at
	`, name, cursor, at.UnixNano())
	if err != nil {
		return Classify("write cursor", err)
	}
	t.Touch(TableSyncState)
	return nil
}

// ClearCursor removes the pull cursor stored under name, so the next pull
// for it fetches a full snapshot. Clearing an absent cursor is a no-op.
func (t *Tx) ClearCursor(ctx context.Context, name string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM sync_state WHERE name = ?`, name); err != nil {
		return Classify("clear cursor", err)
	}
	t.Touch(TableSyncState)
	return nil
}

// ClearCursors removes every stored pull cursor.
func (t *Tx) ClearCursors(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM sync_state`); err != nil {
		return Classify("clear cursors", err)
	}
	t.Touch(TableSyncState)
	return nil
}

// Cursor reads a pull cursor outside of any transaction.
func (s *Store) Cursor(ctx context.Context, name string) (string, error) {
	var cursor string
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		cursor, err = tx.Cursor(ctx, name)
		return err
	})
	return cursor, err
}

// Classify maps a database error to a coded error. Lock contention that
// outlasted busy_timeout is TRANSIENT_IO; everything else is FATAL.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if syncerr.CodeOf(err) != "" {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return syncerr.Transient(op, err)
		}
	}
	return syncerr.Classify(op, err)
}
