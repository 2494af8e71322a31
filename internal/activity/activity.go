// Package activity implements the local, append-only audit trail of
// user-visible actions.
//
// Entries are never mutated and never synced through the outbox. Reads are
// bounded: Recent returns at most limit entries, newest first.
package activity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/ids"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// DefaultRecentLimit is the page size used when limit is not positive.
const DefaultRecentLimit = 50

// Log is the activity log.
type Log struct {
	store *store.Store
	clock clock.Clock
	ids   ids.Generator
}

// New creates a log over s. Entries without an id get one from gen;
// entries without a timestamp are stamped with clk.
func New(s *store.Store, clk clock.Clock, gen ids.Generator) *Log {
	if clk == nil {
		clk = clock.System{}
	}
	if gen == nil {
		gen = ids.UUIDv7{}
	}
	return &Log{store: s, clock: clk, ids: gen}
}

// In returns a Writer bound to tx.
func (l *Log) In(tx *store.Tx) *Writer {
	return &Writer{tx: tx, log: l}
}

// Append inserts an entry and returns it with defaults filled in.
func (l *Log) Append(ctx context.Context, entry model.ActivityLog) (model.ActivityLog, error) {
	var out model.ActivityLog
	err := l.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		out, err = l.In(tx).Append(ctx, entry)
		return err
	})
	return out, err
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]model.ActivityLog, error) {
	return recent(ctx, l.store.DB(), limit)
}

// WipeAll hard-deletes every entry.
func (l *Log) WipeAll(ctx context.Context) error {
	return l.store.Update(ctx, func(tx *store.Tx) error {
		return l.In(tx).WipeAll(ctx)
	})
}

// WatchRecent streams Recent(limit) after every activity log change.
func (l *Log) WatchRecent(ctx context.Context, limit int) *store.Live[[]model.ActivityLog] {
	return store.Watch(ctx, l.store, func(ctx context.Context) ([]model.ActivityLog, error) {
		return l.Recent(ctx, limit)
	}, store.TableActivityLogs)
}

// Writer appends entries inside an existing transaction.
type Writer struct {
	tx  *store.Tx
	log *Log
}

// Append inserts an entry. UserID, Action and EntityID are required.
// ID, Timestamp and EntityType default when empty. Re-appending an id that
// already exists is ignored, which keeps retried appends from duplicating.
func (w *Writer) Append(ctx context.Context, entry model.ActivityLog) (model.ActivityLog, error) {
	switch {
	case entry.UserID == "":
		return model.ActivityLog{}, syncerr.Fatal("append activity", errors.New("user id is required"))
	case entry.Action == "":
		return model.ActivityLog{}, syncerr.Fatal("append activity", errors.New("action is required"))
	case entry.EntityID == "":
		return model.ActivityLog{}, syncerr.Fatal("append activity", errors.New("entity id is required"))
	}

	if entry.ID == "" {
		entry.ID = w.log.ids.Generate()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = w.log.clock.Now()
	}
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.EntityType == "" {
		entry.EntityType = model.EntityItem
	}

	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO activity_logs (
			id, user_id, username, action, entity_type,
			entity_id, entity_name, timestamp, details
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		entry.ID,
		entry.UserID,
		entry.Username,
		entry.Action,
		string(entry.EntityType),
		entry.EntityID,
		entry.EntityName,
		store.Nanos(entry.Timestamp),
		store.NullString(entry.Details),
	)
	if err != nil {
		return model.ActivityLog{}, store.Classify("append activity", err)
	}

	w.tx.Touch(store.TableActivityLogs)
	return entry, nil
}

// WipeAll hard-deletes every entry.
func (w *Writer) WipeAll(ctx context.Context) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM activity_logs`); err != nil {
		return store.Classify("wipe activity", err)
	}
	w.tx.Touch(store.TableActivityLogs)
	return nil
}

func recent(ctx context.Context, q store.Querier, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, username, action, entity_type,
		       entity_id, entity_name, timestamp, details
		FROM activity_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, store.Classify("recent activity", err)
	}
	defer rows.Close()

	var entries []model.ActivityLog
	for rows.Next() {
		var (
			e          model.ActivityLog
			entityType string
			timestamp  int64
			details    sql.NullString
		)
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Username, &e.Action, &entityType,
			&e.EntityID, &e.EntityName, &timestamp, &details,
		)
		if err != nil {
			return nil, store.Classify("recent activity", err)
		}
		e.EntityType = model.EntityType(entityType)
		e.Timestamp = store.FromNanos(timestamp)
		e.Details = store.StringFromNull(details)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("recent activity", err)
	}
	return entries, nil
}
