// Package outbox implements the durable queue of pending mutation actions.
//
// The queue does not interpret payloads, deduplicate by entity, or coalesce
// actions. Delivery order is created_at ascending, then id ascending. Ids are
// assigned by the store, increase monotonically and are never reused, even
// after PruneSynced removes the rows that held them.
package outbox

import (
	"context"
	"fmt"

	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// Queue is the outbox.
type Queue struct {
	store *store.Store
	clock clock.Clock
}

// New creates a queue over s. Enqueued actions without a CreatedAt are
// stamped with clk.
func New(s *store.Store, clk clock.Clock) *Queue {
	if clk == nil {
		clk = clock.System{}
	}
	return &Queue{store: s, clock: clk}
}

// In returns a Writer bound to tx.
func (q *Queue) In(tx *store.Tx) *Writer {
	return &Writer{tx: tx, clock: q.clock}
}

// Enqueue appends an unsynced action and returns it with its assigned id.
func (q *Queue) Enqueue(ctx context.Context, action model.PendingAction) (model.PendingAction, error) {
	var out model.PendingAction
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		out, err = q.In(tx).Enqueue(ctx, action)
		return err
	})
	return out, err
}

// ListPending returns every unsynced action in delivery order.
func (q *Queue) ListPending(ctx context.Context) ([]model.PendingAction, error) {
	return listPending(ctx, q.store.DB())
}

// PendingCount returns the number of unsynced actions.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := q.store.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_actions WHERE synced = 0`).Scan(&n)
	if err != nil {
		return 0, store.Classify("count pending", err)
	}
	return n, nil
}

// MarkSynced flags an action as delivered. Marking an already-synced or
// unknown id is a no-op.
func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	return q.store.Update(ctx, func(tx *store.Tx) error {
		return q.In(tx).MarkSynced(ctx, id)
	})
}

// PruneSynced deletes every synced action and returns how many were removed.
func (q *Queue) PruneSynced(ctx context.Context) (int64, error) {
	var n int64
	err := q.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		n, err = q.In(tx).PruneSynced(ctx)
		return err
	})
	return n, err
}

// WipeAll hard-deletes every action, synced or not.
func (q *Queue) WipeAll(ctx context.Context) error {
	return q.store.Update(ctx, func(tx *store.Tx) error {
		return q.In(tx).WipeAll(ctx)
	})
}

// WatchPending streams ListPending after every outbox change.
func (q *Queue) WatchPending(ctx context.Context) *store.Live[[]model.PendingAction] {
	return store.Watch(ctx, q.store, q.ListPending, store.TablePendingActions)
}

// Writer performs outbox mutations inside an existing transaction.
type Writer struct {
	tx    *store.Tx
	clock clock.Clock
}

// Enqueue appends an unsynced action. Type must be a known action type and
// EntityID must be set. The Synced field of the argument is ignored.
func (w *Writer) Enqueue(ctx context.Context, action model.PendingAction) (model.PendingAction, error) {
	if !action.Type.Valid() {
		return model.PendingAction{}, syncerr.Fatal("enqueue", fmt.Errorf("unknown action type %q", action.Type))
	}
	if action.EntityID == "" {
		return model.PendingAction{}, syncerr.Fatal("enqueue", fmt.Errorf("action %s has no entity id", action.Type))
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = w.clock.Now()
	}
	action.CreatedAt = action.CreatedAt.UTC()
	if action.Payload == nil {
		action.Payload = []byte("{}")
	}
	action.Synced = false

	res, err := w.tx.ExecContext(ctx, `
		INSERT INTO pending_actions (type, entity_id, payload, created_at, synced)
		VALUES (?, ?, ?, ?, 0)
	`, string(action.Type), action.EntityID, string(action.Payload), store.Nanos(action.CreatedAt))
	if err != nil {
		return model.PendingAction{}, store.Classify("enqueue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.PendingAction{}, store.Classify("enqueue", err)
	}

	action.ID = id
	w.tx.Touch(store.TablePendingActions)
	return action, nil
}

// MarkSynced flags an action as delivered. See Queue.MarkSynced.
func (w *Writer) MarkSynced(ctx context.Context, id int64) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE pending_actions SET synced = 1 WHERE id = ? AND synced = 0`, id)
	if err != nil {
		return store.Classify("mark synced", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		w.tx.Touch(store.TablePendingActions)
	}
	return nil
}

// PruneSynced deletes every synced action.
func (w *Writer) PruneSynced(ctx context.Context) (int64, error) {
	res, err := w.tx.ExecContext(ctx, `DELETE FROM pending_actions WHERE synced = 1`)
	if err != nil {
		return 0, store.Classify("prune synced", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Classify("prune synced", err)
	}
	if n > 0 {
		w.tx.Touch(store.TablePendingActions)
	}
	return n, nil
}

// WipeAll hard-deletes every action.
func (w *Writer) WipeAll(ctx context.Context) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM pending_actions`); err != nil {
		return store.Classify("wipe outbox", err)
	}
	w.tx.Touch(store.TablePendingActions)
	return nil
}

// PendingEntityIDs returns the set of entity ids that have at least one
// unsynced action.
func (w *Writer) PendingEntityIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := w.tx.QueryContext(ctx,
		`SELECT DISTINCT entity_id FROM pending_actions WHERE synced = 0`)
	if err != nil {
		return nil, store.Classify("pending entity ids", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.Classify("pending entity ids", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("pending entity ids", err)
	}
	return ids, nil
}

// ListPending returns unsynced actions within the transaction.
func (w *Writer) ListPending(ctx context.Context) ([]model.PendingAction, error) {
	return listPending(ctx, w.tx)
}

func listPending(ctx context.Context, q store.Querier) ([]model.PendingAction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, entity_id, payload, created_at, synced
		FROM pending_actions
		WHERE synced = 0
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, store.Classify("list pending", err)
	}
	defer rows.Close()

	var actions []model.PendingAction
	for rows.Next() {
		var (
			a         model.PendingAction
			typ       string
			payload   string
			createdAt int64
			synced    int
		)
		if err := rows.Scan(&a.ID, &typ, &a.EntityID, &payload, &createdAt, &synced); err != nil {
			return nil, store.Classify("list pending", err)
		}
		t, err := model.ParseActionType(typ)
		if err != nil {
			return nil, syncerr.Fatal("list pending", fmt.Errorf("action %d: %w", a.ID, err))
		}
		a.Type = t
		a.Payload = []byte(payload)
		a.CreatedAt = store.FromNanos(createdAt)
		a.Synced = synced != 0
		actions = append(actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list pending", err)
	}
	return actions, nil
}
