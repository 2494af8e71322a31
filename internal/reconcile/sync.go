package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/remote"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// push delivers the pending snapshot in order and prunes what was synced.
// A nil return with rep.Halted set means the push stopped at a skipped
// rejection; the pull still runs.
func (r *Reconciler) push(ctx context.Context, rep *Report) error {
	actions, err := r.outbox.ListPending(ctx)
	if err != nil {
		return err
	}

	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			rep.Halted = true
			rep.Remaining = len(actions) - i
			return err
		}

		err := r.pushOne(ctx, action)
		switch {
		case err == nil:
			// Delivered: do not let a cancellation that raced the call
			// leave the action pending.
			if err := r.outbox.MarkSynced(context.WithoutCancel(ctx), action.ID); err != nil {
				rep.Halted = true
				rep.Remaining = len(actions) - i
				return err
			}
			rep.Pushed++

		case syncerr.IsRejected(err):
			rej := Rejection{
				ActionID: action.ID,
				Type:     action.Type,
				EntityID: action.EntityID,
				Reason:   reasonOf(err),
			}
			rep.Rejected = append(rep.Rejected, rej)
			rep.Halted = true
			r.logger.Warn("remote rejected action",
				"action_id", action.ID,
				"type", string(action.Type),
				"entity_id", action.EntityID,
				"reason", rej.Reason,
				"policy", string(r.cfg.RejectPolicy),
			)

			if r.cfg.RejectPolicy == RejectBlock {
				rep.Remaining = len(actions) - i
				if perr := r.prune(ctx, rep); perr != nil {
					r.logger.Warn("prune after blocked push failed", "error", perr)
				}
				return err
			}
			if err := r.skipRejected(context.WithoutCancel(ctx), action, rej.Reason); err != nil {
				rep.Remaining = len(actions) - i
				return err
			}
			rep.Remaining = len(actions) - i - 1
			return r.prune(ctx, rep)

		default:
			rep.Halted = true
			rep.Remaining = len(actions) - i
			r.logger.Warn("push halted",
				"action_id", action.ID,
				"type", string(action.Type),
				"remaining", rep.Remaining,
				"error", err,
			)
			if perr := r.prune(ctx, rep); perr != nil {
				r.logger.Warn("prune after halted push failed", "error", perr)
			}
			return syncerr.Classify("push", err)
		}
	}

	return r.prune(ctx, rep)
}

// pushOne calls the backend under the per-action timeout. The call is
// detached from ctx cancellation so an in-flight action always finishes.
func (r *Reconciler) pushOne(ctx context.Context, action model.PendingAction) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ActionTimeout)
	defer cancel()

	err := r.backend.PushAction(callCtx, action)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !syncerr.IsRejected(err) {
		return syncerr.Transient("push", fmt.Errorf("action %d: %w", action.ID, context.DeadlineExceeded))
	}
	return err
}

func (r *Reconciler) prune(ctx context.Context, rep *Report) error {
	n, err := r.outbox.PruneSynced(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	rep.Pruned += n
	return nil
}

// skipRejected marks a rejected action synced and records why, in one
// transaction. The entity type's pull cursor is cleared as well: the remote
// did not change, so only a full snapshot brings back its copy of the
// entity over the rejected local edit.
func (r *Reconciler) skipRejected(ctx context.Context, action model.PendingAction, reason string) error {
	return r.store.Update(ctx, func(tx *store.Tx) error {
		if err := r.outbox.In(tx).MarkSynced(ctx, action.ID); err != nil {
			return err
		}
		if err := tx.ClearCursor(ctx, cursorKey(action.Type.EntityType())); err != nil {
			return err
		}
		_, err := r.activity.In(tx).Append(ctx, model.ActivityLog{
			UserID:     r.actor.ID,
			Username:   r.actor.Name,
			Action:     model.ActivitySyncRejected,
			EntityType: action.Type.EntityType(),
			EntityID:   action.EntityID,
			EntityName: r.entityName(ctx, tx, action),
			Details:    model.StringPtr(fmt.Sprintf("%s rejected: %s", action.Type, reason)),
		})
		return err
	})
}

// entityName resolves a display name for an activity entry, falling back
// to the entity id.
func (r *Reconciler) entityName(ctx context.Context, tx *store.Tx, action model.PendingAction) string {
	w := r.cache.In(tx)
	switch action.Type.EntityType() {
	case model.EntityItem:
		if item, err := w.GetItem(ctx, action.EntityID); err == nil {
			return item.Name
		}
	case model.EntityCategory:
		if cat, err := w.GetCategory(ctx, action.EntityID); err == nil {
			return cat.Name
		}
	case model.EntityProfile:
		if p, err := w.GetProfile(ctx, action.EntityID); err == nil {
			return p.DisplayName()
		}
	}
	return action.EntityID
}

// pull refreshes every entity type in dependency order. Rows of entities
// that still have pending local actions are skipped so a pull never
// overwrites an undelivered local change.
func (r *Reconciler) pull(ctx context.Context, rep *Report) error {
	for _, entity := range model.PullOrder {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.pullOne(ctx, entity, rep); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) pullOne(ctx context.Context, entity model.EntityType, rep *Report) error {
	key := cursorKey(entity)
	cursor, err := r.store.Cursor(ctx, key)
	if err != nil {
		return err
	}

	snap, err := r.pullSnapshot(ctx, entity, cursor)
	if err != nil {
		return err
	}
	if snap.Len() == 0 && snap.Cursor == cursor {
		return nil
	}

	return r.store.Update(ctx, func(tx *store.Tx) error {
		pending, err := r.outbox.In(tx).PendingEntityIDs(ctx)
		if err != nil {
			return err
		}
		w := r.cache.In(tx)

		switch entity {
		case model.EntityItem:
			items := make([]model.Item, 0, len(snap.Items))
			for _, item := range snap.Items {
				if _, ok := pending[item.ID]; ok {
					rep.Skipped++
					continue
				}
				items = append(items, item)
			}
			if err := w.UpsertItems(ctx, items); err != nil {
				return err
			}
			rep.PulledItems += len(items)

		case model.EntityCategory:
			cats := make([]model.Category, 0, len(snap.Categories))
			for _, cat := range snap.Categories {
				if _, ok := pending[cat.ID]; ok {
					rep.Skipped++
					continue
				}
				cats = append(cats, cat)
			}
			if err := w.UpsertCategories(ctx, cats); err != nil {
				return err
			}
			rep.PulledCategories += len(cats)

		case model.EntityProfile:
			profiles := make([]model.Profile, 0, len(snap.Profiles))
			for _, p := range snap.Profiles {
				if _, ok := pending[p.ID]; ok {
					rep.Skipped++
					continue
				}
				profiles = append(profiles, p)
			}
			if err := w.UpsertProfiles(ctx, profiles); err != nil {
				return err
			}
			rep.PulledProfiles += len(profiles)
		}

		return tx.SetCursor(ctx, key, snap.Cursor, r.clock.Now())
	})
}

func (r *Reconciler) pullSnapshot(ctx context.Context, entity model.EntityType, cursor string) (remote.Snapshot, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.ActionTimeout)
	defer cancel()

	snap, err := r.backend.PullSnapshot(callCtx, entity, cursor)
	if err != nil {
		return remote.Snapshot{}, syncerr.Classify("pull "+string(entity), err)
	}
	return snap, nil
}

func reasonOf(err error) string {
	var e *syncerr.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
