package remote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/inventory"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// revisionKey names the mirror's change counter in its sync_state table.
const revisionKey = "mirror.revision"

// PushHook runs before a pushed action is applied. A non-nil error is
// returned to the caller instead of applying the action.
type PushHook func(ctx context.Context, action model.PendingAction) error

// Mirror is a remote authority over its own store. Pushed actions are
// applied in arrival order, last writer wins. Every applied action bumps a
// persistent revision; PullSnapshot returns nothing when the caller's cursor
// equals the current revision and the full row-set otherwise.
//
// Thread-safety: Mirror is safe for concurrent use via internal mutex.
type Mirror struct {
	store *store.Store
	cache *cache.Cache
	clock clock.Clock

	mu        sync.Mutex
	offline   bool
	rejects   map[string]string
	hook      PushHook
	delivered []model.PendingAction
}

// NewMirror creates a mirror over s.
func NewMirror(s *store.Store, clk clock.Clock) *Mirror {
	if clk == nil {
		clk = clock.System{}
	}
	return &Mirror{
		store:   s,
		cache:   cache.New(s),
		clock:   clk,
		rejects: make(map[string]string),
	}
}

// SetOffline switches the mirror between reachable and unreachable.
func (m *Mirror) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Offline reports whether the mirror is unreachable.
func (m *Mirror) Offline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offline
}

// RejectEntity makes every subsequent action targeting entityID fail with
// REMOTE_REJECTED and the given reason. An empty reason clears the rule.
func (m *Mirror) RejectEntity(entityID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason == "" {
		delete(m.rejects, entityID)
		return
	}
	m.rejects[entityID] = reason
}

// SetPushHook installs a hook that runs before each push. Nil removes it.
func (m *Mirror) SetPushHook(hook PushHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Delivered returns the actions applied so far, in arrival order.
func (m *Mirror) Delivered() []model.PendingAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PendingAction, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// Cache exposes the mirror's entity tables for inspection.
func (m *Mirror) Cache() *cache.Cache {
	return m.cache
}

// Seed writes rows directly into the mirror, as if another device had
// pushed them, and bumps the revision.
func (m *Mirror) Seed(ctx context.Context, items []model.Item, cats []model.Category, profiles []model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Update(ctx, func(tx *store.Tx) error {
		w := m.cache.In(tx)
		if err := w.UpsertItems(ctx, items); err != nil {
			return err
		}
		if err := w.UpsertCategories(ctx, cats); err != nil {
			return err
		}
		if err := w.UpsertProfiles(ctx, profiles); err != nil {
			return err
		}
		return m.bump(ctx, tx)
	})
}

// PushAction applies one action.
func (m *Mirror) PushAction(ctx context.Context, action model.PendingAction) error {
	m.mu.Lock()
	hook := m.hook
	offline := m.offline
	reason, rejected := m.rejects[action.EntityID]
	m.mu.Unlock()

	if offline {
		return syncerr.Transient("push", ErrOffline)
	}
	if hook != nil {
		if err := hook(ctx, action); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return syncerr.Classify("push", err)
	}
	if rejected {
		return syncerr.Rejected("push", actionID(action), reason)
	}

	decoded, err := inventory.Decode(action)
	if err != nil {
		return syncerr.Rejected("push", actionID(action), err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.store.Update(ctx, func(tx *store.Tx) error {
		if err := m.apply(ctx, m.cache.In(tx), decoded); err != nil {
			return err
		}
		return m.bump(ctx, tx)
	})
	switch {
	case err == nil:
		m.delivered = append(m.delivered, action)
		return nil
	case syncerr.IsNotFound(err):
		return syncerr.Rejected("push", actionID(action), fmt.Sprintf("%s %s does not exist", decoded.Type.EntityType(), decoded.EntityID))
	case syncerr.IsRejected(err):
		return syncerr.Rejected("push", actionID(action), reasonOf(err))
	default:
		// The remote's own storage failing looks like an outage to the caller.
		return syncerr.Transient("push", err)
	}
}

func (m *Mirror) apply(ctx context.Context, w *cache.Writer, d inventory.Decoded) error {
	switch d.Type {
	case model.ActionAddItem:
		if err := validateItem(*d.Item); err != nil {
			return err
		}
		return w.UpsertItem(ctx, *d.Item)

	case model.ActionUpdateItem:
		if _, err := w.GetItem(ctx, d.EntityID); err != nil {
			return err
		}
		if err := validateItem(*d.Item); err != nil {
			return err
		}
		return w.UpsertItem(ctx, *d.Item)

	case model.ActionUpdateQuantity:
		if d.Quantity.Quantity < 0 {
			return syncerr.Rejected("push", "", "quantity must not be negative")
		}
		return w.AdjustQuantity(ctx, d.EntityID, d.Quantity.Quantity)

	case model.ActionDeleteItem:
		return w.SoftDelete(ctx, d.EntityID, d.Delete.DeletedAt, d.Delete.DeletedBy)

	case model.ActionAddCategory:
		if d.Category.Name == "" {
			return syncerr.Rejected("push", "", "category name is required")
		}
		return w.UpsertCategory(ctx, *d.Category)

	case model.ActionUpdateProfile:
		if d.Profile.Email == "" {
			return syncerr.Rejected("push", "", "profile email is required")
		}
		return w.UpsertProfile(ctx, *d.Profile)
	}
	return syncerr.Rejected("push", "", fmt.Sprintf("unsupported action %q", d.Type))
}

func validateItem(item model.Item) error {
	switch {
	case item.Name == "":
		return syncerr.Rejected("push", "", "item name is required")
	case item.BuyingPrice < 0 || item.SellingPrice < 0:
		return syncerr.Rejected("push", "", "prices must not be negative")
	}
	return nil
}

// PullSnapshot returns the rows of one entity type. Tombstoned items are
// included so deletions propagate.
func (m *Mirror) PullSnapshot(ctx context.Context, entity model.EntityType, cursor string) (Snapshot, error) {
	switch entity {
	case model.EntityItem, model.EntityCategory, model.EntityProfile:
	default:
		return Snapshot{}, syncerr.Fatal("pull", fmt.Errorf("unknown entity type %q", entity))
	}
	if m.Offline() {
		return Snapshot{}, syncerr.Transient("pull", ErrOffline)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var snap Snapshot
	err := m.store.View(ctx, func(tx *store.Tx) error {
		rev, err := tx.Cursor(ctx, revisionKey)
		if err != nil {
			return err
		}
		if rev == "" {
			rev = "0"
		}
		snap.Cursor = rev
		if cursor == rev {
			return nil
		}

		w := m.cache.In(tx)
		switch entity {
		case model.EntityItem:
			snap.Items, err = w.ListAllItems(ctx)
		case model.EntityCategory:
			snap.Categories, err = w.ListCategories(ctx)
		case model.EntityProfile:
			snap.Profiles, err = w.ListProfiles(ctx)
		}
		return err
	})
	if err != nil {
		return Snapshot{}, syncerr.Transient("pull", err)
	}
	return snap, nil
}

// Revision returns the mirror's current change counter.
func (m *Mirror) Revision(ctx context.Context) (int64, error) {
	rev, err := m.store.Cursor(ctx, revisionKey)
	if err != nil || rev == "" {
		return 0, err
	}
	return strconv.ParseInt(rev, 10, 64)
}

func (m *Mirror) bump(ctx context.Context, tx *store.Tx) error {
	rev, err := tx.Cursor(ctx, revisionKey)
	if err != nil {
		return err
	}
	n := int64(0)
	if rev != "" {
		if n, err = strconv.ParseInt(rev, 10, 64); err != nil {
			return syncerr.Fatal("bump revision", err)
		}
	}
	return tx.SetCursor(ctx, revisionKey, strconv.FormatInt(n+1, 10), m.clock.Now())
}

func reasonOf(err error) string {
	var e *syncerr.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func actionID(a model.PendingAction) string {
	return strconv.FormatInt(a.ID, 10)
}
