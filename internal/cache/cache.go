// Package cache holds the authoritative local copies of items, categories
// and profiles.
//
// Upserts replace whole rows keyed by id; the last writer wins. Items are
// never hard-deleted during normal operation: SoftDelete sets a tombstone
// and default listings exclude tombstoned rows. WipeAll is the only path
// that removes rows, and it is reserved for a full local reset.
//
// Every Cache method runs in its own transaction. Use In to perform cache
// writes inside a caller's transaction alongside outbox and activity writes.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// Tables lists the row-sets owned by the cache.
var Tables = []store.Table{store.TableItems, store.TableCategories, store.TableProfiles}

// Cache is the entity cache.
type Cache struct {
	store *store.Store
}

// New creates a cache over s.
func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// In returns a Writer bound to tx.
func (c *Cache) In(tx *store.Tx) *Writer {
	return &Writer{tx: tx}
}

func (c *Cache) update(ctx context.Context, fn func(w *Writer) error) error {
	return c.store.Update(ctx, func(tx *store.Tx) error {
		return fn(c.In(tx))
	})
}

// UpsertItem inserts or replaces an item.
func (c *Cache) UpsertItem(ctx context.Context, item model.Item) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertItem(ctx, item) })
}

// UpsertItems inserts or replaces items as one atomic batch.
func (c *Cache) UpsertItems(ctx context.Context, items []model.Item) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertItems(ctx, items) })
}

// AdjustQuantity sets an item's quantity. NOT_FOUND if the id is absent.
func (c *Cache) AdjustQuantity(ctx context.Context, id string, quantity int) error {
	return c.update(ctx, func(w *Writer) error { return w.AdjustQuantity(ctx, id, quantity) })
}

// SoftDelete tombstones an item. See Writer.SoftDelete.
func (c *Cache) SoftDelete(ctx context.Context, id string, deletedAt time.Time, deletedBy string) error {
	return c.update(ctx, func(w *Writer) error { return w.SoftDelete(ctx, id, deletedAt, deletedBy) })
}

// UpsertCategory inserts or replaces a category.
func (c *Cache) UpsertCategory(ctx context.Context, cat model.Category) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertCategory(ctx, cat) })
}

// UpsertCategories inserts or replaces categories as one atomic batch.
func (c *Cache) UpsertCategories(ctx context.Context, cats []model.Category) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertCategories(ctx, cats) })
}

// UpsertProfile inserts or replaces a profile.
func (c *Cache) UpsertProfile(ctx context.Context, p model.Profile) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertProfile(ctx, p) })
}

// UpsertProfiles inserts or replaces profiles as one atomic batch.
func (c *Cache) UpsertProfiles(ctx context.Context, ps []model.Profile) error {
	return c.update(ctx, func(w *Writer) error { return w.UpsertProfiles(ctx, ps) })
}

// WipeAll hard-deletes every cached row.
func (c *Cache) WipeAll(ctx context.Context) error {
	return c.update(ctx, func(w *Writer) error { return w.WipeAll(ctx) })
}

// GetItem returns the item with id, tombstoned or not.
func (c *Cache) GetItem(ctx context.Context, id string) (model.Item, error) {
	return getItem(ctx, c.store.DB(), id)
}

// ListActiveItems returns non-deleted items, newest first.
func (c *Cache) ListActiveItems(ctx context.Context) ([]model.Item, error) {
	return listItems(ctx, c.store.DB(), true)
}

// ListAllItems returns every item including tombstones, newest first.
func (c *Cache) ListAllItems(ctx context.Context) ([]model.Item, error) {
	return listItems(ctx, c.store.DB(), false)
}

// GetCategory returns the category with id.
func (c *Cache) GetCategory(ctx context.Context, id string) (model.Category, error) {
	return getCategory(ctx, c.store.DB(), id)
}

// ListCategories returns all categories ordered by name.
func (c *Cache) ListCategories(ctx context.Context) ([]model.Category, error) {
	return listCategories(ctx, c.store.DB())
}

// GetProfile returns the profile with id.
func (c *Cache) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return getProfile(ctx, c.store.DB(), id)
}

// ListProfiles returns all profiles.
func (c *Cache) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return listProfiles(ctx, c.store.DB())
}

// WatchActiveItems streams ListActiveItems after every items change.
func (c *Cache) WatchActiveItems(ctx context.Context) *store.Live[[]model.Item] {
	return store.Watch(ctx, c.store, c.ListActiveItems, store.TableItems)
}

// WatchCategories streams ListCategories after every categories change.
func (c *Cache) WatchCategories(ctx context.Context) *store.Live[[]model.Category] {
	return store.Watch(ctx, c.store, c.ListCategories, store.TableCategories)
}

func notFoundOr(op, entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return syncerr.NotFound(op, entity, id)
	}
	return store.Classify(op, err)
}
