package cache

import (
	"context"
	"time"

	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// Writer performs cache mutations inside an existing transaction.
type Writer struct {
	tx *store.Tx
}

const upsertItemSQL = `
	INSERT INTO items (
		id, name, category, category_id, details, photo_url,
		buying_price, selling_price, quantity, low_stock_threshold,
		is_deleted, created_by, created_at, updated_at, deleted_at, deleted_by
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		category = excluded.category,
		category_id = excluded.category_id,
		details = excluded.details,
		photo_url = excluded.photo_url,
		buying_price = excluded.buying_price,
		selling_price = excluded.selling_price,
		quantity = excluded.quantity,
		low_stock_threshold = excluded.low_stock_threshold,
		is_deleted = excluded.is_deleted,
		created_by = excluded.created_by,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		deleted_at = excluded.deleted_at,
		deleted_by = excluded.deleted_by
`

// UpsertItem inserts or replaces an item. Every column is overwritten.
func (w *Writer) UpsertItem(ctx context.Context, item model.Item) error {
	_, err := w.tx.ExecContext(ctx, upsertItemSQL,
		item.ID,
		item.Name,
		item.Category,
		store.NullString(item.CategoryID),
		store.NullString(item.Details),
		store.NullString(item.PhotoURL),
		item.BuyingPrice,
		item.SellingPrice,
		item.Quantity,
		item.LowStockThreshold,
		store.Bool(item.IsDeleted),
		store.NullString(item.CreatedBy),
		store.NullNanos(item.CreatedAt),
		store.NullNanos(item.UpdatedAt),
		store.NullNanos(item.DeletedAt),
		store.NullString(item.DeletedBy),
	)
	if err != nil {
		return store.Classify("upsert item", err)
	}
	w.tx.Touch(store.TableItems)
	return nil
}

// UpsertItems inserts or replaces each item in order.
func (w *Writer) UpsertItems(ctx context.Context, items []model.Item) error {
	for _, item := range items {
		if err := w.UpsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// AdjustQuantity updates only the quantity column.
func (w *Writer) AdjustQuantity(ctx context.Context, id string, quantity int) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE items SET quantity = ? WHERE id = ?`, quantity, id)
	if err != nil {
		return store.Classify("adjust quantity", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Classify("adjust quantity", err)
	}
	if n == 0 {
		return syncerr.NotFound("adjust quantity", string(model.EntityItem), id)
	}
	w.tx.Touch(store.TableItems)
	return nil
}

// SoftDelete tombstones an item. Re-applying to an already-deleted item is a
// no-op: the first deletedAt and deletedBy are preserved. NOT_FOUND if the
// id is absent.
func (w *Writer) SoftDelete(ctx context.Context, id string, deletedAt time.Time, deletedBy string) error {
	res, err := w.tx.ExecContext(ctx, `
		UPDATE items SET is_deleted = 1, deleted_at = ?, deleted_by = ?
		WHERE id = ? AND is_deleted = 0
	`, store.Nanos(deletedAt), deletedBy, id)
	if err != nil {
		return store.Classify("soft delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Classify("soft delete", err)
	}
	if n > 0 {
		w.tx.Touch(store.TableItems)
		return nil
	}

	var exists int
	err = w.tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return notFoundOr("soft delete", string(model.EntityItem), id, err)
	}
	return nil
}

// UpsertCategory inserts or replaces a category.
func (w *Writer) UpsertCategory(ctx context.Context, cat model.Category) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_by, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_by = excluded.created_by,
			created_at = excluded.created_at
	`, cat.ID, cat.Name, store.NullString(cat.CreatedBy), store.NullNanos(cat.CreatedAt))
	if err != nil {
		return store.Classify("upsert category", err)
	}
	w.tx.Touch(store.TableCategories)
	return nil
}

// UpsertCategories inserts or replaces each category in order.
func (w *Writer) UpsertCategories(ctx context.Context, cats []model.Category) error {
	for _, cat := range cats {
		if err := w.UpsertCategory(ctx, cat); err != nil {
			return err
		}
	}
	return nil
}

// UpsertProfile inserts or replaces a profile.
func (w *Writer) UpsertProfile(ctx context.Context, p model.Profile) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO profiles (id, email, username, avatar_url) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			username = excluded.username,
			avatar_url = excluded.avatar_url
	`, p.ID, p.Email, store.NullString(p.Username), store.NullString(p.AvatarURL))
	if err != nil {
		return store.Classify("upsert profile", err)
	}
	w.tx.Touch(store.TableProfiles)
	return nil
}

// UpsertProfiles inserts or replaces each profile in order.
func (w *Writer) UpsertProfiles(ctx context.Context, ps []model.Profile) error {
	for _, p := range ps {
		if err := w.UpsertProfile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// WipeAll hard-deletes every row in every cache table.
func (w *Writer) WipeAll(ctx context.Context) error {
	for _, table := range Tables {
		if _, err := w.tx.ExecContext(ctx, "DELETE FROM "+string(table)); err != nil {
			return store.Classify("wipe cache", err)
		}
	}
	w.tx.Touch(Tables...)
	return nil
}

// GetItem reads an item within the transaction.
func (w *Writer) GetItem(ctx context.Context, id string) (model.Item, error) {
	return getItem(ctx, w.tx, id)
}

// GetProfile reads a profile within the transaction.
func (w *Writer) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	return getProfile(ctx, w.tx, id)
}

// GetCategory reads a category within the transaction.
func (w *Writer) GetCategory(ctx context.Context, id string) (model.Category, error) {
	return getCategory(ctx, w.tx, id)
}

// ListAllItems reads every item within the transaction.
func (w *Writer) ListAllItems(ctx context.Context) ([]model.Item, error) {
	return listItems(ctx, w.tx, false)
}

// ListCategories reads every category within the transaction.
func (w *Writer) ListCategories(ctx context.Context) ([]model.Category, error) {
	return listCategories(ctx, w.tx)
}

// ListProfiles reads every profile within the transaction.
func (w *Writer) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return listProfiles(ctx, w.tx)
}
