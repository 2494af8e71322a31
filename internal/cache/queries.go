package cache

import (
	"context"
	"database/sql"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
)

const itemColumns = `
	id, name, category, category_id, details, photo_url,
	buying_price, selling_price, quantity, low_stock_threshold,
	is_deleted, created_by, created_at, updated_at, deleted_at, deleted_by
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (model.Item, error) {
	var (
		item                            model.Item
		categoryID, details, photoURL   sql.NullString
		createdBy, deletedBy            sql.NullString
		createdAt, updatedAt, deletedAt sql.NullInt64
		isDeleted                       int
	)
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Category,
		&categoryID,
		&details,
		&photoURL,
		&item.BuyingPrice,
		&item.SellingPrice,
		&item.Quantity,
		&item.LowStockThreshold,
		&isDeleted,
		&createdBy,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&deletedBy,
	)
	if err != nil {
		return model.Item{}, err
	}

	item.CategoryID = store.StringFromNull(categoryID)
	item.Details = store.StringFromNull(details)
	item.PhotoURL = store.StringFromNull(photoURL)
	item.IsDeleted = isDeleted != 0
	item.CreatedBy = store.StringFromNull(createdBy)
	item.CreatedAt = store.TimeFromNull(createdAt)
	item.UpdatedAt = store.TimeFromNull(updatedAt)
	item.DeletedAt = store.TimeFromNull(deletedAt)
	item.DeletedBy = store.StringFromNull(deletedBy)
	return item, nil
}

func getItem(ctx context.Context, q store.Querier, id string) (model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		return model.Item{}, notFoundOr("get item", string(model.EntityItem), id, err)
	}
	return item, nil
}

// listItems orders by created_at DESC; rows without a creation time sort
// last, ties break on id so the order is deterministic.
func listItems(ctx context.Context, q store.Querier, activeOnly bool) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if activeOnly {
		query += ` WHERE is_deleted = 0`
	}
	query += ` ORDER BY created_at IS NULL, created_at DESC, id ASC`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, store.Classify("list items", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, store.Classify("list items", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list items", err)
	}
	return items, nil
}

func scanCategory(row rowScanner) (model.Category, error) {
	var (
		cat       model.Category
		createdBy sql.NullString
		createdAt sql.NullInt64
	)
	if err := row.Scan(&cat.ID, &cat.Name, &createdBy, &createdAt); err != nil {
		return model.Category{}, err
	}
	cat.CreatedBy = store.StringFromNull(createdBy)
	cat.CreatedAt = store.TimeFromNull(createdAt)
	return cat, nil
}

func getCategory(ctx context.Context, q store.Querier, id string) (model.Category, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if err != nil {
		return model.Category{}, notFoundOr("get category", string(model.EntityCategory), id, err)
	}
	return cat, nil
}

// listCategories returns categories in locale-aware, case-insensitive name
// order, ties broken by id.
func listCategories(ctx context.Context, q store.Querier) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, created_by, created_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, store.Classify("list categories", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, store.Classify("list categories", err)
		}
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list categories", err)
	}

	// Collators are not safe for concurrent use.
	col := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(cats, func(i, j int) bool {
		return col.CompareString(cats[i].Name, cats[j].Name) < 0
	})
	return cats, nil
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p                   model.Profile
		username, avatarURL sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Email, &username, &avatarURL); err != nil {
		return model.Profile{}, err
	}
	p.Username = store.StringFromNull(username)
	p.AvatarURL = store.StringFromNull(avatarURL)
	return p, nil
}

func getProfile(ctx context.Context, q store.Querier, id string) (model.Profile, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, email, username, avatar_url FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return model.Profile{}, notFoundOr("get profile", string(model.EntityProfile), id, err)
	}
	return p, nil
}

func listProfiles(ctx context.Context, q store.Querier) ([]model.Profile, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, email, username, avatar_url FROM profiles ORDER BY id`)
	if err != nil {
		return nil, store.Classify("list profiles", err)
	}
	defer rows.Close()

	var ps []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, store.Classify("list profiles", err)
		}
		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify("list profiles", err)
	}
	return ps, nil
}
