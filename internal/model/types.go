package model

import "time"

// EntityType names a cached entity kind.
type EntityType string

const (
	EntityItem     EntityType = "item"
	EntityCategory EntityType = "category"
	EntityProfile  EntityType = "profile"
)

// PullOrder is the order in which entity types are pulled from the remote.
var PullOrder = []EntityType{EntityItem, EntityCategory, EntityProfile}

// DefaultLowStockThreshold applies when an item is created without one.
const DefaultLowStockThreshold = 5

// Item is an inventory line. Tombstoned items (IsDeleted) stay in the
// table for audit and undo but are excluded from default listings.
type Item struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	CategoryID        *string    `json:"category_id,omitempty"`
	Details           *string    `json:"details,omitempty"`
	PhotoURL          *string    `json:"photo_url,omitempty"`
	BuyingPrice       float64    `json:"buying_price"`
	SellingPrice      float64    `json:"selling_price"`
	Quantity          int        `json:"quantity"`
	LowStockThreshold int        `json:"low_stock_threshold"`
	IsDeleted         bool       `json:"is_deleted"`
	CreatedBy         *string    `json:"created_by,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
	DeletedBy         *string    `json:"deleted_by,omitempty"`
}

// Active reports whether the item is not tombstoned.
func (i Item) Active() bool {
	return !i.IsDeleted
}

// LowStock reports whether the item is at or below its threshold.
func (i Item) LowStock() bool {
	return i.Quantity <= i.LowStockThreshold
}

// Category is a reference entity, replaced wholesale on conflict.
type Category struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedBy *string    `json:"created_by,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Profile is a user profile, replaced wholesale on conflict.
type Profile struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// DisplayName returns the username when set, otherwise the email.
func (p Profile) DisplayName() string {
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return p.Email
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// TimePtr returns a pointer to t in UTC.
func TimePtr(t time.Time) *time.Time {
	u := t.UTC()
	return &u
}
