// Package inventory implements user gestures over the local store.
//
// Every gesture mutates the entity cache, enqueues the matching pending
// action and appends an activity entry inside one store transaction, so a
// crash never leaves a cache change without its outbox entry or the reverse.
// Action payloads are JSON; their format belongs to this package (see
// payload.go).
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ndomog/internal/activity"
	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/ids"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/outbox"
	"github.com/roach88/ndomog/internal/store"
)

// ErrInvalid marks gesture input rejected before anything is written.
var ErrInvalid = errors.New("invalid input")

// User is the actor recorded on audit fields and activity entries.
type User struct {
	ID   string
	Name string
}

// Service performs user gestures.
//
// Thread-safety: Service holds no mutable state; concurrency is handled by
// the store's transactions.
type Service struct {
	store    *store.Store
	cache    *cache.Cache
	outbox   *outbox.Queue
	activity *activity.Log
	clock    clock.Clock
	ids      ids.Generator
	user     User
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock sets the time source for audit fields.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

// WithIDs sets the generator for item and category ids.
func WithIDs(g ids.Generator) ServiceOption {
	return func(s *Service) {
		s.ids = g
	}
}

// New creates a service acting as user.
func New(
	s *store.Store,
	c *cache.Cache,
	q *outbox.Queue,
	l *activity.Log,
	user User,
	opts ...ServiceOption,
) *Service {
	svc := &Service{
		store:    s,
		cache:    c,
		outbox:   q,
		activity: l,
		clock:    clock.System{},
		ids:      ids.UUIDv7{},
		user:     user,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// User returns the acting user.
func (s *Service) User() User {
	return s.user
}

// gesture is one transaction's worth of component writers.
type gesture struct {
	ctx      context.Context
	cache    *cache.Writer
	outbox   *outbox.Writer
	activity *activity.Writer
}

func (s *Service) do(ctx context.Context, fn func(g *gesture) error) error {
	return s.store.Update(ctx, func(tx *store.Tx) error {
		return fn(&gesture{
			ctx:      ctx,
			cache:    s.cache.In(tx),
			outbox:   s.outbox.In(tx),
			activity: s.activity.In(tx),
		})
	})
}

func (g *gesture) enqueue(typ model.ActionType, entityID string, payload any) error {
	body, err := Encode(payload)
	if err != nil {
		return err
	}
	_, err = g.outbox.Enqueue(g.ctx, model.PendingAction{
		Type:     typ,
		EntityID: entityID,
		Payload:  body,
	})
	return err
}

func (s *Service) record(g *gesture, action string, entity model.EntityType, id, name string, details *string) error {
	_, err := g.activity.Append(g.ctx, model.ActivityLog{
		UserID:     s.user.ID,
		Username:   s.user.Name,
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		EntityName: name,
		Details:    details,
	})
	return err
}

// NewItem is the input to AddItem.
type NewItem struct {
	Name              string
	Category          string
	CategoryID        *string
	Details           *string
	PhotoURL          *string
	BuyingPrice       float64
	SellingPrice      float64
	Quantity          int
	LowStockThreshold *int // nil uses model.DefaultLowStockThreshold
}

// AddItem creates an item.
func (s *Service) AddItem(ctx context.Context, in NewItem) (model.Item, error) {
	now := s.clock.Now()
	item := model.Item{
		ID:                s.ids.Generate(),
		Name:              normalize(in.Name),
		Category:          normalize(in.Category),
		CategoryID:        in.CategoryID,
		Details:           in.Details,
		PhotoURL:          in.PhotoURL,
		BuyingPrice:       in.BuyingPrice,
		SellingPrice:      in.SellingPrice,
		Quantity:          clamp(in.Quantity),
		LowStockThreshold: model.DefaultLowStockThreshold,
		CreatedBy:         model.StringPtr(s.user.ID),
		CreatedAt:         model.TimePtr(now),
		UpdatedAt:         model.TimePtr(now),
	}
	if in.LowStockThreshold != nil {
		item.LowStockThreshold = *in.LowStockThreshold
	}
	if err := validate(item); err != nil {
		return model.Item{}, err
	}

	err := s.do(ctx, func(g *gesture) error {
		if err := g.cache.UpsertItem(ctx, item); err != nil {
			return err
		}
		if err := g.enqueue(model.ActionAddItem, item.ID, item); err != nil {
			return err
		}
		return s.record(g, model.ActivityCreate, model.EntityItem, item.ID, item.Name, nil)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("add item: %w", err)
	}
	return item, nil
}

// UpdateItem replaces an item's editable fields. Identity, creation audit
// fields and tombstone state are kept from the stored row. A deleted item
// cannot be edited.
func (s *Service) UpdateItem(ctx context.Context, item model.Item) (model.Item, error) {
	item.Name = normalize(item.Name)
	item.Category = normalize(item.Category)
	item.Quantity = clamp(item.Quantity)
	if err := validate(item); err != nil {
		return model.Item{}, err
	}

	var updated model.Item
	err := s.do(ctx, func(g *gesture) error {
		current, err := g.cache.GetItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if current.IsDeleted {
			return deletedError(item.ID)
		}

		updated = item
		updated.CreatedBy = current.CreatedBy
		updated.CreatedAt = current.CreatedAt
		updated.IsDeleted = current.IsDeleted
		updated.DeletedAt = current.DeletedAt
		updated.DeletedBy = current.DeletedBy
		updated.UpdatedAt = model.TimePtr(s.clock.Now())

		if err := g.cache.UpsertItem(ctx, updated); err != nil {
			return err
		}
		if err := g.enqueue(model.ActionUpdateItem, updated.ID, updated); err != nil {
			return err
		}
		return s.record(g, model.ActivityUpdate, model.EntityItem, updated.ID, updated.Name, nil)
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("update item: %w", err)
	}
	return updated, nil
}

// UpdateQuantity sets an item's quantity, clamped at zero. Setting the
// quantity it already has writes nothing.
func (s *Service) UpdateQuantity(ctx context.Context, id string, quantity int) (model.Item, error) {
	var item model.Item
	err := s.do(ctx, func(g *gesture) error {
		var err error
		item, err = s.setQuantity(g, id, func(int) int { return quantity })
		return err
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("update quantity: %w", err)
	}
	return item, nil
}

// AdjustQuantityBy adds delta (which may be negative) to an item's
// quantity, clamped at zero. The read and the write share one transaction.
func (s *Service) AdjustQuantityBy(ctx context.Context, id string, delta int) (model.Item, error) {
	var item model.Item
	err := s.do(ctx, func(g *gesture) error {
		var err error
		item, err = s.setQuantity(g, id, func(current int) int { return current + delta })
		return err
	})
	if err != nil {
		return model.Item{}, fmt.Errorf("adjust quantity: %w", err)
	}
	return item, nil
}

func (s *Service) setQuantity(g *gesture, id string, next func(current int) int) (model.Item, error) {
	item, err := g.cache.GetItem(g.ctx, id)
	if err != nil {
		return model.Item{}, err
	}
	if item.IsDeleted {
		return model.Item{}, deletedError(id)
	}

	quantity := clamp(next(item.Quantity))
	delta := quantity - item.Quantity
	if delta == 0 {
		return item, nil
	}

	if err := g.cache.AdjustQuantity(g.ctx, id, quantity); err != nil {
		return model.Item{}, err
	}
	if err := g.enqueue(model.ActionUpdateQuantity, id, QuantityPayload{Quantity: quantity}); err != nil {
		return model.Item{}, err
	}
	if err := s.record(g, model.ActivityUpdateQuantity, model.EntityItem, id, item.Name, quantityDetails(delta)); err != nil {
		return model.Item{}, err
	}

	item.Quantity = quantity
	return item, nil
}

// DeleteItem tombstones an item. Deleting an already-deleted item writes
// nothing.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	err := s.do(ctx, func(g *gesture) error {
		item, err := g.cache.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if item.IsDeleted {
			return nil
		}

		payload := DeletePayload{DeletedAt: s.clock.Now(), DeletedBy: s.user.ID}
		if err := g.cache.SoftDelete(ctx, id, payload.DeletedAt, payload.DeletedBy); err != nil {
			return err
		}
		if err := g.enqueue(model.ActionDeleteItem, id, payload); err != nil {
			return err
		}
		return s.record(g, model.ActivityDelete, model.EntityItem, id, item.Name, nil)
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// AddCategory creates a category.
func (s *Service) AddCategory(ctx context.Context, name string) (model.Category, error) {
	cat := model.Category{
		ID:        s.ids.Generate(),
		Name:      normalize(name),
		CreatedBy: model.StringPtr(s.user.ID),
		CreatedAt: model.TimePtr(s.clock.Now()),
	}
	if cat.Name == "" {
		return model.Category{}, fmt.Errorf("%w: category name is required", ErrInvalid)
	}

	err := s.do(ctx, func(g *gesture) error {
		if err := g.cache.UpsertCategory(ctx, cat); err != nil {
			return err
		}
		if err := g.enqueue(model.ActionAddCategory, cat.ID, cat); err != nil {
			return err
		}
		return s.record(g, model.ActivityCreateCategory, model.EntityCategory, cat.ID, cat.Name, nil)
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("add category: %w", err)
	}
	return cat, nil
}

// UpsertProfile creates or replaces a profile.
func (s *Service) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	p.Email = strings.TrimSpace(p.Email)
	if p.ID == "" || p.Email == "" {
		return model.Profile{}, fmt.Errorf("%w: profile id and email are required", ErrInvalid)
	}
	if p.Username != nil {
		p.Username = model.StringPtr(normalize(*p.Username))
	}

	err := s.do(ctx, func(g *gesture) error {
		if err := g.cache.UpsertProfile(ctx, p); err != nil {
			return err
		}
		if err := g.enqueue(model.ActionUpdateProfile, p.ID, p); err != nil {
			return err
		}
		return s.record(g, model.ActivityUpdateProfile, model.EntityProfile, p.ID, p.DisplayName(), nil)
	})
	if err != nil {
		return model.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}

// Reset wipes the entity cache, the outbox, the activity log and the pull
// cursors in one transaction. Used on logout.
func (s *Service) Reset(ctx context.Context) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		if err := s.cache.In(tx).WipeAll(ctx); err != nil {
			return err
		}
		if err := s.outbox.In(tx).WipeAll(ctx); err != nil {
			return err
		}
		if err := s.activity.In(tx).WipeAll(ctx); err != nil {
			return err
		}
		return tx.ClearCursors(ctx)
	})
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func deletedError(id string) error {
	return fmt.Errorf("%w: item %s is deleted", ErrInvalid, id)
}

func clamp(quantity int) int {
	if quantity < 0 {
		return 0
	}
	return quantity
}

func validate(item model.Item) error {
	switch {
	case item.Name == "":
		return fmt.Errorf("%w: item name is required", ErrInvalid)
	case item.Category == "":
		return fmt.Errorf("%w: item category is required", ErrInvalid)
	case item.BuyingPrice < 0:
		return fmt.Errorf("%w: buying price must not be negative", ErrInvalid)
	case item.SellingPrice < 0:
		return fmt.Errorf("%w: selling price must not be negative", ErrInvalid)
	case item.LowStockThreshold < 0:
		return fmt.Errorf("%w: low stock threshold must not be negative", ErrInvalid)
	}
	return nil
}

func quantityDetails(delta int) *string {
	if delta > 0 {
		return model.StringPtr(fmt.Sprintf("Added %d units", delta))
	}
	return model.StringPtr(fmt.Sprintf("Removed %d units", -delta))
}
