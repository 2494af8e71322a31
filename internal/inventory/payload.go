package inventory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/ndomog/internal/model"
)

// QuantityPayload is the body of an update_quantity action.
type QuantityPayload struct {
	Quantity int `json:"quantity"`
}

// DeletePayload is the body of a delete_item action.
type DeletePayload struct {
	DeletedAt time.Time `json:"deleted_at"`
	DeletedBy string    `json:"deleted_by"`
}

// Decoded is a pending action with its payload parsed. Exactly one of the
// pointer fields is set, matching Type.
type Decoded struct {
	Type     model.ActionType
	EntityID string
	Item     *model.Item
	Quantity *QuantityPayload
	Delete   *DeletePayload
	Category *model.Category
	Profile  *model.Profile
}

// Encode serializes v as an action payload.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// Decode parses the payload of a according to its type.
func Decode(a model.PendingAction) (Decoded, error) {
	d := Decoded{Type: a.Type, EntityID: a.EntityID}

	var target any
	switch a.Type {
	case model.ActionAddItem, model.ActionUpdateItem:
		d.Item = &model.Item{}
		target = d.Item
	case model.ActionUpdateQuantity:
		d.Quantity = &QuantityPayload{}
		target = d.Quantity
	case model.ActionDeleteItem:
		d.Delete = &DeletePayload{}
		target = d.Delete
	case model.ActionAddCategory:
		d.Category = &model.Category{}
		target = d.Category
	case model.ActionUpdateProfile:
		d.Profile = &model.Profile{}
		target = d.Profile
	default:
		return Decoded{}, fmt.Errorf("decode payload: unknown action type %q", a.Type)
	}

	if err := json.Unmarshal(a.Payload, target); err != nil {
		return Decoded{}, fmt.Errorf("decode %s payload: %w", a.Type, err)
	}
	return d, nil
}
