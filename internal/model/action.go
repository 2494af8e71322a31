package model

import (
	"fmt"
	"time"
)

// ActionType is the closed set of mutations that can sit in the outbox.
type ActionType string

const (
	ActionAddItem        ActionType = "add_item"
	ActionUpdateItem     ActionType = "update_item"
	ActionDeleteItem     ActionType = "delete_item"
	ActionUpdateQuantity ActionType = "update_quantity"
	ActionAddCategory    ActionType = "add_category"
	ActionUpdateProfile  ActionType = "update_profile"
)

// ActionTypes lists every valid ActionType in declaration order.
var ActionTypes = []ActionType{
	ActionAddItem,
	ActionUpdateItem,
	ActionDeleteItem,
	ActionUpdateQuantity,
	ActionAddCategory,
	ActionUpdateProfile,
}

// Valid reports whether t is a member of the closed set.
func (t ActionType) Valid() bool {
	for _, v := range ActionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EntityType returns the kind of entity the action targets.
func (t ActionType) EntityType() EntityType {
	switch t {
	case ActionAddCategory:
		return EntityCategory
	case ActionUpdateProfile:
		return EntityProfile
	}
	return EntityItem
}

// ParseActionType converts a stored string back into an ActionType.
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown action type %q", s)
	}
	return t, nil
}

// PendingAction is an outbox entry. Only Synced ever changes after insert.
//
// Payload is opaque to the queue; its format belongs to the business layer.
type PendingAction struct {
	ID        int64      `json:"id"` // Store-assigned, monotonic, never reused
	Type      ActionType `json:"type"`
	EntityID  string     `json:"entity_id"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	Synced    bool       `json:"synced"`
}

// Activity actions recorded in the audit trail.
const (
	ActivityCreate         = "CREATE"
	ActivityUpdate         = "UPDATE"
	ActivityDelete         = "DELETE"
	ActivityUpdateQuantity = "UPDATE_QUANTITY"
	ActivityCreateCategory = "CREATE_CATEGORY"
	ActivityUpdateProfile  = "UPDATE_PROFILE"
	ActivitySyncRejected   = "SYNC_REJECTED"
)

// ActivityLog is one append-only audit trail entry. It is local only and
// never synced through the outbox.
type ActivityLog struct {
	ID         string     `json:"id"` // Client-generated, globally unique
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Action     string     `json:"action"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	EntityName string     `json:"entity_name"`
	Timestamp  time.Time  `json:"timestamp"`
	Details    *string    `json:"details,omitempty"`
}
