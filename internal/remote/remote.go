// Package remote defines the contract with the remote source of truth and
// provides Mirror, a remote authority backed by its own store.
//
// PushAction returns nil when the remote acknowledges the action, a
// REMOTE_REJECTED error when it refuses the action on business rules, and a
// TRANSIENT_IO error when it cannot be reached. Any other error is treated
// by callers as fatal for the current cycle.
package remote

import (
	"context"
	"errors"

	"github.com/roach88/ndomog/internal/model"
)

// ErrOffline is the cause of pushes and pulls attempted while a Mirror is
// offline.
var ErrOffline = errors.New("remote unreachable")

// Backend is the remote sync backend consumed by the reconciler.
type Backend interface {
	// PushAction delivers one action. Implementations must be safe to call
	// again with an action they already applied.
	PushAction(ctx context.Context, action model.PendingAction) error

	// PullSnapshot returns the rows of one entity type changed since cursor,
	// and the cursor to use next time. An empty cursor requests everything.
	PullSnapshot(ctx context.Context, entity model.EntityType, cursor string) (Snapshot, error)
}

// Snapshot is the result of one pull. Only the slice matching the requested
// entity type is populated.
type Snapshot struct {
	Items      []model.Item
	Categories []model.Category
	Profiles   []model.Profile
	Cursor     string
}

// Len returns the number of rows in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Items) + len(s.Categories) + len(s.Profiles)
}
