package reconcile

import (
	"fmt"

	"github.com/roach88/ndomog/internal/model"
)

// State is a reconciler phase.
type State int

const (
	StateIdle State = iota
	StatePushing
	StatePulling
	StateBackoffWait
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	case StateBackoffWait:
		return "backoff_wait"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Rejection describes one action the remote refused.
type Rejection struct {
	ActionID int64            `json:"action_id"`
	Type     model.ActionType `json:"type"`
	EntityID string           `json:"entity_id"`
	Reason   string           `json:"reason"`
}

// Report summarizes one sync cycle, or the last cycle of a SyncWithRetry.
type Report struct {
	// Pushed counts actions the remote acknowledged.
	Pushed int `json:"pushed"`

	// Rejected lists actions the remote refused this cycle.
	Rejected []Rejection `json:"rejected,omitempty"`

	// Remaining counts snapshot actions left undelivered when the push halted.
	Remaining int `json:"remaining"`

	// Halted is set when the push stopped before the end of its snapshot.
	Halted bool `json:"halted"`

	// Pruned counts synced actions removed after the push.
	Pruned int64 `json:"pruned"`

	PulledItems      int `json:"pulled_items"`
	PulledCategories int `json:"pulled_categories"`
	PulledProfiles   int `json:"pulled_profiles"`

	// Skipped counts pulled rows not applied because the entity still has
	// pending local actions.
	Skipped int `json:"skipped"`

	// Attempts counts cycles run; always 1 for Sync.
	Attempts int `json:"attempts"`

	// State is the phase the cycle ended in.
	State State `json:"-"`

	// Err is the cycle's error, including transient errors that
	// SyncWithRetry absorbed.
	Err error `json:"-"`
}
