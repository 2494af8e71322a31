// Package clock provides the wall-clock source used to stamp outbox entries,
// activity log entries and audit fields.
package clock

import "time"

// Clock returns the current time.
//
// Outbox delivery order is (created_at ASC, id ASC), so a clock that returns
// equal instants is safe: ties fall back to the store-assigned id.
type Clock interface {
	Now() time.Time
}

// System is the production clock. It always returns UTC.
type System struct{}

// Now returns time.Now in UTC with the monotonic reading stripped so values
// compare equal after a round trip through the store.
func (System) Now() time.Time {
	return time.Now().UTC().Round(0)
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
