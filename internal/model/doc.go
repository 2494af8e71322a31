// Package model provides the row types shared by the local store, the
// outbox, the activity log and the remote backend.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Nullable columns are pointer fields, never sentinel values
//   - All JSON tags use snake_case (the remote wire format)
//   - Timestamps are UTC; the store persists them as unix nanoseconds
package model
