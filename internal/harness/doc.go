// Package harness runs offline-first inventory scenarios end to end.
//
// A scenario drives the real inventory service, outbox, reconciler and a
// Mirror remote through a sequence of steps, then checks assertions on the
// resulting local and remote state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: offline_edits_drain
//	description: "Edits made offline reach the remote after reconnect"
//	reject_policy: skip
//	steps:
//	  - op: go_offline
//	  - op: add_item
//	    ref: hammer
//	    name: Hammer
//	    quantity: 3
//	  - op: sync
//	    expect: { error: TRANSIENT_IO, remaining: 2 }
//	  - op: go_online
//	  - op: sync
//	    expect: { pushed: 2, remaining: 0 }
//	assertions:
//	  - type: pending
//	    count: 0
//	  - type: remote_item
//	    ref: hammer
//	    quantity: 3
//
// Refs bound by add_item and add_category name the generated ids in later
// steps and assertions.
//
// # Assertion Types
//
//   - pending: outbox rows, oldest first
//   - delivered: actions the remote has accepted, in arrival order
//   - item, remote_item: fields of one item in the local or remote cache
//   - active_items: local non-deleted items in listing order
//   - activity: newest activity log actions
//
// # Deterministic Testing
//
// Both stores are in-memory SQLite. The clock steps one second per reading,
// ids come from a counter, jitter is zero and backoff sleeps return at once,
// so the trace is stable and can be compared against a golden file.
package harness
