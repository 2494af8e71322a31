// Package store provides the SQLite-backed durable table store shared by the
// entity cache, the outbox queue and the activity log.
//
// The store holds six row-sets, each owned by exactly one component:
//   - items, categories, profiles: entity cache
//   - pending_actions: outbox queue
//   - activity_logs: audit trail
//   - sync_state: pull cursors owned by the reconciler
//
// # Transactions
//
// Every mutation runs inside Update, which commits all writes made through
// the *Tx or none of them. Writers call Tx.Touch for each table they modify;
// after a successful commit the store notifies subscribers of those tables.
// A rolled-back transaction notifies nobody.
//
// Update and View must not perform network I/O. The connection pool holds a
// single connection, so an open transaction blocks every other reader and
// writer until it ends.
//
// # Change notification
//
// Subscribe returns a Subscription whose channel receives a signal after any
// commit touching one of the watched tables. Signals coalesce: a subscriber
// that falls behind sees one pending signal, never a backlog. Live views
// re-query on each signal.
//
// # Deterministic ordering
//
// Outbox queries order by created_at ASC, id ASC. Activity queries order by
// timestamp DESC, id DESC. Timestamps are stored as unix nanoseconds.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
