// Package store provides SQLite-backed durable storage for node records
// and their version history.
//
// Two tables:
//   - records: the authoritative current NodeRecord per id
//   - history: the append-only, per-node, timestamp-ordered snapshot log
//
// History entries are never updated; they are inserted on every effective
// mutation or merge and deleted only by the retention policy. All history
// queries order by (ts, seq) so listings are deterministic even when a
// merge does not advance the display timestamp.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite allows one writer; combined with the node
//     store's per-id locks this gives atomic read-modify-write per id
//
// Storage failures propagate to callers unchanged (no wrapping into the
// replication error taxonomy) so retry policy stays with the caller.
package store
