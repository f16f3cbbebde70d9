// Package record provides the replicated data model for accord.
//
// This package contains the foundational types: field values, per-field
// write state, the NodeRecord replication unit, conflicts, and history
// entries. All other internal packages import record; record imports only
// internal/clock. This keeps the data model the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Field values are a closed sum type (String, Int, Bool, Array, Object,
//     Tombstone). The merge engine never interprets value semantics, but
//     equality and comparison must be total and exhaustive.
//   - NO float types anywhere - use Int for numbers. Floats would break
//     exact canonical hashing.
//   - Deletion is a Tombstone value participating in last-write-wins like
//     any other value. On the wire a tombstone encodes as JSON null, and
//     null is never a data value.
//   - All JSON tags use snake_case.
//   - Snapshot identity is computed from RFC 8785 canonical JSON and
//     SHA-256 with domain separation.
package record
