// Package history implements the append-only version log: per-node,
// timestamp-ordered NodeRecord snapshots with diffing between versions.
//
// Entries are immutable once appended. The log tolerates empty or
// truncated history (after retention pruning) without failing reads; only
// point lookups of a missing version report version-not-found.
package history

import (
	"context"
	"fmt"

	"github.com/roach88/accord/internal/record"
)

// Archive is the storage surface the log needs. Implemented by
// store.Store and store.Memory.
type Archive interface {
	AppendHistory(ctx context.Context, entry record.HistoryEntry) (int64, error)
	ListHistory(ctx context.Context, nodeID string) ([]record.HistoryEntry, error)
	HistoryAt(ctx context.Context, nodeID string, ts int64) (record.HistoryEntry, error)
	PruneHistory(ctx context.Context, nodeID string, keep int, before int64) (int64, error)
}

// Log is the append-only history of record snapshots.
type Log struct {
	archive Archive
}

// NewLog returns a log over the given archive.
func NewLog(archive Archive) *Log {
	return &Log{archive: archive}
}

// Append records a snapshot with any conflicts its merge produced,
// computing the snapshot's content hash. Returns the stored entry with
// its assigned sequence number.
func (l *Log) Append(ctx context.Context, snapshot record.NodeRecord, conflicts []record.Conflict) (record.HistoryEntry, error) {
	hash, err := record.SnapshotHash(snapshot)
	if err != nil {
		return record.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}

	entry := record.HistoryEntry{
		NodeID:       snapshot.ID,
		Timestamp:    snapshot.Timestamp,
		Snapshot:     snapshot.Clone(),
		Conflicts:    conflicts,
		SnapshotHash: hash,
	}
	seq, err := l.archive.AppendHistory(ctx, entry)
	if err != nil {
		return record.HistoryEntry{}, err
	}
	entry.Seq = seq
	return entry, nil
}

// Versions lists all history entries for a node, newest first. An empty
// history returns an empty slice, never an error.
func (l *Log) Versions(ctx context.Context, nodeID string) ([]record.HistoryEntry, error) {
	return l.archive.ListHistory(ctx, nodeID)
}

// At returns the entry at an exact timestamp, or a version-not-found
// error.
func (l *Log) At(ctx context.Context, nodeID string, ts int64) (record.HistoryEntry, error) {
	return l.archive.HistoryAt(ctx, nodeID, ts)
}

// Prune applies a retention policy to one node's history. See
// Archive.PruneHistory for the exact semantics.
func (l *Log) Prune(ctx context.Context, nodeID string, keep int, before int64) (int64, error) {
	return l.archive.PruneHistory(ctx, nodeID, keep, before)
}

// FieldDiff describes how one field changed between two snapshots. A nil
// Old means the field did not exist (or was deleted) in the earlier
// snapshot; a nil New means it is gone in the later one.
type FieldDiff struct {
	Old record.Value `json:"old"`
	New record.Value `json:"new"`
}

// Diff compares the snapshots at two timestamps and returns the fields
// whose visible values differ. Tombstoned fields count as absent, so a
// deletion shows up as New == nil rather than as a tombstone value.
func (l *Log) Diff(ctx context.Context, nodeID string, t1, t2 int64) (map[string]FieldDiff, error) {
	from, err := l.At(ctx, nodeID, t1)
	if err != nil {
		return nil, err
	}
	to, err := l.At(ctx, nodeID, t2)
	if err != nil {
		return nil, err
	}

	oldFields := from.Snapshot.VisibleFields()
	newFields := to.Snapshot.VisibleFields()

	diff := map[string]FieldDiff{}
	for field, oldVal := range oldFields {
		newVal, stillThere := newFields[field]
		switch {
		case !stillThere:
			diff[field] = FieldDiff{Old: oldVal}
		case !record.ValueEqual(oldVal, newVal):
			diff[field] = FieldDiff{Old: oldVal, New: newVal}
		}
	}
	for field, newVal := range newFields {
		if _, existed := oldFields[field]; !existed {
			diff[field] = FieldDiff{New: newVal}
		}
	}
	return diff, nil
}
