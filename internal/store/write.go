package store

import (
	"context"
	"fmt"

	"github.com/roach88/accord/internal/record"
)

// WriteRecord upserts the authoritative current record for its id.
func (s *Store) WriteRecord(ctx context.Context, r record.NodeRecord) error {
	data, state, clockJSON, err := marshalRecordColumns(r)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, data, state, clock, ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data  = excluded.data,
			state = excluded.state,
			clock = excluded.clock,
			ts    = excluded.ts
	`, r.ID, data, state, clockJSON, r.Timestamp)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// AppendHistory inserts a history entry and returns its assigned sequence
// number. Entries are immutable once written.
func (s *Store) AppendHistory(ctx context.Context, entry record.HistoryEntry) (int64, error) {
	snapshot, err := marshalSnapshot(entry.Snapshot)
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}
	conflicts, err := marshalConflicts(entry.Conflicts)
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO history (node_id, ts, snapshot, conflicts, snapshot_hash)
		VALUES (?, ?, ?, ?, ?)
	`, entry.NodeID, entry.Timestamp, snapshot, conflicts, entry.SnapshotHash)
	if err != nil {
		return 0, fmt.Errorf("append history: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append history: last insert id: %w", err)
	}
	return seq, nil
}

// PruneHistory deletes history entries for a node that are both outside
// the newest `keep` entries and older than `before` (exclusive). A
// non-positive `before` disables the age condition; keep <= 0 keeps
// nothing beyond the age condition. Returns the number of deleted rows.
//
// The newest entry is always retained so a restart can rebuild display
// state from history alone.
func (s *Store) PruneHistory(ctx context.Context, nodeID string, keep int, before int64) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	query := `
		DELETE FROM history
		WHERE node_id = ?
		AND seq NOT IN (
			SELECT seq FROM history
			WHERE node_id = ?
			ORDER BY ts DESC, seq DESC
			LIMIT ?
		)
	`
	args := []any{nodeID, nodeID, keep}
	if before > 0 {
		query += ` AND ts < ?`
		args = append(args, before)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: rows affected: %w", err)
	}
	return deleted, nil
}
