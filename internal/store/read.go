package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/accord/internal/record"
)

// ReadRecord retrieves the current record for id. Returns a not-found
// replication error for unknown ids.
func (s *Store) ReadRecord(ctx context.Context, id string) (record.NodeRecord, error) {
	var (
		data, state, clockJSON string
		ts                     int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data, state, clock, ts FROM records WHERE id = ?
	`, id).Scan(&data, &state, &clockJSON, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return record.NodeRecord{}, record.NewNotFound(id)
	}
	if err != nil {
		return record.NodeRecord{}, fmt.Errorf("read record: %w", err)
	}

	return scanRecordColumns(id, data, state, clockJSON, ts)
}

// Nodes returns all node ids with a current record, sorted.
func (s *Store) Nodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan node id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return ids, nil
}

// ListHistory returns all history entries for a node, newest first.
// Returns an empty slice (not nil) when the history is empty or pruned
// away; an empty history is never an error.
func (s *Store) ListHistory(ctx context.Context, nodeID string) ([]record.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, node_id, ts, snapshot, conflicts, snapshot_hash
		FROM history
		WHERE node_id = ?
		ORDER BY ts DESC, seq DESC
	`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := []record.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// HistoryAt returns the history entry for a node at an exact timestamp.
// When several entries share the timestamp the latest-appended wins.
// Returns a version-not-found replication error when no entry matches.
func (s *Store) HistoryAt(ctx context.Context, nodeID string, ts int64) (record.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, node_id, ts, snapshot, conflicts, snapshot_hash
		FROM history
		WHERE node_id = ? AND ts = ?
		ORDER BY seq DESC
		LIMIT 1
	`, nodeID, ts)

	var (
		seq, entryTS              int64
		id, snap, conflicts, hash string
	)
	err := row.Scan(&seq, &id, &entryTS, &snap, &conflicts, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return record.HistoryEntry{}, record.NewVersionNotFound(nodeID, ts)
	}
	if err != nil {
		return record.HistoryEntry{}, fmt.Errorf("read history entry: %w", err)
	}

	return scanHistoryColumns(seq, id, entryTS, snap, conflicts, hash)
}

// scanHistoryRow scans one row of a history listing.
func scanHistoryRow(rows *sql.Rows) (record.HistoryEntry, error) {
	var (
		seq, ts                   int64
		id, snap, conflicts, hash string
	)
	if err := rows.Scan(&seq, &id, &ts, &snap, &conflicts, &hash); err != nil {
		return record.HistoryEntry{}, fmt.Errorf("scan history entry: %w", err)
	}
	return scanHistoryColumns(seq, id, ts, snap, conflicts, hash)
}
