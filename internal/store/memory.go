package store

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/accord/internal/record"
)

// Memory is an in-memory implementation of the same storage surface as
// Store. Used by the conformance harness and by tests that do not need
// durability. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]record.NodeRecord
	history []record.HistoryEntry
	nextSeq int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: map[string]record.NodeRecord{},
		nextSeq: 1,
	}
}

// WriteRecord upserts the current record for its id.
func (m *Memory) WriteRecord(_ context.Context, r record.NodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r.Clone()
	return nil
}

// ReadRecord retrieves the current record for id.
func (m *Memory) ReadRecord(_ context.Context, id string) (record.NodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return record.NodeRecord{}, record.NewNotFound(id)
	}
	return r.Clone(), nil
}

// Nodes returns all node ids with a current record, sorted.
func (m *Memory) Nodes(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// AppendHistory appends an entry and returns its sequence number.
func (m *Memory) AppendHistory(_ context.Context, entry record.HistoryEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Seq = m.nextSeq
	m.nextSeq++
	entry.Snapshot = entry.Snapshot.Clone()
	m.history = append(m.history, entry)
	return entry.Seq, nil
}

// ListHistory returns all entries for a node, newest first.
func (m *Memory) ListHistory(_ context.Context, nodeID string) ([]record.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := []record.HistoryEntry{}
	for _, e := range m.history {
		if e.NodeID == nodeID {
			e.Snapshot = e.Snapshot.Clone()
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].Seq > entries[j].Seq
	})
	return entries, nil
}

// HistoryAt returns the entry at an exact timestamp, latest-appended
// winning ties.
func (m *Memory) HistoryAt(_ context.Context, nodeID string, ts int64) (record.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		found record.HistoryEntry
		ok    bool
	)
	for _, e := range m.history {
		if e.NodeID == nodeID && e.Timestamp == ts && (!ok || e.Seq > found.Seq) {
			found = e
			ok = true
		}
	}
	if !ok {
		return record.HistoryEntry{}, record.NewVersionNotFound(nodeID, ts)
	}
	found.Snapshot = found.Snapshot.Clone()
	return found, nil
}

// PruneHistory deletes entries outside the newest keep and older than
// before, mirroring the SQLite semantics.
func (m *Memory) PruneHistory(_ context.Context, nodeID string, keep int, before int64) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Collect the node's entries newest first to find the keep set.
	var forNode []record.HistoryEntry
	for _, e := range m.history {
		if e.NodeID == nodeID {
			forNode = append(forNode, e)
		}
	}
	sort.SliceStable(forNode, func(i, j int) bool {
		if forNode[i].Timestamp != forNode[j].Timestamp {
			return forNode[i].Timestamp > forNode[j].Timestamp
		}
		return forNode[i].Seq > forNode[j].Seq
	})

	kept := map[int64]bool{}
	for i, e := range forNode {
		if i < keep {
			kept[e.Seq] = true
		}
	}

	var (
		remaining []record.HistoryEntry
		deleted   int64
	)
	for _, e := range m.history {
		drop := e.NodeID == nodeID && !kept[e.Seq] && (before <= 0 || e.Timestamp < before)
		if drop {
			deleted++
			continue
		}
		remaining = append(remaining, e)
	}
	m.history = remaining
	return deleted, nil
}
