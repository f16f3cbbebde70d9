package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/accord/internal/clock"
	"github.com/roach88/accord/internal/record"
)

// marshalData serializes the field-value document column.
func marshalData(data map[string]record.Value) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(b), nil
}

// unmarshalData deserializes the field-value document column through the
// closed sum type decoder.
func unmarshalData(raw string) (map[string]record.Value, error) {
	var msgs map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	data := make(map[string]record.Value, len(msgs))
	for field, msg := range msgs {
		v, err := record.UnmarshalValue(msg)
		if err != nil {
			return nil, fmt.Errorf("unmarshal data field %q: %w", field, err)
		}
		data[field] = v
	}
	return data, nil
}

// marshalRecordColumns splits a record into its column representation.
func marshalRecordColumns(r record.NodeRecord) (data, state, clockJSON string, err error) {
	data, err = marshalData(r.Data)
	if err != nil {
		return "", "", "", err
	}

	stateBytes, err := json.Marshal(r.State)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal state: %w", err)
	}

	clockBytes, err := json.Marshal(r.Clock)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal clock: %w", err)
	}

	return data, string(stateBytes), string(clockBytes), nil
}

// scanRecordColumns reassembles a record from its column representation.
func scanRecordColumns(id, data, state, clockJSON string, ts int64) (record.NodeRecord, error) {
	r := record.New(id)
	r.Timestamp = ts

	decoded, err := unmarshalData(data)
	if err != nil {
		return record.NodeRecord{}, err
	}
	r.Data = decoded

	if err := json.Unmarshal([]byte(state), &r.State); err != nil {
		return record.NodeRecord{}, fmt.Errorf("unmarshal state: %w", err)
	}

	var vc clock.VectorClock
	if err := json.Unmarshal([]byte(clockJSON), &vc); err != nil {
		return record.NodeRecord{}, fmt.Errorf("unmarshal clock: %w", err)
	}
	if vc == nil {
		vc = clock.New()
	}
	r.Clock = vc

	return r, nil
}

// marshalSnapshot serializes a full record snapshot for the history table.
func marshalSnapshot(r record.NodeRecord) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(b), nil
}

// marshalConflicts serializes a conflict list, normalizing nil to an empty
// array so the column is never NULL.
func marshalConflicts(conflicts []record.Conflict) (string, error) {
	if conflicts == nil {
		conflicts = []record.Conflict{}
	}
	b, err := json.Marshal(conflicts)
	if err != nil {
		return "", fmt.Errorf("marshal conflicts: %w", err)
	}
	return string(b), nil
}

// scanHistoryColumns reassembles a history entry from its row.
func scanHistoryColumns(seq int64, nodeID string, ts int64, snapshot, conflicts, hash string) (record.HistoryEntry, error) {
	entry := record.HistoryEntry{
		Seq:          seq,
		NodeID:       nodeID,
		Timestamp:    ts,
		SnapshotHash: hash,
	}

	if err := json.Unmarshal([]byte(snapshot), &entry.Snapshot); err != nil {
		return record.HistoryEntry{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	var cs []record.Conflict
	if err := json.Unmarshal([]byte(conflicts), &cs); err != nil {
		return record.HistoryEntry{}, fmt.Errorf("unmarshal conflicts: %w", err)
	}
	if len(cs) > 0 {
		entry.Conflicts = cs
	}

	return entry, nil
}
