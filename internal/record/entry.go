package record

import (
	"encoding/json"
	"fmt"
)

// Candidate is one side of an irreducible concurrent edit: the writer, its
// timestamp, and the value it proposed.
type Candidate struct {
	Writer    string `json:"writer"`
	Timestamp int64  `json:"timestamp"`
	Value     Value  `json:"value"`
}

// UnmarshalJSON routes the candidate value through the sum type decoder.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var raw struct {
		Writer    string          `json:"writer"`
		Timestamp int64           `json:"timestamp"`
		Value     json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Writer = raw.Writer
	c.Timestamp = raw.Timestamp

	v, err := UnmarshalValue(raw.Value)
	if err != nil {
		return fmt.Errorf("candidate value: %w", err)
	}
	c.Value = v
	return nil
}

// Conflict records a field edit that could not be resolved by ordering:
// two writers wrote at the same timestamp. The merge still picks a
// deterministic winner; the conflict is advisory, attached to the history
// entry for inspection and optional manual resolution. Conflicts are never
// persisted on the record itself.
type Conflict struct {
	Field      string      `json:"field"`
	Candidates []Candidate `json:"candidates"`
}

// HistoryEntry is one append-only snapshot in a node's version history.
// Entries are created on every effective local mutation or merge, never
// mutated, and deleted only by the retention policy.
type HistoryEntry struct {
	Seq          int64        `json:"seq"`
	NodeID       string       `json:"node_id"`
	Timestamp    int64        `json:"timestamp"`
	Snapshot     NodeRecord   `json:"snapshot"`
	Conflicts    []Conflict   `json:"conflicts,omitempty"`
	SnapshotHash string       `json:"snapshot_hash"`
}
