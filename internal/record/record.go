package record

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/accord/internal/clock"
)

// FieldState is the per-field write metadata used for last-write-wins
// ordering, independent of the record's vector clock.
//
// Timestamp is monotonically non-decreasing per field under merge. Writer
// identifies the peer that produced the current value and breaks timestamp
// ties deterministically.
type FieldState struct {
	Timestamp int64  `json:"timestamp"`
	Writer    string `json:"writer"`
}

// NodeRecord is the replicated unit: a field-value document plus the
// metadata required to merge concurrent edits without coordination.
//
// Invariant: Data and State always hold exactly the same key set. A
// deleted field keeps both entries, with the Data side holding a
// Tombstone.
type NodeRecord struct {
	ID        string                `json:"id"`
	Data      map[string]Value      `json:"data"`
	State     map[string]FieldState `json:"state"`
	Clock     clock.VectorClock     `json:"clock"`
	Timestamp int64                 `json:"timestamp"`
}

// New returns an empty record with the given id.
func New(id string) NodeRecord {
	return NodeRecord{
		ID:    id,
		Data:  map[string]Value{},
		State: map[string]FieldState{},
		Clock: clock.New(),
	}
}

// Clone returns an independent deep copy of the record.
func (r NodeRecord) Clone() NodeRecord {
	out := NodeRecord{
		ID:        r.ID,
		Data:      make(map[string]Value, len(r.Data)),
		State:     make(map[string]FieldState, len(r.State)),
		Clock:     r.Clock.Clone(),
		Timestamp: r.Timestamp,
	}
	for field, v := range r.Data {
		out.Data[field] = CloneValue(v)
	}
	for field, st := range r.State {
		out.State[field] = st
	}
	return out
}

// Field returns the live value for a field. Tombstoned and absent fields
// both report ok=false.
func (r NodeRecord) Field(name string) (Value, bool) {
	v, ok := r.Data[name]
	if !ok || IsTombstone(v) {
		return nil, false
	}
	return v, true
}

// VisibleFields returns a copy of the data map with tombstoned fields
// removed. This is the view external consumers see.
func (r NodeRecord) VisibleFields() map[string]Value {
	out := make(map[string]Value, len(r.Data))
	for field, v := range r.Data {
		if IsTombstone(v) {
			continue
		}
		out[field] = CloneValue(v)
	}
	return out
}

// Validate checks structural invariants. Used at the deserialization
// boundary before a remote record may enter the store.
func (r NodeRecord) Validate() error {
	if r.ID == "" {
		return NewPrecondition("record has empty id")
	}
	if err := r.Clock.Validate(); err != nil {
		return NewInvalidClock(r.ID, err)
	}
	for field := range r.Data {
		if _, ok := r.State[field]; !ok {
			return NewPrecondition(fmt.Sprintf("record %q: field %q present in data but missing from state", r.ID, field))
		}
	}
	for field, st := range r.State {
		if _, ok := r.Data[field]; !ok {
			return NewPrecondition(fmt.Sprintf("record %q: field %q present in state but missing from data", r.ID, field))
		}
		if st.Timestamp < 0 {
			return NewPrecondition(fmt.Sprintf("record %q: field %q has negative timestamp %d", r.ID, field, st.Timestamp))
		}
		if st.Writer == "" {
			return NewPrecondition(fmt.Sprintf("record %q: field %q has empty writer", r.ID, field))
		}
	}
	return nil
}

// UnmarshalJSON decodes a record, routing data values through the closed
// sum type decoder.
func (r *NodeRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string                     `json:"id"`
		Data      map[string]json.RawMessage `json:"data"`
		State     map[string]FieldState      `json:"state"`
		Clock     clock.VectorClock          `json:"clock"`
		Timestamp int64                      `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.State = raw.State
	r.Clock = raw.Clock
	r.Timestamp = raw.Timestamp
	if r.State == nil {
		r.State = map[string]FieldState{}
	}
	if r.Clock == nil {
		r.Clock = clock.New()
	}

	r.Data = make(map[string]Value, len(raw.Data))
	for field, msg := range raw.Data {
		v, err := UnmarshalValue(msg)
		if err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
		r.Data[field] = v
	}
	return nil
}

// Decode deserializes and validates a record arriving from outside the
// process (transport or CLI). Malformed clocks are rejected here with an
// invalid-clock error and never enter the store.
func Decode(data []byte) (NodeRecord, error) {
	var r NodeRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return NodeRecord{}, fmt.Errorf("decode record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return NodeRecord{}, err
	}
	return r, nil
}

// canonicalObject converts the record into an Object for canonical
// serialization and hashing.
func (r NodeRecord) canonicalObject() Object {
	data := make(Object, len(r.Data))
	for field, v := range r.Data {
		data[field] = v
	}

	state := make(Object, len(r.State))
	for field, st := range r.State {
		state[field] = Object{
			"timestamp": Int(st.Timestamp),
			"writer":    String(st.Writer),
		}
	}

	clockObj := make(Object, len(r.Clock))
	for peer, counter := range r.Clock {
		clockObj[peer] = Int(counter)
	}

	return Object{
		"id":        String(r.ID),
		"data":      data,
		"state":     state,
		"clock":     clockObj,
		"timestamp": Int(r.Timestamp),
	}
}

// MarshalCanonical serializes the record as RFC 8785 canonical JSON.
func (r NodeRecord) MarshalCanonical() ([]byte, error) {
	return MarshalCanonical(r.canonicalObject())
}
