// Package merge implements the conflict-free merge of two NodeRecord
// versions.
//
// The merge is deterministic, commutative, associative, and idempotent, so
// replicas converge regardless of delivery order or duplicate delivery.
// Concurrent edits never fail: every field resolves to a value by last
// write wins, and edits that ordering cannot resolve (equal timestamp,
// different writers) additionally surface an advisory Conflict.
package merge

import (
	"fmt"
	"sort"

	"github.com/roach88/accord/internal/clock"
	"github.com/roach88/accord/internal/record"
)

// Engine merges two versions of the same record. Stateless and safe for
// concurrent use.
type Engine struct{}

// NewEngine returns a merge engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Merge reconciles a local and a remote version of the same record and
// returns the merged record plus any detected conflicts.
//
// Calling Merge with mismatched ids is a programmer error and returns a
// precondition violation. Over well-formed inputs the merge is total:
// there is no "merge failure" outcome.
func (e *Engine) Merge(local, remote record.NodeRecord) (record.NodeRecord, []record.Conflict, error) {
	if local.ID != remote.ID {
		return record.NodeRecord{}, nil, record.NewPrecondition(
			fmt.Sprintf("merge called with mismatched ids %q and %q", local.ID, remote.ID))
	}

	switch local.Clock.Compare(remote.Clock) {
	case clock.Dominates:
		// Remote is stale; nothing to reconcile.
		return local.Clone(), nil, nil
	case clock.Dominated:
		// Local is stale; fast-forward.
		return remote.Clone(), nil, nil
	case clock.Equal:
		// Identical causal state. Prefer the later display timestamp.
		if remote.Timestamp > local.Timestamp {
			return remote.Clone(), nil, nil
		}
		return local.Clone(), nil, nil
	}

	return e.mergeConcurrent(local, remote)
}

// mergeConcurrent reconciles truly concurrent versions field by field.
func (e *Engine) mergeConcurrent(local, remote record.NodeRecord) (record.NodeRecord, []record.Conflict, error) {
	out := record.NodeRecord{
		ID:    local.ID,
		Data:  make(map[string]record.Value),
		State: make(map[string]record.FieldState),
		Clock: local.Clock.Merge(remote.Clock),
	}

	var conflicts []record.Conflict
	for _, field := range unionFields(local, remote) {
		lv, inLocal := local.Data[field]
		rv, inRemote := remote.Data[field]

		switch {
		case inLocal && !inRemote:
			takeField(&out, field, lv, local.State[field])
		case inRemote && !inLocal:
			takeField(&out, field, rv, remote.State[field])
		default:
			ls, rs := local.State[field], remote.State[field]
			switch {
			case ls.Timestamp > rs.Timestamp:
				takeField(&out, field, lv, ls)
			case rs.Timestamp > ls.Timestamp:
				takeField(&out, field, rv, rs)
			case ls.Writer == rs.Writer:
				// Same write observed through both replicas.
				takeField(&out, field, lv, ls)
			default:
				// Irreducible: equal timestamps, different writers. Pick a
				// deterministic winner so the field never ends up empty,
				// and surface both candidates.
				winnerVal, winnerState := lv, ls
				if rs.Writer < ls.Writer {
					winnerVal, winnerState = rv, rs
				}
				takeField(&out, field, winnerVal, winnerState)
				conflicts = append(conflicts, record.Conflict{
					Field:      field,
					Candidates: orderedCandidates(field, lv, ls, rv, rs),
				})
			}
		}
	}

	out.Timestamp = maxStateTimestamp(out.State)
	return out, conflicts, nil
}

// takeField copies one side's value and state into the merged record.
func takeField(out *record.NodeRecord, field string, v record.Value, st record.FieldState) {
	out.Data[field] = record.CloneValue(v)
	out.State[field] = st
}

// orderedCandidates lists both sides of a conflict ordered by writer id,
// so merge(a,b) and merge(b,a) report the same conflict.
func orderedCandidates(field string, lv record.Value, ls record.FieldState, rv record.Value, rs record.FieldState) []record.Candidate {
	a := record.Candidate{Writer: ls.Writer, Timestamp: ls.Timestamp, Value: record.CloneValue(lv)}
	b := record.Candidate{Writer: rs.Writer, Timestamp: rs.Timestamp, Value: record.CloneValue(rv)}
	if b.Writer < a.Writer {
		a, b = b, a
	}
	return []record.Candidate{a, b}
}

// unionFields returns the sorted union of field names in both data maps.
// Sorted iteration keeps conflict ordering deterministic.
func unionFields(local, remote record.NodeRecord) []string {
	seen := make(map[string]struct{}, len(local.Data)+len(remote.Data))
	for field := range local.Data {
		seen[field] = struct{}{}
	}
	for field := range remote.Data {
		seen[field] = struct{}{}
	}
	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// maxStateTimestamp returns the max write timestamp across all fields,
// zero for an empty record.
func maxStateTimestamp(state map[string]record.FieldState) int64 {
	var max int64
	for _, st := range state {
		if st.Timestamp > max {
			max = st.Timestamp
		}
	}
	return max
}
