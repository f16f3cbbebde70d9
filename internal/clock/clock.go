// Package clock implements vector clocks for causality tracking between peers.
//
// A VectorClock maps peer identifiers to monotonically increasing counters.
// Merge is a pointwise maximum and Compare classifies the causal relationship
// between two states. Both are total functions over well-formed clocks;
// malformed clocks (negative counters) are rejected at the deserialization
// boundary, never inside this package.
package clock

import "fmt"

// Ordering classifies the causal relationship between two vector clocks.
type Ordering int

const (
	// Equal means both clocks describe the same causal state.
	Equal Ordering = iota

	// Dominates means the receiver is a strict causal successor of the other.
	Dominates

	// Dominated means the other clock is a strict causal successor.
	Dominated

	// Concurrent means neither clock is an ancestor of the other.
	Concurrent
)

// String returns a human-readable name for the ordering.
func (o Ordering) String() string {
	switch o {
	case Equal:
		return "equal"
	case Dominates:
		return "dominates"
	case Dominated:
		return "dominated"
	case Concurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// VectorClock maps a peer identifier to that peer's write counter.
// A nil VectorClock behaves like an empty one for reads; use New or Clone
// before writing.
//
// Counters only increase and entries are never removed, even for peers that
// go permanently offline. Unbounded growth is an accepted trade-off; pruning
// is out of scope.
type VectorClock map[string]int64

// New returns an empty vector clock.
func New() VectorClock {
	return VectorClock{}
}

// Clone returns an independent copy of the clock.
func (vc VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(vc))
	for peer, counter := range vc {
		out[peer] = counter
	}
	return out
}

// Counter returns the counter recorded for peer, zero if absent.
func (vc VectorClock) Counter(peer string) int64 {
	return vc[peer]
}

// Increment returns a new clock with peer's counter advanced by one,
// creating the entry at 1 if absent. The receiver is not modified.
func (vc VectorClock) Increment(peer string) VectorClock {
	out := vc.Clone()
	out[peer]++
	return out
}

// Merge returns the pointwise maximum over the union of peer keys.
// Commutative, associative, and idempotent, so replicas converge regardless
// of merge order or duplicate delivery. The receiver is not modified.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Clone()
	for peer, counter := range other {
		if counter > out[peer] {
			out[peer] = counter
		}
	}
	return out
}

// Compare classifies the receiver against other. Absent entries count as
// zero, so clocks over disjoint non-zero peer sets are Concurrent.
func (vc VectorClock) Compare(other VectorClock) Ordering {
	var ahead, behind bool

	for peer, counter := range vc {
		if oc := other[peer]; counter > oc {
			ahead = true
		} else if counter < oc {
			behind = true
		}
	}
	for peer, counter := range other {
		if _, seen := vc[peer]; !seen && counter > 0 {
			behind = true
		}
	}

	switch {
	case ahead && behind:
		return Concurrent
	case ahead:
		return Dominates
	case behind:
		return Dominated
	default:
		return Equal
	}
}

// Validate reports whether the clock is well formed. Called at the
// deserialization boundary; in-process clocks are well formed by
// construction.
func (vc VectorClock) Validate() error {
	for peer, counter := range vc {
		if peer == "" {
			return fmt.Errorf("vector clock has entry with empty peer id")
		}
		if counter < 0 {
			return fmt.Errorf("vector clock counter for peer %q is negative (%d)", peer, counter)
		}
	}
	return nil
}
