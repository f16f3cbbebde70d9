package harness

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/accord/internal/history"
	"github.com/roach88/accord/internal/node"
	"github.com/roach88/accord/internal/record"
	"github.com/roach88/accord/internal/store"
	"github.com/roach88/accord/internal/testutil"
	"github.com/roach88/accord/internal/timetravel"
)

// scenarioEpoch is the first timestamp handed out by the scenario
// clock. Steps without an explicit `at` start here.
const scenarioEpoch = 100

// replica is one simulated peer: an in-memory store with the full
// replication stack on top.
type replica struct {
	id     string
	mem    *store.Memory
	log    *history.Log
	nodes  *node.Store
	travel *timetravel.Controller
}

// Result captures the cluster state after a scenario ran.
type Result struct {
	// Final holds each peer's copy of the record. Peers that never saw
	// the record are absent.
	Final map[string]record.NodeRecord

	// Conflicts are all field conflicts surfaced during sync, in
	// delivery order.
	Conflicts []record.Conflict

	// Converged reports whether all peers hold byte-identical
	// canonical state.
	Converged bool
}

// Run executes a scenario against fresh in-memory replicas with a
// shared deterministic clock.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clk := testutil.NewDeterministicClock(scenarioEpoch)

	replicas := make(map[string]*replica, len(scenario.Peers))
	for _, peer := range scenario.Peers {
		mem := store.NewMemory()
		log := history.NewLog(mem)
		nodes := node.NewStore(mem, log, node.WithNow(clk.Next))
		replicas[peer] = &replica{
			id:     peer,
			mem:    mem,
			log:    log,
			nodes:  nodes,
			travel: timetravel.NewController(nodes, log, nil),
		}
	}

	result := &Result{Final: map[string]record.NodeRecord{}}
	for i, step := range scenario.Steps {
		if step.At > 0 {
			clk.Set(step.At)
		}
		if err := runStep(ctx, scenario, replicas, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for _, peer := range scenario.Peers {
		rec, err := replicas[peer].nodes.Get(ctx, scenario.Record)
		if err != nil {
			if record.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		result.Final[peer] = rec
	}
	converged, err := allEqual(result.Final)
	if err != nil {
		return nil, err
	}
	result.Converged = converged
	return result, nil
}

func runStep(ctx context.Context, scenario *Scenario, replicas map[string]*replica, step Step, result *Result) error {
	switch {
	case step.Put != nil:
		changes := make(map[string]record.Value, len(step.Put))
		for field, raw := range step.Put {
			val, err := toValue(raw)
			if err != nil {
				return fmt.Errorf("field %s: %w", field, err)
			}
			changes[field] = val
		}
		_, err := replicas[step.Peer].nodes.ApplyLocal(ctx, scenario.Record, step.Peer, changes)
		return err

	case step.Delete != nil:
		_, err := replicas[step.Peer].nodes.Delete(ctx, scenario.Record, step.Peer, step.Delete...)
		return err

	case step.Restore != 0:
		_, err := replicas[step.Peer].travel.Restore(ctx, scenario.Record, step.Restore, step.Peer)
		return err

	default:
		peers := step.Sync
		if len(peers) == 0 {
			peers = scenario.Peers
		}
		return syncPeers(ctx, scenario.Record, replicas, peers, result)
	}
}

// syncPeers exchanges states until every listed peer holds the same
// record. Two delivery rounds suffice: after the first, the last peer
// in the list has seen everything; the second spreads that state back.
func syncPeers(ctx context.Context, recordID string, replicas map[string]*replica, peers []string, result *Result) error {
	for round := 0; round < 2; round++ {
		for _, source := range peers {
			state, err := replicas[source].nodes.Get(ctx, recordID)
			if err != nil {
				if record.IsNotFound(err) {
					continue
				}
				return err
			}
			for _, target := range peers {
				if target == source {
					continue
				}
				_, conflicts, err := replicas[target].nodes.ApplyRemote(ctx, recordID, state)
				if err != nil {
					return err
				}
				result.Conflicts = append(result.Conflicts, conflicts...)
			}
		}
	}
	return nil
}

// allEqual reports whether every held copy serializes to the same
// canonical bytes.
func allEqual(finals map[string]record.NodeRecord) (bool, error) {
	var reference []byte
	for _, rec := range finals {
		canonical, err := rec.MarshalCanonical()
		if err != nil {
			return false, err
		}
		if reference == nil {
			reference = canonical
			continue
		}
		if !bytes.Equal(reference, canonical) {
			return false, nil
		}
	}
	return true, nil
}

// toValue converts a decoded YAML value into a typed field value. A nil
// YAML value (null) becomes a tombstone.
func toValue(raw any) (record.Value, error) {
	switch v := raw.(type) {
	case nil:
		return record.Tombstone{}, nil
	case string:
		return record.String(v), nil
	case bool:
		return record.Bool(v), nil
	case int:
		return record.Int(v), nil
	case int64:
		return record.Int(v), nil
	case []any:
		arr := make(record.Array, len(v))
		for i, item := range v {
			val, err := toValue(item)
			if err != nil {
				return nil, err
			}
			if record.IsTombstone(val) {
				return nil, fmt.Errorf("null is only valid as a top-level field value")
			}
			arr[i] = val
		}
		return arr, nil
	case map[string]any:
		obj := make(record.Object, len(v))
		for key, item := range v {
			val, err := toValue(item)
			if err != nil {
				return nil, err
			}
			if record.IsTombstone(val) {
				return nil, fmt.Errorf("null is only valid as a top-level field value")
			}
			obj[key] = val
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}
}
