// Package harness runs replication conformance scenarios.
//
// A scenario is a YAML file describing a cluster of replicas, a script
// of writes, deletes, restores and sync exchanges, and expectations on
// the final state. The runner executes the script against in-memory
// replicas with a deterministic clock, so the same scenario always
// produces byte-identical final states. Golden files pin the canonical
// JSON of the converged record.
package harness
