package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a replication conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Record is the record id the whole scenario operates on.
	Record string `yaml:"record"`

	// Peers lists the replica ids in the cluster.
	Peers []string `yaml:"peers"`

	// Steps is the script of operations, executed in order.
	Steps []Step `yaml:"steps"`

	// Expect validates the final state after all steps ran.
	Expect Expect `yaml:"expect"`
}

// Step is one scripted operation. Exactly one of Put, Delete, Restore
// or Sync must be set.
type Step struct {
	// Peer names the replica performing the operation. Required for
	// put, delete and restore.
	Peer string `yaml:"peer,omitempty"`

	// Put writes fields on the peer's copy of the record. A null value
	// deletes the field.
	Put map[string]any `yaml:"put,omitempty"`

	// Delete removes the named fields on the peer's copy.
	Delete []string `yaml:"delete,omitempty"`

	// Restore rewinds the peer's copy to the version at this timestamp.
	Restore int64 `yaml:"restore,omitempty"`

	// Sync exchanges record states between the named peers until all of
	// them hold the same state. An empty list syncs every peer.
	Sync []string `yaml:"sync,omitempty"`

	// At pins the logical clock to this timestamp before the operation.
	// Two writes pinned to the same timestamp collide.
	At int64 `yaml:"at,omitempty"`
}

// Expect validates the final cluster state.
type Expect struct {
	// Converged requires all peers to hold byte-identical canonical
	// state. Defaults to true.
	Converged *bool `yaml:"converged,omitempty"`

	// Conflicts is the total number of field conflicts the scenario's
	// merges must surface.
	Conflicts int `yaml:"conflicts"`

	// Fields are the expected visible values on the first peer's copy.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Absent lists fields that must not be visible.
	Absent []string `yaml:"absent,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Record == "" {
		return fmt.Errorf("record is required")
	}
	if len(s.Peers) == 0 {
		return fmt.Errorf("peers list is required and must be non-empty")
	}
	known := map[string]bool{}
	for _, peer := range s.Peers {
		if peer == "" {
			return fmt.Errorf("peer ids must not be empty")
		}
		if known[peer] {
			return fmt.Errorf("duplicate peer %q", peer)
		}
		known[peer] = true
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		actions := 0
		if step.Put != nil {
			actions++
		}
		if step.Delete != nil {
			actions++
		}
		if step.Restore != 0 {
			actions++
		}
		if step.Sync != nil {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("steps[%d]: exactly one of put, delete, restore or sync is required", i)
		}
		if step.Sync == nil && step.Peer == "" {
			return fmt.Errorf("steps[%d]: peer is required", i)
		}
		if step.Peer != "" && !known[step.Peer] {
			return fmt.Errorf("steps[%d]: unknown peer %q", i, step.Peer)
		}
		for _, peer := range step.Sync {
			if !known[peer] {
				return fmt.Errorf("steps[%d]: unknown sync peer %q", i, peer)
			}
		}
		if step.At < 0 {
			return fmt.Errorf("steps[%d]: at must not be negative", i)
		}
	}
	return nil
}
