package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario, verifies its expectations, and
// compares the first peer's converged record against a golden file in
// testdata/golden/{scenario.Name}.golden. Golden files hold canonical
// JSON, so they pin the exact wire bytes of the final state.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if err := Verify(scenario, result); err != nil {
		return err
	}

	rec, held := result.Final[scenario.Peers[0]]
	if !held {
		return fmt.Errorf("peer %s never saw record %s", scenario.Peers[0], scenario.Record)
	}
	canonical, err := rec.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, canonical)
	return nil
}
