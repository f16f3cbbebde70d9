package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/accord/internal/record"
)

// TestScenarios runs every scenario under testdata/scenarios and checks
// its expectations.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			require.NoError(t, Verify(scenario, result))
		})
	}
}

// TestGoldenStates pins the converged wire bytes of selected scenarios.
func TestGoldenStates(t *testing.T) {
	for _, name := range []string{"disjoint-fields", "same-field-tie"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "same-field-tie.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := first.Final["alpha"].MarshalCanonical()
	require.NoError(t, err)
	b, err := second.Final["alpha"].MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "reruns must produce identical state")
}

func TestVerify_ReportsViolations(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "disjoint-fields.yaml"))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	broken := *scenario
	broken.Expect.Conflicts = 5
	assert.Error(t, Verify(&broken, result))

	broken = *scenario
	broken.Expect.Fields = map[string]any{"name": "Mallory"}
	assert.Error(t, Verify(&broken, result))

	broken = *scenario
	broken.Expect.Absent = []string{"name"}
	assert.Error(t, Verify(&broken, result))
}

func TestToValue(t *testing.T) {
	val, err := toValue(map[string]any{"k": []any{1, "two", true}})
	require.NoError(t, err)
	obj, ok := val.(record.Object)
	require.True(t, ok)
	arr, ok := obj["k"].(record.Array)
	require.True(t, ok)
	assert.True(t, record.ValueEqual(record.Int(1), arr[0]))

	val, err = toValue(nil)
	require.NoError(t, err)
	assert.True(t, record.IsTombstone(val))

	_, err = toValue(1.5)
	assert.Error(t, err)

	_, err = toValue([]any{nil})
	assert.Error(t, err, "nested null is not a tombstone")
}
