package harness

import (
	"fmt"

	"github.com/roach88/accord/internal/record"
)

// Verify checks a scenario's expectations against its result. Returns
// the first violated expectation.
func Verify(scenario *Scenario, result *Result) error {
	wantConverged := true
	if scenario.Expect.Converged != nil {
		wantConverged = *scenario.Expect.Converged
	}
	if result.Converged != wantConverged {
		return fmt.Errorf("converged = %v, want %v", result.Converged, wantConverged)
	}

	if got := len(result.Conflicts); got != scenario.Expect.Conflicts {
		return fmt.Errorf("surfaced %d conflict(s), want %d", got, scenario.Expect.Conflicts)
	}

	if len(scenario.Expect.Fields) == 0 && len(scenario.Expect.Absent) == 0 {
		return nil
	}

	// Field expectations read from the first peer's copy.
	rec, held := result.Final[scenario.Peers[0]]
	if !held {
		return fmt.Errorf("peer %s never saw record %s", scenario.Peers[0], scenario.Record)
	}

	for field, raw := range scenario.Expect.Fields {
		want, err := toValue(raw)
		if err != nil {
			return fmt.Errorf("expect.fields.%s: %w", field, err)
		}
		got, visible := rec.Field(field)
		if !visible {
			return fmt.Errorf("field %s is not visible, want %v", field, raw)
		}
		if !record.ValueEqual(want, got) {
			gotJSON, _ := record.MarshalValue(got)
			wantJSON, _ := record.MarshalValue(want)
			return fmt.Errorf("field %s = %s, want %s", field, gotJSON, wantJSON)
		}
	}

	for _, field := range scenario.Expect.Absent {
		if _, visible := rec.Field(field); visible {
			return fmt.Errorf("field %s should not be visible", field)
		}
	}
	return nil
}
