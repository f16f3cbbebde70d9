package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/accord/internal/record"
)

// renderRecord writes a record for humans: visible fields sorted by
// name, then the clock and timestamp. Tombstoned fields are omitted.
func renderRecord(f *OutputFormatter, rec record.NodeRecord) error {
	if f.Format == "json" {
		return f.Success(rec)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s @ %d\n", rec.ID, rec.Timestamp)

	fields := rec.VisibleFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := record.MarshalValue(fields[name])
		if err != nil {
			return err
		}
		st := rec.State[name]
		fmt.Fprintf(&b, "  %s = %s  (ts=%d writer=%s)\n", name, raw, st.Timestamp, st.Writer)
	}

	clockJSON, err := json.Marshal(rec.Clock)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b, "  clock %s", clockJSON)
	fmt.Fprintln(f.Writer, b.String())
	return nil
}

// renderConflicts reports field conflicts from a merge in text form.
func renderConflicts(f *OutputFormatter, conflicts []record.Conflict) {
	if f.Format == "json" || len(conflicts) == 0 {
		return
	}
	fmt.Fprintf(f.Writer, "%d field conflict(s):\n", len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(f.Writer, "  %s:\n", c.Field)
		for _, cand := range c.Candidates {
			raw, err := record.MarshalValue(cand.Value)
			if err != nil {
				raw = []byte("?")
			}
			fmt.Fprintf(f.Writer, "    %s @ %d: %s\n", cand.Writer, cand.Timestamp, raw)
		}
	}
}

// parseFieldArgs turns field=value arguments into typed field changes.
// Values parse as JSON first, so numbers, booleans, arrays, objects and
// null (delete) keep their types; anything that is not valid JSON is
// taken as a plain string.
func parseFieldArgs(args []string) (map[string]record.Value, error) {
	changes := make(map[string]record.Value, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not of the form field=value", arg)
		}
		if !json.Valid([]byte(raw)) {
			changes[name] = record.String(raw)
			continue
		}
		val, err := record.UnmarshalValue([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		changes[name] = val
	}
	return changes, nil
}
