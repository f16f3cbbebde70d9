package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/accord/internal/record"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <id> <ts1> <ts2>",
		Short: "Compare two historical versions of a record",
		Long: `Show the fields whose visible values differ between the history
entries at the two timestamps. Deleted fields show as removed, not as
tombstone values.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t1, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse timestamp "+args[1], err)
			}
			t2, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse timestamp "+args[2], err)
			}
			return runDiff(rootOpts, cmd, args[0], t1, t2)
		},
	}
	return cmd
}

func runDiff(opts *RootOptions, cmd *cobra.Command, id string, t1, t2 int64) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	diff, err := e.log.Diff(cmd.Context(), id, t1, t2)
	if err != nil {
		return e.formatter.Fail(err)
	}

	if e.formatter.Format == "json" {
		return e.formatter.Success(diff)
	}

	if len(diff) == 0 {
		fmt.Fprintln(e.formatter.Writer, "no visible changes")
		return nil
	}
	fields := make([]string, 0, len(diff))
	for field := range diff {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		d := diff[field]
		fmt.Fprintf(e.formatter.Writer, "%s: %s -> %s\n", field, renderDiffValue(d.Old), renderDiffValue(d.New))
	}
	return nil
}

func renderDiffValue(v record.Value) string {
	if v == nil {
		return "(absent)"
	}
	raw, err := record.MarshalValue(v)
	if err != nil {
		return "?"
	}
	return string(raw)
}
