package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/accord/internal/record"
)

// decodeRecord parses and validates a record from wire JSON.
func decodeRecord(raw []byte) (record.NodeRecord, error) {
	return record.Decode(raw)
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Print a record in canonical wire form",
		Long: `Print a record as canonical JSON, byte-identical on every replica
holding the same state. Pipe the output to "accord apply -" on
another replica to synchronize it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, id string) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.nodes.Get(cmd.Context(), id)
	if err != nil {
		return e.formatter.Fail(err)
	}
	canonical, err := rec.MarshalCanonical()
	if err != nil {
		return e.formatter.Fail(err)
	}
	fmt.Fprintln(e.formatter.Writer, string(canonical))
	return nil
}
