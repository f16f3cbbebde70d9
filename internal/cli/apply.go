package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <record.json>",
		Short: "Merge a record state received from a peer",
		Long: `Merge a record state exported by another replica into the local
store. Reads the record as JSON from the given file, or from stdin
when the path is "-". Prints the merged state and any field conflicts
the merge surfaced.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runApply(opts *RootOptions, cmd *cobra.Command, path string) error {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "read record", err)
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	remote, err := decodeRecord(raw)
	if err != nil {
		return e.formatter.Fail(err)
	}

	merged, conflicts, err := e.nodes.ApplyRemote(cmd.Context(), remote.ID, remote)
	if err != nil {
		return e.formatter.Fail(err)
	}

	if e.formatter.Format == "json" {
		return e.formatter.Success(struct {
			Record    any `json:"record"`
			Conflicts any `json:"conflicts,omitempty"`
		}{Record: merged, Conflicts: conflicts})
	}
	renderConflicts(e.formatter, conflicts)
	return renderRecord(e.formatter, merged)
}
