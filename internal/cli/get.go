package cli

import (
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show the current state of a record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, id string) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	rec, err := e.nodes.Get(cmd.Context(), id)
	if err != nil {
		return e.formatter.Fail(err)
	}
	return renderRecord(e.formatter, rec)
}
