package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the del command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var peer string

	cmd := &cobra.Command{
		Use:   "del <id> <field>...",
		Short: "Delete fields from a record",
		Long: `Delete one or more fields from a record.

Deletion writes a tombstone, so it replicates and wins or loses
merges exactly like any other write.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0], peer, args[1:])
		},
	}

	cmd.Flags().StringVar(&peer, "peer", "", "writer peer id (defaults to the configured peer_id)")
	return cmd
}

func runDelete(opts *RootOptions, cmd *cobra.Command, id, peer string, fields []string) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if peer == "" {
		peer = e.cfg.PeerID
	}

	rec, err := e.nodes.Delete(cmd.Context(), id, peer, fields...)
	if err != nil {
		return e.formatter.Fail(err)
	}
	if e.formatter.Format == "text" {
		fmt.Fprintf(e.formatter.Writer, "deleted %d field(s)\n", len(fields))
	}
	return renderRecord(e.formatter, rec)
}
