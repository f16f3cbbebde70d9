package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var peer string

	cmd := &cobra.Command{
		Use:   "restore <id> <ts>",
		Short: "Restore a record to a historical version",
		Long: `Restore a record to its exact state at the given history timestamp.

The restore is a new write that outranks the current state, so it
replicates to peers and wins merges instead of silently diverging.
Fields added after the target version are deleted.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "parse timestamp "+args[1], err)
			}
			return runRestore(rootOpts, cmd, args[0], target, peer)
		},
	}

	cmd.Flags().StringVar(&peer, "peer", "", "writer peer id (defaults to the configured peer_id)")
	return cmd
}

func runRestore(opts *RootOptions, cmd *cobra.Command, id string, target int64, peer string) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if peer == "" {
		peer = e.cfg.PeerID
	}

	restored, err := e.timetravel().Restore(cmd.Context(), id, target, peer)
	if err != nil {
		return e.formatter.Fail(err)
	}
	return renderRecord(e.formatter, restored)
}
