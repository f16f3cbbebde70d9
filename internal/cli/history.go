package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List the version history of a record",
		Long: `List a record's history entries, newest first. Each entry is a full
snapshot of the record at that point, with the conflicts its merge
produced and a content hash of the snapshot.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, args[0], limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many entries (0 = all)")
	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, id string, limit int) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	versions, err := e.log.Versions(cmd.Context(), id)
	if err != nil {
		return e.formatter.Fail(err)
	}
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}

	if e.formatter.Format == "json" {
		return e.formatter.Success(versions)
	}

	if len(versions) == 0 {
		fmt.Fprintf(e.formatter.Writer, "no history for %s\n", id)
		return nil
	}
	for _, entry := range versions {
		fmt.Fprintf(e.formatter.Writer, "%d  ts=%d  conflicts=%d  hash=%s\n",
			entry.Seq, entry.Timestamp, len(entry.Conflicts), entry.SnapshotHash[:12])
	}
	return nil
}
