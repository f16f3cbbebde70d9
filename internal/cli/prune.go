package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/accord/internal/retention"
)

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention policy to all history",
		Long: `Run one retention sweep over every record's history using the
configured retention policy. Each record's newest entry is always
kept. Does nothing when no retention limits are configured.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(rootOpts, cmd)
		},
	}
	return cmd
}

func runPrune(opts *RootOptions, cmd *cobra.Command) error {
	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	policy := retention.Policy{
		MaxEntries: e.cfg.Retention.MaxEntries,
		MaxAge:     e.cfg.Retention.MaxAge,
	}
	svc := retention.NewService(e.db, policy, e.cfg.Retention.Interval, e.logger)

	deleted, err := svc.PruneOnce(cmd.Context())
	if err != nil {
		return e.formatter.Fail(err)
	}

	if e.formatter.Format == "json" {
		return e.formatter.Success(struct {
			Deleted int64 `json:"deleted"`
		}{Deleted: deleted})
	}
	fmt.Fprintf(e.formatter.Writer, "pruned %d history entr(ies)\n", deleted)
	return nil
}
