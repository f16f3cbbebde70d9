package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var peer string
	var newRecord bool

	cmd := &cobra.Command{
		Use:   "put <id> <field=value>...",
		Short: "Write fields on a record",
		Long: `Write one or more fields on a record, creating it if needed.

Values parse as JSON first, so numbers, booleans, arrays and objects
keep their types; a value of null deletes the field. Anything that is
not valid JSON is stored as a string. With --new the id argument is
dropped and a fresh record id is generated.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			fieldArgs := args
			if newRecord {
				v7, err := uuid.NewV7()
				if err != nil {
					return WrapExitError(ExitCommandError, "generate record id", err)
				}
				id = v7.String()
			} else {
				if len(args) < 2 {
					return NewExitError(ExitCommandError, "put needs a record id and at least one field=value")
				}
				id = args[0]
				fieldArgs = args[1:]
			}
			return runPut(rootOpts, cmd, id, peer, fieldArgs)
		},
	}

	cmd.Flags().StringVar(&peer, "peer", "", "writer peer id (defaults to the configured peer_id)")
	cmd.Flags().BoolVar(&newRecord, "new", false, "generate a new record id instead of naming one")
	return cmd
}

func runPut(opts *RootOptions, cmd *cobra.Command, id, peer string, fieldArgs []string) error {
	changes, err := parseFieldArgs(fieldArgs)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse fields", err)
	}

	e, err := openEnv(opts, cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if peer == "" {
		peer = e.cfg.PeerID
	}
	e.formatter.VerboseLog("writing %d field(s) to %s as %s", len(changes), id, peer)

	rec, err := e.nodes.ApplyLocal(cmd.Context(), id, peer, changes)
	if err != nil {
		return e.formatter.Fail(err)
	}
	if e.formatter.Format == "text" {
		fmt.Fprintf(e.formatter.Writer, "wrote %d field(s)\n", len(changes))
	}
	return renderRecord(e.formatter, rec)
}
