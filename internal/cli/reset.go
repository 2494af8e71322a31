package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Wipe local items, pending changes and activity (logout)",
		Long: `Delete every locally cached entity, every pending change and the activity
log, and forget the pull cursors. Pending changes that were never synced are
lost. The next sync pulls everything from the remote again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to reset without --yes")
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			pending, err := a.outbox.PendingCount(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "failed to count pending actions", err)
			}
			if pending > 0 {
				a.logger.Warn("discarding unsynced changes", "pending", pending)
			}
			if err := a.svc.Reset(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "failed to reset", err)
			}
			return a.out.Render(map[string]int{"discarded_pending": pending}, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Reset complete (%d unsynced changes discarded).\n", pending)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}
