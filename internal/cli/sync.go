package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ndomog/internal/reconcile"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	RemoteDatabase string
	Retry          bool
	Offline        bool
}

// syncResult is the rendered outcome of a sync command.
type syncResult struct {
	reconcile.Report
	State string     `json:"state"`
	Error *ErrorBody `json:"error,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle against the remote",
		Long: `Push every pending change to the remote in order, then pull items,
categories and profiles.

The remote is a mirror database (remote_database in the config, or
--remote-db). With --retry, transient failures are retried with exponential
backoff up to sync.max_attempts. --offline simulates an unreachable remote.

Exit code is 1 when the cycle did not complete.`,
		Example: `  ndomog sync
  ndomog sync --remote-db /srv/shop/remote.db --retry`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RemoteDatabase, "remote-db", "", "path to the remote mirror database (overrides config)")
	cmd.Flags().BoolVar(&opts.Retry, "retry", false, "retry transient failures with backoff")
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "treat the remote as unreachable")
	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	a, err := openApp(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	mirror, closeMirror, err := a.openMirror(opts.RemoteDatabase)
	if err != nil {
		return err
	}
	defer closeMirror()
	mirror.SetOffline(opts.Offline)

	rec := a.reconciler(mirror)
	var rep reconcile.Report
	if opts.Retry {
		rep, err = rec.SyncWithRetry(cmd.Context())
	} else {
		rep, err = rec.Sync(cmd.Context())
	}
	if err == nil {
		// Transient failures absorbed by the retry budget still mean the
		// cycle did not finish.
		err = rep.Err
	}

	res := syncResult{Report: rep, State: rec.State().String()}
	if err != nil {
		res.Error = &ErrorBody{Code: errorCode(err), Message: err.Error()}
	}
	if rerr := a.out.Render(res, func(w io.Writer) error {
		return writeReport(w, res)
	}); rerr != nil {
		return rerr
	}

	if err != nil {
		return WrapExitError(ExitFailure, "sync did not complete", err)
	}
	return nil
}

func writeReport(w io.Writer, res syncResult) error {
	fmt.Fprintf(w, "pushed:    %d\n", res.Pushed)
	fmt.Fprintf(w, "rejected:  %d\n", len(res.Rejected))
	for _, r := range res.Rejected {
		fmt.Fprintf(w, "  #%d %s %s: %s\n", r.ActionID, r.Type, r.EntityID, r.Reason)
	}
	fmt.Fprintf(w, "remaining: %d\n", res.Remaining)
	fmt.Fprintf(w, "pulled:    items=%d categories=%d profiles=%d (skipped %d)\n",
		res.PulledItems, res.PulledCategories, res.PulledProfiles, res.Skipped)
	if res.Attempts > 1 {
		fmt.Fprintf(w, "attempts:  %d\n", res.Attempts)
	}
	fmt.Fprintf(w, "state:     %s\n", res.State)
	if res.Error != nil {
		fmt.Fprintf(w, "error:     [%s] %s\n", res.Error.Code, res.Error.Message)
	}
	return nil
}
