package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	RemoteDatabase string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep syncing in the background until interrupted",
		Long: `Run the reconciler loop: one cycle at start, then one every sync.interval.
Transient failures back off exponentially. Send SIGHUP (for example when
the network comes back) to sync at once, cutting any backoff short. Stop
with Ctrl-C.

Example:
  ndomog watch
  ndomog watch --remote-db /srv/shop/remote.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.RemoteDatabase, "remote-db", "", "path to the remote mirror database (overrides config)")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
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

	rec := a.reconciler(mirror)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	go forwardSignals(ctx, sigChan, rec.Notify, cancel, a.logger)

	a.logger.Info("watch starting", "db", a.cfg.Database, "interval", a.cfg.Reconcile().Interval)
	fmt.Fprintln(cmd.OutOrStdout(), "Syncing. Press Ctrl-C to stop.")

	if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "reconciler error", err)
	}

	a.logger.Info("watch stopped gracefully")
	return nil
}

// forwardSignals turns SIGHUP into a sync request and any other signal into
// shutdown. It returns after shutdown or when ctx is done.
func forwardSignals(ctx context.Context, sigs <-chan os.Signal, notify, stop func(), logger *slog.Logger) {
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.Info("received SIGHUP, syncing now")
				notify()
				continue
			}
			logger.Info("received signal, shutting down", "signal", sig)
			stop()
			return
		case <-ctx.Done():
			return
		}
	}
}
