package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ndomog/internal/activity"
	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/config"
	"github.com/roach88/ndomog/internal/ids"
	"github.com/roach88/ndomog/internal/inventory"
	"github.com/roach88/ndomog/internal/outbox"
	"github.com/roach88/ndomog/internal/reconcile"
	"github.com/roach88/ndomog/internal/remote"
	"github.com/roach88/ndomog/internal/store"
)

// dotEnvFile is read from the working directory before the config loads.
const dotEnvFile = ".env"

// app is the wiring every command shares: the resolved configuration, the
// local store and the components over it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	out    *OutputFormatter

	store    *store.Store
	cache    *cache.Cache
	outbox   *outbox.Queue
	activity *activity.Log
	svc      *inventory.Service
}

// openApp resolves configuration (defaults < file < .env/environment <
// flags) and opens the local store.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	if err := config.LoadDotEnv(dotEnvFile); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load "+dotEnvFile, err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to prepare data directory", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		store:    st,
		cache:    cache.New(st),
		outbox:   outbox.New(st, clock.System{}),
		activity: activity.New(st, clock.System{}, ids.UUIDv7{}),
	}
	a.svc = inventory.New(st, a.cache, a.outbox, a.activity,
		inventory.User{ID: cfg.User.ID, Name: cfg.User.Name})
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// openMirror opens the remote authority on its own database. An empty path
// uses the configured remote database.
func (a *app) openMirror(path string) (*remote.Mirror, func(), error) {
	if path == "" {
		path = a.cfg.RemoteDatabase
	}
	if path == a.cfg.Database {
		return nil, nil, NewExitError(ExitCommandError, "remote database must differ from the local database")
	}
	a.logger.Debug("opening remote database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open remote database", err)
	}
	closeFn := func() {
		if err := st.Close(); err != nil {
			a.logger.Error("error closing remote database", "error", err)
		}
	}
	return remote.NewMirror(st, clock.System{}), closeFn, nil
}

// reconciler builds a reconciler against backend. State transitions are
// echoed in verbose mode.
func (a *app) reconciler(backend remote.Backend) *reconcile.Reconciler {
	return reconcile.New(a.store, a.cache, a.outbox, a.activity, backend, a.cfg.Reconcile(),
		reconcile.WithLogger(a.logger),
		reconcile.WithOnStateChange(func(from, to reconcile.State) {
			a.out.VerboseLog("sync state: %s -> %s", from, to)
		}),
	)
}

// newLogger installs a text handler on w at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
