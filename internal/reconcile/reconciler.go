// Package reconcile drains the outbox to the remote and pulls remote state
// into the entity cache.
//
// One cycle is: Pushing, then Pulling, then Idle. A failure in either phase
// moves the reconciler to BackoffWait; SyncWithRetry sleeps there with
// exponential backoff and jitter before retrying.
//
// Push delivers a snapshot of the pending actions strictly in order. The
// first failed or rejected action halts the push: later actions stay pending
// for the next cycle, earlier ones stay synced. Cancellation is honored
// between actions, never in the middle of one.
//
// Thread-safety model:
//   - Sync, SyncWithRetry, Notify, State: safe from any goroutine
//   - Concurrent Sync calls share one in-flight cycle
//   - Run: must be called from exactly one goroutine
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/ndomog/internal/activity"
	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/clock"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/outbox"
	"github.com/roach88/ndomog/internal/remote"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
)

// Actor identifies who SYNC_REJECTED activity entries are attributed to.
type Actor struct {
	ID   string
	Name string
}

// Reconciler orchestrates push and pull against a remote backend.
type Reconciler struct {
	store    *store.Store
	cache    *cache.Cache
	outbox   *outbox.Queue
	activity *activity.Log
	backend  remote.Backend
	cfg      Config

	logger  *slog.Logger
	clock   clock.Clock
	actor   Actor
	sleep   func(ctx context.Context, d time.Duration) error
	random  func() float64
	onState func(from, to State)

	group  singleflight.Group
	notify chan struct{}

	mu    sync.Mutex
	state State
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = l
	}
}

// WithClock sets the clock used to stamp pull cursors.
func WithClock(c clock.Clock) Option {
	return func(r *Reconciler) {
		r.clock = c
	}
}

// WithActor sets the user recorded on SYNC_REJECTED entries.
func WithActor(a Actor) Option {
	return func(r *Reconciler) {
		r.actor = a
	}
}

// WithSleep replaces the backoff sleep. Tests use it to skip real waits.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) {
		r.sleep = sleep
	}
}

// WithRandom replaces the jitter source, which must return values in [0, 1).
func WithRandom(random func() float64) Option {
	return func(r *Reconciler) {
		r.random = random
	}
}

// WithOnStateChange registers a callback for every state transition.
// It runs synchronously on the transitioning goroutine.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(r *Reconciler) {
		r.onState = fn
	}
}

// New creates a reconciler. cfg must pass Validate.
func New(
	s *store.Store,
	c *cache.Cache,
	q *outbox.Queue,
	l *activity.Log,
	backend remote.Backend,
	cfg Config,
	opts ...Option,
) *Reconciler {
	r := &Reconciler{
		store:    s,
		cache:    c,
		outbox:   q,
		activity: l,
		backend:  backend,
		cfg:      cfg,
		logger:   slog.Default(),
		clock:    clock.System{},
		actor:    Actor{ID: "system", Name: "Sync"},
		sleep:    sleepContext,
		random:   rand.Float64,
		notify:   make(chan struct{}, 1),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current phase.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	r.mu.Unlock()

	if from == to {
		return
	}
	r.logger.Debug("reconciler state", "from", from.String(), "to", to.String())
	if r.onState != nil {
		r.onState(from, to)
	}
}

// Notify requests a cycle from Run, e.g. when connectivity is regained.
// Never blocks; requests made while one is already waiting coalesce.
func (r *Reconciler) Notify() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Sync runs one push-then-pull cycle. A call made while a cycle is in
// flight waits for that cycle and receives its report.
//
// The shared cycle runs on the first caller's ctx. When that ctx is
// cancelled, a waiting caller whose own ctx is still live runs a fresh
// cycle instead of receiving the cancellation.
func (r *Reconciler) Sync(ctx context.Context) (Report, error) {
	for {
		v, err, shared := r.group.Do("sync", func() (any, error) {
			rep := r.cycle(ctx)
			return sharedCycle{rep: rep, cancelled: ctx.Err() != nil}, rep.Err
		})
		res := v.(sharedCycle)
		if !shared {
			return res.rep, err
		}
		if res.cancelled && ctx.Err() == nil {
			r.logger.Debug("shared cycle was cancelled by its caller; running again")
			continue
		}
		r.logger.Debug("sync coalesced with in-flight cycle")
		return res.rep, err
	}
}

// sharedCycle is the singleflight result of one cycle. cancelled records
// whether the ctx the cycle ran on was done when it returned.
type sharedCycle struct {
	rep       Report
	cancelled bool
}

// SyncWithRetry runs cycles until one succeeds or MaxAttempts is reached,
// backing off between TRANSIENT_IO failures. Any other error, including
// REMOTE_REJECTED and cancellation, ends the loop at once and is returned.
// When the budget runs out on a TRANSIENT_IO error, the error is absorbed:
// it is kept in Report.Err and nil is returned.
func (r *Reconciler) SyncWithRetry(ctx context.Context) (Report, error) {
	return r.syncWithRetry(ctx, nil)
}

// syncWithRetry is SyncWithRetry with an optional wake channel: a receive
// on wake ends the current backoff wait early and retries at once.
func (r *Reconciler) syncWithRetry(ctx context.Context, wake <-chan struct{}) (Report, error) {
	var rep Report
	for attempt := 1; ; attempt++ {
		var err error
		rep, err = r.Sync(ctx)
		rep.Attempts = attempt

		switch {
		case err == nil:
			return rep, nil
		case ctx.Err() != nil:
			r.setState(StateIdle)
			return rep, ctx.Err()
		case !syncerr.IsTransient(err):
			r.setState(StateIdle)
			return rep, err
		}

		if attempt >= r.cfg.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		r.logger.Warn("sync attempt failed",
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"retry_in", delay,
			"error", err,
		)
		r.setState(StateBackoffWait)
		if err := r.wait(ctx, delay, wake); err != nil {
			r.setState(StateIdle)
			return rep, err
		}
	}

	r.setState(StateIdle)
	r.logger.Warn("sync retry budget exhausted; will retry on next trigger",
		"attempts", rep.Attempts,
		"error", rep.Err,
	)
	return rep, nil
}

// Run triggers SyncWithRetry on the interval ticker and on Notify until ctx
// is cancelled. Ticks that arrive while a cycle runs are dropped; a Notify
// that arrives while a cycle runs starts another one right after, and one
// that arrives during a backoff wait ends the wait. A cycle
// that halted at a skipped rejection is followed immediately by another to
// deliver the rest of the queue.
//
// Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler starting", "interval", r.cfg.Interval, "reject_policy", string(r.cfg.RejectPolicy))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		rep, err := r.syncWithRetry(ctx, r.notify)
		if ctx.Err() != nil {
			r.logger.Info("reconciler stopping: context cancelled")
			return ctx.Err()
		}
		if err != nil {
			r.logger.Error("sync failed", "error", err, "attempts", rep.Attempts)
		}

		drain(ticker.C)

		if err == nil && rep.Err == nil && rep.Halted && rep.Remaining > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
		case <-r.notify:
			r.logger.Debug("sync requested")
		}
	}
}

// cycle runs push then pull. The returned report carries the cycle error.
func (r *Reconciler) cycle(ctx context.Context) Report {
	rep := Report{Attempts: 1}
	start := time.Now()

	r.setState(StatePushing)
	if err := r.push(ctx, &rep); err != nil {
		return r.fail(rep, err)
	}

	r.setState(StatePulling)
	if err := r.pull(ctx, &rep); err != nil {
		return r.fail(rep, err)
	}

	r.setState(StateIdle)
	rep.State = StateIdle
	r.logger.Info("sync cycle complete",
		"pushed", rep.Pushed,
		"rejected", len(rep.Rejected),
		"remaining", rep.Remaining,
		"pruned", rep.Pruned,
		"pulled_items", rep.PulledItems,
		"pulled_categories", rep.PulledCategories,
		"pulled_profiles", rep.PulledProfiles,
		"skipped", rep.Skipped,
		"duration", time.Since(start),
	)
	return rep
}

func (r *Reconciler) fail(rep Report, err error) Report {
	if !errors.Is(err, context.Canceled) {
		err = syncerr.Classify("sync", err)
	}
	rep.Err = err
	rep.State = StateBackoffWait
	r.setState(StateBackoffWait)
	return rep
}

// backoff returns the delay after the given failed attempt (1-based).
func (r *Reconciler) backoff(attempt int) time.Duration {
	d := float64(r.cfg.BackoffMin) * math.Pow(r.cfg.Multiplier, float64(attempt-1))
	if max := float64(r.cfg.BackoffMax); d > max {
		d = max
	}
	if r.cfg.Jitter > 0 {
		d *= 1 + r.cfg.Jitter*(2*r.random()-1)
	}
	if max := float64(r.cfg.BackoffMax); d > max {
		d = max
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// wait sleeps for d, returning early without error on a receive from wake.
func (r *Reconciler) wait(ctx context.Context, d time.Duration, wake <-chan struct{}) error {
	if wake == nil {
		return r.sleep(ctx, d)
	}

	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.sleep(sleepCtx, d) }()

	select {
	case err := <-done:
		return err
	case <-wake:
		cancel()
		<-done
		r.logger.Debug("backoff cut short by sync request")
		return ctx.Err()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drain[T any](c <-chan T) {
	for {
		select {
		case <-c:
		default:
			return
		}
	}
}

// cursorKey names the pull cursor for an entity type in sync_state.
func cursorKey(entity model.EntityType) string {
	return "pull." + string(entity)
}
