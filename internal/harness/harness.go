package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/ndomog/internal/activity"
	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/inventory"
	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/outbox"
	"github.com/roach88/ndomog/internal/reconcile"
	"github.com/roach88/ndomog/internal/remote"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
	"github.com/roach88/ndomog/internal/testutil"
)

// DefaultCategory is used by add_item steps that name no category.
const DefaultCategory = "General"

// Harness is the scenario execution engine. It wires a local device and a
// Mirror remote, each on its own in-memory store, with a deterministic
// clock and id sequence.
type Harness struct {
	local  *store.Store
	remote *store.Store

	cache    *cache.Cache
	outbox   *outbox.Queue
	activity *activity.Log
	svc      *inventory.Service
	mirror   *remote.Mirror
	rec      *reconcile.Reconciler

	refs map[string]string
}

// Run executes a scenario in fresh stores and returns the result.
//
// Execution flow:
//  1. Open in-memory local and remote stores
//  2. Run each step, tracing it and checking expect clauses
//  3. Evaluate assertions against the final state
//
// A returned error means a step could not run at all (e.g. a gesture
// failed validation); expectation mismatches are reported in Result.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.close()

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Op, err)
		}
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	local, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create local store: %w", err)
	}
	remoteStore, err := store.Open(":memory:")
	if err != nil {
		local.Close()
		return nil, fmt.Errorf("failed to create remote store: %w", err)
	}

	clk := testutil.NewStepClock(testutil.Epoch, time.Second)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{
		local:    local,
		remote:   remoteStore,
		cache:    cache.New(local),
		outbox:   outbox.New(local, clk),
		activity: activity.New(local, clk, testutil.NewSeqIDs("log")),
		mirror:   remote.NewMirror(remoteStore, clk),
		refs:     make(map[string]string),
	}
	h.svc = inventory.New(local, h.cache, h.outbox, h.activity,
		inventory.User{ID: "user-1", Name: "tester"},
		inventory.WithClock(clk),
		inventory.WithIDs(testutil.NewSeqIDs("id")),
	)

	cfg := reconcile.DefaultConfig()
	cfg.Jitter = 0
	cfg.MaxAttempts = 3
	if scenario.RejectPolicy != "" {
		cfg.RejectPolicy = reconcile.RejectPolicy(scenario.RejectPolicy)
	}
	h.rec = reconcile.New(local, h.cache, h.outbox, h.activity, h.mirror, cfg,
		reconcile.WithLogger(logger),
		reconcile.WithClock(clk),
		reconcile.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	return h, nil
}

func (h *Harness) close() {
	h.local.Close()
	h.remote.Close()
}

func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) error {
	id := h.refs[step.Ref]

	switch step.Op {
	case OpAddItem:
		category := step.Category
		if category == "" {
			category = DefaultCategory
		}
		item, err := h.svc.AddItem(ctx, inventory.NewItem{
			Name:         step.Name,
			Category:     category,
			BuyingPrice:  step.BuyingPrice,
			SellingPrice: step.SellingPrice,
			Quantity:     intOr(step.Quantity, 0),
		})
		if err != nil {
			return err
		}
		h.refs[step.Ref] = item.ID
		result.AddTrace("add_item %s -> %s qty=%d", step.Ref, item.ID, item.Quantity)

	case OpUpdateItem:
		item, err := h.cache.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if step.Name != "" {
			item.Name = step.Name
		}
		if step.Category != "" {
			item.Category = step.Category
		}
		if step.Quantity != nil {
			item.Quantity = *step.Quantity
		}
		item, err = h.svc.UpdateItem(ctx, item)
		if err != nil {
			return err
		}
		result.AddTrace("update_item %s name=%q qty=%d", step.Ref, item.Name, item.Quantity)

	case OpUpdateQuantity:
		item, err := h.svc.UpdateQuantity(ctx, id, *step.Quantity)
		if err != nil {
			return err
		}
		result.AddTrace("update_quantity %s qty=%d", step.Ref, item.Quantity)

	case OpAdjustQuantity:
		item, err := h.svc.AdjustQuantityBy(ctx, id, step.Delta)
		if err != nil {
			return err
		}
		result.AddTrace("adjust_quantity %s delta=%+d qty=%d", step.Ref, step.Delta, item.Quantity)

	case OpDeleteItem:
		if err := h.svc.DeleteItem(ctx, id); err != nil {
			return err
		}
		result.AddTrace("delete_item %s", step.Ref)

	case OpAddCategory:
		cat, err := h.svc.AddCategory(ctx, step.Name)
		if err != nil {
			return err
		}
		h.refs[step.Ref] = cat.ID
		result.AddTrace("add_category %s -> %s", step.Ref, cat.ID)

	case OpGoOffline:
		h.mirror.SetOffline(true)
		result.AddTrace("go_offline")

	case OpGoOnline:
		h.mirror.SetOffline(false)
		h.rec.Notify()
		result.AddTrace("go_online")

	case OpReject:
		h.mirror.RejectEntity(id, step.Reason)
		result.AddTrace("reject %s reason=%q", step.Ref, step.Reason)

	case OpAccept:
		h.mirror.RejectEntity(id, "")
		result.AddTrace("accept %s", step.Ref)

	case OpRemoteEdit:
		item, err := h.remoteEdit(ctx, id, step)
		if err != nil {
			return err
		}
		result.AddTrace("remote_edit %s name=%q qty=%d", step.Ref, item.Name, item.Quantity)

	case OpSync:
		rep, err := h.rec.Sync(ctx)
		result.AddTrace("sync %s", summarize(rep, err))
		h.check(i, step, rep, err, result)

	case OpSyncRetry:
		rep, err := h.rec.SyncWithRetry(ctx)
		if err == nil {
			err = rep.Err
		}
		result.AddTrace("sync_retry attempts=%d %s", rep.Attempts, summarize(rep, err))
		h.check(i, step, rep, err, result)

	case OpReset:
		if err := h.svc.Reset(ctx); err != nil {
			return err
		}
		result.AddTrace("reset")

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// remoteEdit changes an item on the remote as another device would. The
// remote's copy is edited when it has one, otherwise the local copy is
// published with the edit applied.
func (h *Harness) remoteEdit(ctx context.Context, id string, step Step) (model.Item, error) {
	item, err := h.mirror.Cache().GetItem(ctx, id)
	if syncerr.IsNotFound(err) {
		item, err = h.cache.GetItem(ctx, id)
	}
	if err != nil {
		return model.Item{}, err
	}
	if step.Name != "" {
		item.Name = step.Name
	}
	if step.Quantity != nil {
		item.Quantity = *step.Quantity
	}
	if err := h.mirror.Seed(ctx, []model.Item{item}, nil, nil); err != nil {
		return model.Item{}, err
	}
	return item, nil
}

func (h *Harness) check(i int, step Step, rep reconcile.Report, err error, result *Result) {
	want := step.Expect
	if want == nil {
		return
	}
	fail := func(field string, got, expected any) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s = %v, expected %v", i, step.Op, field, got, expected))
	}

	if want.Error != "" && errCode(err) != want.Error {
		fail("error", errCode(err), want.Error)
	}
	intField := func(field string, got int, expected *int) {
		if expected != nil && got != *expected {
			fail(field, got, *expected)
		}
	}
	intField("pushed", rep.Pushed, want.Pushed)
	intField("rejected", len(rep.Rejected), want.Rejected)
	intField("remaining", rep.Remaining, want.Remaining)
	intField("skipped", rep.Skipped, want.Skipped)
	intField("pulled_items", rep.PulledItems, want.Pulled)
	intField("attempts", rep.Attempts, want.Attempts)
}

func summarize(rep reconcile.Report, err error) string {
	return fmt.Sprintf("pushed=%d rejected=%d remaining=%d pruned=%d pulled=%d/%d/%d skipped=%d err=%s",
		rep.Pushed,
		len(rep.Rejected),
		rep.Remaining,
		rep.Pruned,
		rep.PulledItems,
		rep.PulledCategories,
		rep.PulledProfiles,
		rep.Skipped,
		errCode(err),
	)
}

func errCode(err error) string {
	if err == nil {
		return "none"
	}
	if code := syncerr.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNCLASSIFIED"
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
