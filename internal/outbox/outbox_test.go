package outbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ndomog/internal/model"
	"github.com/roach88/ndomog/internal/store"
	"github.com/roach88/ndomog/internal/syncerr"
	"github.com/roach88/ndomog/internal/testutil"
)

func newTestQueue(t *testing.T) (*Queue, *testutil.StepClock) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clk := testutil.NewStepClock(testutil.Epoch, time.Second)
	return New(s, clk), clk
}

func enqueue(t *testing.T, q *Queue, typ model.ActionType, entityID string) model.PendingAction {
	t.Helper()
	a, err := q.Enqueue(context.Background(), model.PendingAction{
		Type:     typ,
		EntityID: entityID,
		Payload:  []byte(`{"id":"` + entityID + `"}`),
	})
	require.NoError(t, err)
	return a
}

func pendingIDs(t *testing.T, q *Queue) []int64 {
	t.Helper()
	pending, err := q.ListPending(context.Background())
	require.NoError(t, err)
	ids := make([]int64, 0, len(pending))
	for _, a := range pending {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestEnqueue_AssignsIDAndTimestamp(t *testing.T) {
	q, _ := newTestQueue(t)

	a := enqueue(t, q, model.ActionAddItem, "item-1")

	assert.Positive(t, a.ID)
	assert.Equal(t, testutil.Epoch.Add(time.Second), a.CreatedAt)
	assert.False(t, a.Synced)

	pending, err := q.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a, pending[0])
}

func TestEnqueue_RejectsInvalidActions(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, model.PendingAction{Type: "explode", EntityID: "x"})
	assert.True(t, syncerr.IsFatal(err), "got %v", err)

	_, err = q.Enqueue(ctx, model.PendingAction{Type: model.ActionAddItem})
	assert.True(t, syncerr.IsFatal(err), "got %v", err)

	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueue_DefaultsEmptyPayload(t *testing.T) {
	q, _ := newTestQueue(t)

	a, err := q.Enqueue(context.Background(), model.PendingAction{
		Type:     model.ActionDeleteItem,
		EntityID: "item-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), a.Payload)
}

func TestListPending_CreationOrder(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	// Timestamps supplied out of insertion order: delivery follows created_at.
	late, err := q.Enqueue(ctx, model.PendingAction{
		Type: model.ActionAddItem, EntityID: "late", CreatedAt: testutil.Epoch.Add(time.Hour),
	})
	require.NoError(t, err)
	early, err := q.Enqueue(ctx, model.PendingAction{
		Type: model.ActionAddItem, EntityID: "early", CreatedAt: testutil.Epoch.Add(time.Minute),
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{early.ID, late.ID}, pendingIDs(t, q))
}

func TestListPending_TiesBreakByID(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	tie := testutil.Epoch.Add(time.Hour)
	var want []int64
	for _, id := range []string{"a", "b", "c"} {
		a, err := q.Enqueue(ctx, model.PendingAction{
			Type: model.ActionUpdateQuantity, EntityID: id, CreatedAt: tie,
		})
		require.NoError(t, err)
		want = append(want, a.ID)
	}

	assert.Equal(t, want, pendingIDs(t, q))
}

func TestListPending_OrderStableUnderMarkAndPrune(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a1 := enqueue(t, q, model.ActionAddItem, "i1")
	a2 := enqueue(t, q, model.ActionAddItem, "i2")
	a3 := enqueue(t, q, model.ActionUpdateQuantity, "i1")

	require.NoError(t, q.MarkSynced(ctx, a2.ID))
	a4 := enqueue(t, q, model.ActionDeleteItem, "i2")
	assert.Equal(t, []int64{a1.ID, a3.ID, a4.ID}, pendingIDs(t, q))

	before := pendingIDs(t, q)
	pruned, err := q.PruneSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	assert.Equal(t, before, pendingIDs(t, q), "prune must not change pending")
}

func TestMarkSynced_Idempotent(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a1 := enqueue(t, q, model.ActionAddItem, "i1")
	a2 := enqueue(t, q, model.ActionAddItem, "i2")

	require.NoError(t, q.MarkSynced(ctx, a1.ID))
	once := pendingIDs(t, q)

	require.NoError(t, q.MarkSynced(ctx, a1.ID))
	assert.Equal(t, once, pendingIDs(t, q))
	assert.Equal(t, []int64{a2.ID}, once)
}

func TestMarkSynced_UnknownIDIsNoop(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a := enqueue(t, q, model.ActionAddItem, "i1")
	require.NoError(t, q.MarkSynced(ctx, 9999))
	assert.Equal(t, []int64{a.ID}, pendingIDs(t, q))
}

func TestPruneSynced_KeepsUnsynced(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a1 := enqueue(t, q, model.ActionAddItem, "i1")
	a2 := enqueue(t, q, model.ActionAddItem, "i2")
	require.NoError(t, q.MarkSynced(ctx, a1.ID))

	n, err := q.PruneSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []int64{a2.ID}, pendingIDs(t, q))

	n, err = q.PruneSynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIDs_NeverReusedAfterPrune(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a1 := enqueue(t, q, model.ActionAddItem, "i1")
	require.NoError(t, q.MarkSynced(ctx, a1.ID))
	_, err := q.PruneSynced(ctx)
	require.NoError(t, err)

	a2 := enqueue(t, q, model.ActionAddItem, "i2")
	assert.Greater(t, a2.ID, a1.ID)
}

func TestWipeAll(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	a := enqueue(t, q, model.ActionAddItem, "i1")
	enqueue(t, q, model.ActionAddItem, "i2")
	require.NoError(t, q.MarkSynced(ctx, a.ID))

	require.NoError(t, q.WipeAll(ctx))

	assert.Empty(t, pendingIDs(t, q))
	n, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWriter_PendingEntityIDs(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	q := New(s, testutil.NewStepClock(testutil.Epoch, time.Second))
	ctx := context.Background()

	a1 := enqueue(t, q, model.ActionAddItem, "i1")
	enqueue(t, q, model.ActionUpdateQuantity, "i1")
	enqueue(t, q, model.ActionAddCategory, "c1")
	a4 := enqueue(t, q, model.ActionAddItem, "i2")
	require.NoError(t, q.MarkSynced(ctx, a1.ID))
	require.NoError(t, q.MarkSynced(ctx, a4.ID))

	var ids map[string]struct{}
	err = s.View(ctx, func(tx *store.Tx) error {
		var err error
		ids, err = q.In(tx).PendingEntityIDs(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"i1": {}, "c1": {}}, ids)
}

func TestWriter_EnqueueRollsBackWithTransaction(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	q := New(s, nil)
	ctx := context.Background()

	err = s.Update(ctx, func(tx *store.Tx) error {
		if _, err := q.In(tx).Enqueue(ctx, model.PendingAction{Type: model.ActionAddItem, EntityID: "i1"}); err != nil {
			return err
		}
		return syncerr.Fatal("gesture", assert.AnError)
	})
	require.Error(t, err)
	assert.Empty(t, pendingIDs(t, q))
}

func TestWatchPending(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	live := q.WatchPending(ctx)
	defer live.Cancel()

	next := func() []model.PendingAction {
		t.Helper()
		select {
		case v := <-live.C:
			return v
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for pending snapshot")
			return nil
		}
	}

	assert.Empty(t, next())
	a := enqueue(t, q, model.ActionAddItem, "i1")
	got := next()
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	require.NoError(t, q.MarkSynced(ctx, a.ID))
	assert.Empty(t, next())
}
