package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFailing(t *testing.T, steps []Step, assertions ...Assertion) []string {
	t.Helper()
	result, err := Run(&Scenario{
		Name:        "failing",
		Description: "Assertions that must not hold",
		Steps:       steps,
		Assertions:  assertions,
	})
	require.NoError(t, err)
	require.False(t, result.Pass)
	return result.Errors
}

var oneHammer = []Step{{Op: OpAddItem, Ref: "hammer", Name: "Hammer", Quantity: intPtr(3)}}

func TestAssert_PendingCountMismatch(t *testing.T) {
	errs := runFailing(t, oneHammer, Assertion{Type: AssertPending, Count: intPtr(0)})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "assertions[0]")
	assert.Contains(t, errs[0], "Expected: 0 rows")
	assert.Contains(t, errs[0], "Actual: 1 rows [add_item]")
}

func TestAssert_PendingOrderMismatch(t *testing.T) {
	steps := append(oneHammer, Step{Op: OpDeleteItem, Ref: "hammer"})
	errs := runFailing(t, steps, Assertion{Type: AssertPending, Actions: []string{"delete_item", "add_item"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: [add_item delete_item]")
}

func TestAssert_DeliveredBeforeSync(t *testing.T) {
	errs := runFailing(t, oneHammer, Assertion{Type: AssertDelivered, Count: intPtr(1)})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "delivered")
}

func TestAssert_ItemFields(t *testing.T) {
	errs := runFailing(t, oneHammer,
		Assertion{Type: AssertItem, Ref: "hammer", Name: "Saw"},
		Assertion{Type: AssertItem, Ref: "hammer", Quantity: intPtr(9)},
		Assertion{Type: AssertItem, Ref: "hammer", Deleted: boolPtr(true)},
		Assertion{Type: AssertItem, Ref: "hammer", Absent: true},
	)
	require.Len(t, errs, 4)
	assert.Contains(t, errs[0], "Expected: name Saw")
	assert.Contains(t, errs[1], "Expected: quantity 9")
	assert.Contains(t, errs[2], "Expected: deleted true")
	assert.Contains(t, errs[3], "Expected: absent")
}

func TestAssert_RemoteItemMissing(t *testing.T) {
	errs := runFailing(t, oneHammer, Assertion{Type: AssertRemoteItem, Ref: "hammer", Quantity: intPtr(3)})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "(item hammer)")
	assert.Contains(t, errs[0], "Actual: not found")
}

func TestAssert_ActivityMismatch(t *testing.T) {
	errs := runFailing(t, oneHammer, Assertion{Type: AssertActivity, Actions: []string{"DELETE"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: [CREATE]")
}

func TestAssert_ActiveItemsMismatch(t *testing.T) {
	errs := runFailing(t, oneHammer, Assertion{Type: AssertItems, Names: []string{"Saw"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Actual: [Hammer]")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: "item", Subject: "item hammer", Expected: "quantity 2", Actual: "quantity 3"}
	assert.Equal(t, "Assertion failed: item (item hammer)\n  Expected: quantity 2\n  Actual: quantity 3", err.Error())

	bare := &AssertionError{Type: "activity", Expected: "[A]", Actual: "[B]"}
	assert.Equal(t, "Assertion failed: activity\n  Expected: [A]\n  Actual: [B]", bare.Error())
}
