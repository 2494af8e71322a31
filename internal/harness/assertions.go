package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/ndomog/internal/cache"
	"github.com/roach88/ndomog/internal/syncerr"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Subject  string // What was checked, e.g. "item hammer"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Subject != "" {
		fmt.Fprintf(&buf, " (%s)", e.Subject)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluate checks every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := h.assert(ctx, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (h *Harness) assert(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertPending:
		pending, err := h.outbox.ListPending(ctx)
		if err != nil {
			return err
		}
		types := make([]string, len(pending))
		for i, p := range pending {
			types[i] = string(p.Type)
		}
		return assertList(a, "pending", types, a.Actions)

	case AssertDelivered:
		delivered := h.mirror.Delivered()
		types := make([]string, len(delivered))
		for i, d := range delivered {
			types[i] = string(d.Type)
		}
		return assertList(a, "delivered", types, a.Actions)

	case AssertItems:
		items, err := h.cache.ListActiveItems(ctx)
		if err != nil {
			return err
		}
		names := make([]string, len(items))
		for i, item := range items {
			names[i] = item.Name
		}
		return assertList(a, "active_items", names, a.Names)

	case AssertItem:
		return h.assertItem(ctx, h.cache, a)

	case AssertRemoteItem:
		return h.assertItem(ctx, h.mirror.Cache(), a)

	case AssertActivity:
		recent, err := h.activity.Recent(ctx, len(a.Actions))
		if err != nil {
			return err
		}
		actions := make([]string, len(recent))
		for i, entry := range recent {
			actions[i] = entry.Action
		}
		if !reflect.DeepEqual(actions, a.Actions) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%v", a.Actions),
				Actual:   fmt.Sprintf("%v", actions),
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertList checks a count and, when given, the exact ordered values.
func assertList(a Assertion, subject string, got, want []string) error {
	if a.Count != nil && len(got) != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("%d rows", *a.Count),
			Actual:   fmt.Sprintf("%d rows %v", len(got), got),
		}
	}
	if len(want) > 0 && !reflect.DeepEqual(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

func (h *Harness) assertItem(ctx context.Context, c *cache.Cache, a Assertion) error {
	subject := "item " + a.Ref
	item, err := c.GetItem(ctx, h.refs[a.Ref])
	if a.Absent {
		if syncerr.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		return &AssertionError{Type: a.Type, Subject: subject, Expected: "absent", Actual: "present"}
	}
	if syncerr.IsNotFound(err) {
		return &AssertionError{Type: a.Type, Subject: subject, Expected: "present", Actual: "not found"}
	}
	if err != nil {
		return err
	}

	switch {
	case a.Name != "" && item.Name != a.Name:
		return &AssertionError{Type: a.Type, Subject: subject, Expected: "name " + a.Name, Actual: "name " + item.Name}
	case a.Quantity != nil && item.Quantity != *a.Quantity:
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("quantity %d", *a.Quantity),
			Actual:   fmt.Sprintf("quantity %d", item.Quantity),
		}
	case a.Deleted != nil && item.IsDeleted != *a.Deleted:
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("deleted %t", *a.Deleted),
			Actual:   fmt.Sprintf("deleted %t", item.IsDeleted),
		}
	}
	return nil
}
