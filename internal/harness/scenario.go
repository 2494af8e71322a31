package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is an offline-first flow: local gestures, connectivity changes,
// remote behavior and sync cycles, followed by assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RejectPolicy is "skip" (default) or "block".
	RejectPolicy string `yaml:"reject_policy,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario operation. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Ref names the entity the step creates or targets. add_item and
	// add_category bind it; later steps resolve it to the generated id.
	Ref string `yaml:"ref,omitempty"`

	Name         string  `yaml:"name,omitempty"`
	Category     string  `yaml:"category,omitempty"`
	Quantity     *int    `yaml:"quantity,omitempty"`
	Delta        int     `yaml:"delta,omitempty"`
	BuyingPrice  float64 `yaml:"buying_price,omitempty"`
	SellingPrice float64 `yaml:"selling_price,omitempty"`

	// Reason is the remote's rejection message (reject).
	Reason string `yaml:"reason,omitempty"`

	// Expect checks the report of a sync or sync_retry step.
	Expect *SyncExpect `yaml:"expect,omitempty"`
}

// SyncExpect is a subset match against a sync report. Nil fields are not
// checked.
type SyncExpect struct {
	// Error is the expected error code, or "none".
	Error     string `yaml:"error,omitempty"`
	Pushed    *int   `yaml:"pushed,omitempty"`
	Rejected  *int   `yaml:"rejected,omitempty"`
	Remaining *int   `yaml:"remaining,omitempty"`
	Skipped   *int   `yaml:"skipped,omitempty"`
	Pulled    *int   `yaml:"pulled_items,omitempty"`
	Attempts  *int   `yaml:"attempts,omitempty"`
}

// Step operations.
const (
	OpAddItem        = "add_item"
	OpUpdateItem     = "update_item"
	OpUpdateQuantity = "update_quantity"
	OpAdjustQuantity = "adjust_quantity"
	OpDeleteItem     = "delete_item"
	OpAddCategory    = "add_category"
	OpGoOffline      = "go_offline"
	OpGoOnline       = "go_online"
	OpReject         = "reject"
	OpAccept         = "accept"
	OpRemoteEdit     = "remote_edit"
	OpSync           = "sync"
	OpSyncRetry      = "sync_retry"
	OpReset          = "reset"
)

// Assertion checks the state left by the steps.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Ref selects the entity (item, remote_item).
	Ref string `yaml:"ref,omitempty"`

	// Count is the expected number of rows (pending, delivered, items).
	Count *int `yaml:"count,omitempty"`

	// Actions lists outbox action types oldest first (pending), or activity
	// actions newest first (activity).
	Actions []string `yaml:"actions,omitempty"`

	// Names lists active item names in listing order (active_items).
	Names []string `yaml:"names,omitempty"`

	Name     string `yaml:"name,omitempty"`
	Quantity *int   `yaml:"quantity,omitempty"`
	Deleted  *bool  `yaml:"deleted,omitempty"`

	// Absent asserts the entity does not exist.
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion types.
const (
	AssertPending    = "pending"
	AssertDelivered  = "delivered"
	AssertItem       = "item"
	AssertRemoteItem = "remote_item"
	AssertActivity   = "activity"
	AssertItems      = "active_items"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are errors, so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.RejectPolicy {
	case "", "skip", "block":
	default:
		return fmt.Errorf("reject_policy must be skip or block, got %q", s.RejectPolicy)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	refs := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, refs); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, refs); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, refs map[string]bool) error {
	needRef := func() error {
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: %s requires ref", i, step.Op)
		}
		if !refs[step.Ref] {
			return fmt.Errorf("steps[%d]: unknown ref %q", i, step.Ref)
		}
		return nil
	}

	switch step.Op {
	case OpAddItem, OpAddCategory:
		if step.Ref == "" {
			return fmt.Errorf("steps[%d]: %s requires ref", i, step.Op)
		}
		if refs[step.Ref] {
			return fmt.Errorf("steps[%d]: ref %q already bound", i, step.Ref)
		}
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: %s requires name", i, step.Op)
		}
		refs[step.Ref] = true
	case OpUpdateQuantity:
		if step.Quantity == nil {
			return fmt.Errorf("steps[%d]: update_quantity requires quantity", i)
		}
		return needRef()
	case OpAdjustQuantity:
		if step.Delta == 0 {
			return fmt.Errorf("steps[%d]: adjust_quantity requires a non-zero delta", i)
		}
		return needRef()
	case OpReject:
		if step.Reason == "" {
			return fmt.Errorf("steps[%d]: reject requires reason", i)
		}
		return needRef()
	case OpUpdateItem, OpDeleteItem, OpAccept, OpRemoteEdit:
		return needRef()
	case OpGoOffline, OpGoOnline, OpSync, OpSyncRetry, OpReset:
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}
	return nil
}

func validateAssertion(i int, a Assertion, refs map[string]bool) error {
	switch a.Type {
	case AssertPending, AssertDelivered:
		if a.Count == nil && len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: %s requires count or actions", i, a.Type)
		}
	case AssertItems:
		if a.Count == nil && len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: %s requires count or names", i, a.Type)
		}
	case AssertItem, AssertRemoteItem:
		if !refs[a.Ref] {
			return fmt.Errorf("assertions[%d]: unknown ref %q", i, a.Ref)
		}
	case AssertActivity:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: activity requires actions", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
