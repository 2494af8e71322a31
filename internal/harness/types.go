package harness

import "fmt"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one line per step, in execution order. It contains only
	// deterministic values so it can be compared against a golden file.
	Trace []string `json:"trace"`

	// Errors contains validation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a numbered trace line.
func (r *Result) AddTrace(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.Trace = append(r.Trace, fmt.Sprintf("[%02d] %s", len(r.Trace)+1, line))
}
