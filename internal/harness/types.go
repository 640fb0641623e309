package harness

import (
	"github.com/roach88/relcheck/internal/analysis"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Description is copied from the scenario.
	Description string `json:"description,omitempty"`

	// Source is where the scenario was read from, when run as part of a
	// suite.
	Source string `json:"source,omitempty"`

	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors holds one message per failed assertion.
	// Empty if Pass is true.
	Errors []string `json:"errors"`

	// Tree is the tree the analyses ran on.
	Tree *Tree `json:"-"`

	// Types and Linearity are set for the analyses the scenario names.
	Types     *analysis.TypeReport      `json:"-"`
	Linearity *analysis.LinearityReport `json:"-"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{
		Scenario: name,
		Pass:     true,
		Errors:   []string{},
	}
}

// AddError records a failed assertion and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
