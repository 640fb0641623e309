package compiler

import (
	"errors"
	"fmt"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := cueerrors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// ValidationError represents a rule-set validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every validation error found in one rule set.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation error(s):\n  %s", len(es), strings.Join(msgs, "\n  "))
}

// HasCode reports whether any error carries code.
func (es ValidationErrors) HasCode(code string) bool {
	for _, e := range es {
		if e.Code == code {
			return true
		}
	}
	return false
}

// NegationCycleError is returned when a relation depends negatively on
// itself through recursion, so no stratification exists.
type NegationCycleError struct {
	// Cycle lists relations along the cycle; first and last are equal and
	// the first edge is the negated one.
	Cycle []string
	// Rule is the id of a rule contributing the negated edge.
	Rule string
}

func (e *NegationCycleError) Error() string {
	if len(e.Cycle) < 2 {
		return "negation cycle in rule " + e.Rule
	}
	var b strings.Builder
	b.WriteString(e.Cycle[0])
	b.WriteString(" -NOT-> ")
	b.WriteString(strings.Join(e.Cycle[1:], " -> "))
	return fmt.Sprintf("negation cycle (rule %s): %s", e.Rule, b.String())
}

// IsNegationCycle returns true if err is (or wraps) a NegationCycleError.
func IsNegationCycle(err error) bool {
	var ne *NegationCycleError
	return errors.As(err, &ne)
}

// IsValidation returns true if err is (or wraps) ValidationErrors.
func IsValidation(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}
