package compiler

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ruleir"
)

// validateProgram checks program-wide constraints and then every rule.
// Returns all errors found (does not fail fast).
func validateProgram(prog *ruleir.Program, lines map[string]int) []ValidationError {
	var errs []ValidationError

	seenRel := make(map[string]bool)
	for i, d := range prog.Relations {
		if seenRel[d.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("relations[%d]", i),
				Message: fmt.Sprintf("duplicate relation name: %q", d.Name),
				Code:    ruleir.ErrDuplicateName,
			})
		}
		seenRel[d.Name] = true
	}

	decls := prog.Decls()
	seenRule := make(map[string]bool)
	for i, r := range prog.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if r.ID != "" {
			field = "rules." + r.ID
		}
		if r.ID == "" || seenRule[r.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("rule id %q is empty or duplicated", r.ID),
				Code:    ruleir.ErrDuplicateName,
				Line:    lines[r.ID],
			})
		}
		seenRule[r.ID] = true

		for _, issue := range ruleir.Validate(r, decls) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: issue.Message,
				Code:    issue.Code,
				Line:    lines[r.ID],
			})
		}
	}
	return errs
}
