package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while preparing or running a
// program.
//
// Runtime errors include:
//   - Invalid program: a rule the planner cannot execute
//   - Unknown relation: input facts for an undeclared relation
//   - Arity mismatch: an input row of the wrong width
//   - Guard contract: a guard returned the wrong number of outputs
//
// Round-limit trips are reported separately as *RoundLimitError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Relation names the affected relation, if any.
	Relation string

	// Rule names the affected rule, if any.
	Rule string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidProgram indicates the program cannot be planned.
	ErrCodeInvalidProgram RuntimeErrorCode = "INVALID_PROGRAM"

	// ErrCodeUnknownRelation indicates facts for an undeclared relation.
	ErrCodeUnknownRelation RuntimeErrorCode = "UNKNOWN_RELATION"

	// ErrCodeArityMismatch indicates a row of the wrong width.
	ErrCodeArityMismatch RuntimeErrorCode = "ARITY_MISMATCH"

	// ErrCodeInvalidFact indicates a row carrying a nil value.
	ErrCodeInvalidFact RuntimeErrorCode = "INVALID_FACT"

	// ErrCodeGuardContract indicates a guard broke its declared shape.
	ErrCodeGuardContract RuntimeErrorCode = "GUARD_CONTRACT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Rule != "":
		return fmt.Sprintf("%s: %s (rule=%s)", e.Code, e.Message, e.Rule)
	case e.Relation != "":
		return fmt.Sprintf("%s: %s (relation=%s)", e.Code, e.Message, e.Relation)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRuntimeError reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRuntimeError(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsRoundLimit reports whether err is a round-limit trip.
// Uses errors.As to handle wrapped errors.
func IsRoundLimit(err error) bool {
	var rl *RoundLimitError
	return errors.As(err, &rl)
}

func invalidProgram(rule, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeInvalidProgram, Message: fmt.Sprintf(format, args...), Rule: rule}
}
