package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/relcheck/internal/compiler"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/rulesets"
)

// LoadError represents an error that occurred while loading a rule set.
type LoadError struct {
	Code    string
	Message string
	Details any // compiler errors, when there are several
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadRuleSet returns a built-in rule set by name.
func LoadRuleSet(name string) (*ruleir.Program, error) {
	if _, ok := rulesets.Source(name); !ok {
		return nil, &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("unknown rule set %q (want one of %v)", name, rulesets.Names()),
		}
	}
	prog, err := rulesets.Load(name)
	if err != nil {
		return nil, convertCompileError(err, name)
	}
	return prog, nil
}

// LoadRuleFile compiles a CUE rule file against the built-in guards and
// constants.
func LoadRuleFile(path string) (*ruleir.Program, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rule file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error accessing rule file: %v", err)}
	}
	if info.IsDir() {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("not a file: %s", path)}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading rule file: %v", err)}
	}
	prog, err := compiler.Compile(src, filepath.Base(path), rulesets.Registry())
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return prog, nil
}

// convertCompileError converts a compiler error to a LoadError.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{Code: ErrCodeCompileFailed, Message: compileErr.Error()}
	}

	var validationErrs compiler.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &LoadError{
			Code:    ErrCodeInvalidRules,
			Message: fmt.Sprintf("%s: %d validation error(s)", context, len(validationErrs)),
			Details: []compiler.ValidationError(validationErrs),
		}
	}

	var cycleErr *compiler.NegationCycleError
	if errors.As(err, &cycleErr) {
		return &LoadError{
			Code:    ErrCodeNegationCycle,
			Message: cycleErr.Error(),
			Details: cycleErr.Cycle,
		}
	}

	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
