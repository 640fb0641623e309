package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/rulesets"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result's reports
// and returns one message per failure. Assertions on an analysis the
// scenario did not run fail.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertOK:
		return assertOK(r, a)
	case AssertTypeOf, AssertUntyped, AssertBound:
		if r.Types == nil {
			return fmt.Errorf("%s needs the %s analysis", a.Type, rulesets.TypeInferenceName)
		}
	case AssertDoubleUse, AssertAncestorUsed, AssertViolation:
		if r.Linearity == nil {
			return fmt.Errorf("%s needs the %s analysis", a.Type, rulesets.LinearityName)
		}
	}

	switch a.Type {
	case AssertTypeOf:
		return assertTypeOf(r, a)
	case AssertUntyped:
		return assertUntyped(r, a)
	case AssertBound:
		return assertBound(r, a)
	case AssertDoubleUse:
		return assertDoubleUse(r, a)
	case AssertAncestorUsed:
		return assertAncestorUsed(r, a)
	case AssertViolation:
		return assertViolation(r, a)
	case AssertCount:
		return assertCount(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertOK(r *Result, a Assertion) error {
	var ok bool
	var actual string
	switch a.Analysis {
	case rulesets.TypeInferenceName:
		if r.Types == nil {
			return fmt.Errorf("ok needs the %s analysis", a.Analysis)
		}
		ok = r.Types.OK()
		actual = fmt.Sprintf("%d expressions without a type", len(r.Types.Errors))
	case rulesets.LinearityName:
		if r.Linearity == nil {
			return fmt.Errorf("ok needs the %s analysis", a.Analysis)
		}
		ok = r.Linearity.OK()
		actual = fmt.Sprintf("%d violations", len(r.Linearity.Violations))
	default:
		return fmt.Errorf("unknown analysis %q", a.Analysis)
	}
	if ok {
		return nil
	}
	return &AssertionError{Type: AssertOK, Expected: a.Analysis + " reports no errors", Actual: actual}
}

func assertTypeOf(r *Result, a Assertion) error {
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	want, ok := ir.ParseTypeKind(a.TypeName)
	if !ok {
		return fmt.Errorf("unknown type %q", a.TypeName)
	}
	got := r.Types.TypesOf(e)
	if slices.Contains(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTypeOf,
		Expected: fmt.Sprintf("%s (%s) : %s", a.Expr, e, want),
		Actual:   fmt.Sprintf("types %v", got),
	}
}

func assertUntyped(r *Result, a Assertion) error {
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	if slices.Contains(r.Types.Errors, e) {
		return nil
	}
	return &AssertionError{
		Type:     AssertUntyped,
		Expected: fmt.Sprintf("TypeError(%s)", a.Expr),
		Actual:   fmt.Sprintf("types %v", r.Types.TypesOf(e)),
	}
}

func assertBound(r *Result, a Assertion) error {
	x, err := r.Tree.name(a.Name)
	if err != nil {
		return err
	}
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	if slices.Contains(r.Types.Bindings, analysis.Binding{Name: x, Value: e}) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBound,
		Expected: fmt.Sprintf("Bind(%s, %s)", a.Name, a.Expr),
		Actual:   fmt.Sprintf("%d bindings, none matching", len(r.Types.Bindings)),
	}
}

func assertDoubleUse(r *Result, a Assertion) error {
	p, err := r.Tree.Path(a.Path)
	if err != nil {
		return err
	}
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	var other ir.ExprID
	if a.Other != "" {
		if other, err = r.Tree.node(a.Other); err != nil {
			return err
		}
	}
	for _, d := range r.Linearity.DoubleUse {
		if d.Path == p && d.Expr == e && (other == 0 || d.Other == other) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertDoubleUse,
		Expected: fmt.Sprintf("DoubleUse(%s, %s, %s)", a.Path, a.Expr, orAny(a.Other)),
		Actual:   fmt.Sprintf("%d double uses, none matching", len(r.Linearity.DoubleUse)),
	}
}

func assertAncestorUsed(r *Result, a Assertion) error {
	p, err := r.Tree.Path(a.Ancestor)
	if err != nil {
		return err
	}
	q, err := r.Tree.Path(a.Descendant)
	if err != nil {
		return err
	}
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	want := analysis.AncestorUse{Ancestor: p, Descendant: q, Expr: e}
	if slices.Contains(r.Linearity.AncestorUsed, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertAncestorUsed,
		Expected: fmt.Sprintf("AncestorUsed(%s, %s, %s)", a.Ancestor, a.Descendant, a.Expr),
		Actual:   fmt.Sprintf("%d ancestor uses, none matching", len(r.Linearity.AncestorUsed)),
	}
}

func assertViolation(r *Result, a Assertion) error {
	p, err := r.Tree.Path(a.Path)
	if err != nil {
		return err
	}
	e, err := r.Tree.node(a.Expr)
	if err != nil {
		return err
	}
	if slices.Contains(r.Linearity.Violations, analysis.Violation{Path: p, Expr: e}) {
		return nil
	}
	return &AssertionError{
		Type:     AssertViolation,
		Expected: fmt.Sprintf("Violation(%s, %s)", a.Path, a.Expr),
		Actual:   fmt.Sprintf("%d violations, none matching", len(r.Linearity.Violations)),
	}
}

func assertCount(r *Result, a Assertion) error {
	counts := relationCounts(r)
	got, ok := counts[a.Relation]
	if !ok {
		return fmt.Errorf("relation %s is not reported by the analyses run", a.Relation)
	}
	if got == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d rows in %s", *a.Count, a.Relation),
		Actual:   fmt.Sprintf("%d rows", got),
	}
}

// relationCounts returns the row count of every relation the result's
// reports carry.
func relationCounts(r *Result) map[string]int {
	counts := make(map[string]int)
	if t := r.Types; t != nil {
		counts["TypeOf"] = len(t.Typings)
		counts["TypeError"] = len(t.Errors)
		counts["Bind"] = len(t.Bindings)
	}
	if l := r.Linearity; l != nil {
		counts["Origin"] = len(l.Origins)
		counts["Ancestor"] = len(l.Ancestors)
		counts["AncestorUsed"] = len(l.AncestorUsed)
		counts["DoubleUse"] = len(l.DoubleUse)
		counts["Violation"] = len(l.Violations)
		if l.Base != nil {
			counts["Root"] = len(l.Base.Roots)
			counts["Parent"] = len(l.Base.Parents)
			counts["Used"] = len(l.Base.Uses)
		}
	}
	return counts
}

func orAny(label string) string {
	if label == "" {
		return "_"
	}
	return label
}
