package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relcheck/internal/rulesets"
)

// Scenario describes one tree, the analyses to run on it and what they
// must report.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Analyses lists the rule sets to run: typeinfer, linearity or both.
	Analyses []string `yaml:"analyses"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Tree is the expression tree under analysis.
	Tree TreeSpec `yaml:"tree"`

	// Assertions are checked against the reports. A scenario without
	// assertions only checks that the analyses run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TreeSpec lists the names and nodes of a tree.
type TreeSpec struct {
	Names []string   `yaml:"names,omitempty"`
	Nodes []NodeSpec `yaml:"nodes"`
	Root  string     `yaml:"root"`
}

// NodeSpec is one expression node. Exactly one variant field is set.
type NodeSpec struct {
	Label string `yaml:"label"`

	Let     *LetSpec     `yaml:"let,omitempty"`
	Var     string       `yaml:"var,omitempty"`
	Tuple   []string     `yaml:"tuple,omitempty"`
	Project *ProjectSpec `yaml:"project,omitempty"`
	I32     *int32       `yaml:"i32,omitempty"`
	U32     *uint32      `yaml:"u32,omitempty"`
	Str     *string      `yaml:"str,omitempty"`
	Add     *BinarySpec  `yaml:"add,omitempty"`
	Equ     *BinarySpec  `yaml:"equ,omitempty"`
}

// LetSpec is `let Name = Value in Body`; Value and Body are node labels.
type LetSpec struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
	Body  string `yaml:"body"`
}

// ProjectSpec is field Index of node Of.
type ProjectSpec struct {
	Of    string `yaml:"of"`
	Index uint32 `yaml:"index"`
}

// BinarySpec holds the operand labels of Add and Equ.
type BinarySpec struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// variants counts the variant fields set on n.
func (n NodeSpec) variants() int {
	count := 0
	for _, set := range []bool{
		n.Let != nil, n.Var != "", n.Tuple != nil, n.Project != nil,
		n.I32 != nil, n.U32 != nil, n.Str != nil, n.Add != nil, n.Equ != nil,
	} {
		if set {
			count++
		}
	}
	return count
}

// Assertion checks one property of the reports.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	// Analysis names the rule set checked by ok.
	Analysis string `yaml:"analysis,omitempty"`

	// Expr, Other: node labels.
	Expr  string `yaml:"expr,omitempty"`
	Other string `yaml:"other,omitempty"`

	// TypeName is the expected type of type_of: i32, u32 or bool.
	TypeName string `yaml:"type_name,omitempty"`

	// Name is a binder name (used by bound).
	Name string `yaml:"name,omitempty"`

	// Path, Ancestor, Descendant: paths such as a.0.1.
	Path       string `yaml:"path,omitempty"`
	Ancestor   string `yaml:"ancestor,omitempty"`
	Descendant string `yaml:"descendant,omitempty"`

	// Relation and Count are used by count.
	Relation string `yaml:"relation,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOK           = "ok"
	AssertTypeOf       = "type_of"
	AssertUntyped      = "untyped"
	AssertBound        = "bound"
	AssertDoubleUse    = "double_use"
	AssertAncestorUsed = "ancestor_used"
	AssertViolation    = "violation"
	AssertCount        = "count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
// Label references are resolved later, when the tree is built.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Analyses) == 0 {
		return fmt.Errorf("analyses list is required and must be non-empty")
	}
	for i, a := range s.Analyses {
		if !slices.Contains(rulesets.Names(), a) {
			return fmt.Errorf("analyses[%d]: unknown analysis %q (want one of %v)", i, a, rulesets.Names())
		}
	}

	if len(s.Tree.Nodes) == 0 {
		return fmt.Errorf("tree.nodes is required and must be non-empty")
	}
	if s.Tree.Root == "" {
		return fmt.Errorf("tree.root is required")
	}
	for i, n := range s.Tree.Nodes {
		if n.Label == "" {
			return fmt.Errorf("tree.nodes[%d]: label is required", i)
		}
		if v := n.variants(); v != 1 {
			return fmt.Errorf("tree.nodes[%d] (%s): exactly one node kind must be set, found %d", i, n.Label, v)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	need := func(field, value string) error {
		if value == "" {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, field, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertOK:
		if !slices.Contains(rulesets.Names(), a.Analysis) {
			return fmt.Errorf("assertions[%d]: analysis must be one of %v", index, rulesets.Names())
		}
	case AssertTypeOf:
		if err := need("expr", a.Expr); err != nil {
			return err
		}
		return need("type_name", a.TypeName)
	case AssertUntyped:
		return need("expr", a.Expr)
	case AssertBound:
		if err := need("name", a.Name); err != nil {
			return err
		}
		return need("expr", a.Expr)
	case AssertDoubleUse, AssertViolation:
		if err := need("path", a.Path); err != nil {
			return err
		}
		return need("expr", a.Expr)
	case AssertAncestorUsed:
		if err := need("ancestor", a.Ancestor); err != nil {
			return err
		}
		if err := need("descendant", a.Descendant); err != nil {
			return err
		}
		return need("expr", a.Expr)
	case AssertCount:
		if err := need("relation", a.Relation); err != nil {
			return err
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be set and non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
