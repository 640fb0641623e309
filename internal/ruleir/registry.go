package ruleir

import (
	"fmt"
	"slices"

	"github.com/roach88/relcheck/internal/ir"
)

// GuardFunc is a pure host predicate. It returns ok=false to reject the
// candidate; otherwise out holds exactly one value per declared output.
type GuardFunc func(in []ir.Value) (out []ir.Value, ok bool)

// GuardSpec describes a guard available to rule sources.
type GuardSpec struct {
	Name string
	In   int
	Out  int
	Fn   GuardFunc
	Doc  string
}

// Registry binds the guard and constant names rule sources may use.
// A Registry is populated once and then only read.
type Registry struct {
	guards map[string]GuardSpec
	consts map[string]ir.Value
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		guards: make(map[string]GuardSpec),
		consts: make(map[string]ir.Value),
	}
}

// RegisterGuard adds a guard. Names must be unique.
func (r *Registry) RegisterGuard(spec GuardSpec) error {
	if spec.Fn == nil {
		return fmt.Errorf("guard %q: nil function", spec.Name)
	}
	if _, dup := r.guards[spec.Name]; dup {
		return fmt.Errorf("guard %q already registered", spec.Name)
	}
	r.guards[spec.Name] = spec
	return nil
}

// MustRegisterGuard is like RegisterGuard but panics on error.
func (r *Registry) MustRegisterGuard(spec GuardSpec) {
	if err := r.RegisterGuard(spec); err != nil {
		panic(err)
	}
}

// RegisterConst binds name to v. Constant names start with an upper-case
// letter in rule sources.
func (r *Registry) RegisterConst(name string, v ir.Value) {
	r.consts[name] = v
}

// Guard looks up a guard by name.
func (r *Registry) Guard(name string) (GuardSpec, bool) {
	g, ok := r.guards[name]
	return g, ok
}

// Const looks up a constant by name.
func (r *Registry) Const(name string) (ir.Value, bool) {
	v, ok := r.consts[name]
	return v, ok
}

// GuardNames returns the registered guard names, sorted.
func (r *Registry) GuardNames() []string {
	names := make([]string, 0, len(r.guards))
	for n := range r.guards {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
