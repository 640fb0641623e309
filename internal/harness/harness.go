package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/rulesets"
	"github.com/roach88/relcheck/internal/testutil"
)

// Harness runs scenarios with fixed run ids.
type Harness struct {
	opts analysis.Options
}

// New returns a harness evaluating with opts. The run id generator of
// opts is replaced per scenario; a nil logger discards engine logs.
func New(opts analysis.Options) *Harness {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{opts: opts}
}

// Run executes a scenario with default options.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New(analysis.Options{}).Run(ctx, scenario)
}

// Run builds the scenario's tree, runs its analyses in the listed order
// and evaluates its assertions.
//
// Each analysis gets a fresh evaluator run; the tree's interner is shared,
// so path ids and expression ids agree across reports. An error means the
// scenario could not be run at all; failed assertions are reported in the
// result instead.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	tree, err := BuildTree(scenario.Tree)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: build tree: %w", scenario.Name, err)
	}

	opts := h.opts
	opts.RunIDs = testutil.NewFixedRunIDGenerator(scenario.RunID)

	result := NewResult(scenario.Name)
	result.Description = scenario.Description
	result.Tree = tree
	for _, name := range scenario.Analyses {
		switch name {
		case rulesets.TypeInferenceName:
			rep, err := analysis.TypeCheck(ctx, tree.In, tree.Root, opts)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			result.Types = rep
		case rulesets.LinearityName:
			rep, err := analysis.CheckLinearity(ctx, tree.In, tree.Root, opts)
			if err != nil {
				return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			result.Linearity = rep
		default:
			return nil, fmt.Errorf("scenario %s: unknown analysis %q", scenario.Name, name)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}
