package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relcheck/internal/report"
)

// Render writes the reports of a result in the order the analyses ran,
// separated by a blank line.
func Render(result *Result, opts ...report.Option) ([]byte, error) {
	var buf bytes.Buffer
	r := report.New(&buf, result.Tree.In, opts...)
	if result.Types != nil {
		if err := r.Types(result.Types); err != nil {
			return nil, err
		}
	}
	if result.Linearity != nil {
		if result.Types != nil {
			buf.WriteByte('\n')
		}
		if err := r.Linearity(result.Linearity); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its uncoloured text
// reports against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, h *Harness, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	out, err := Render(result, report.WithColor(false))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, out)
	return result, nil
}
