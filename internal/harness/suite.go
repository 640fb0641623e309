package harness

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

//go:embed scenarios/*.yaml
var builtin embed.FS

// SuiteResult summarises a batch of scenarios.
type SuiteResult struct {
	Total    int            `json:"total"`
	Passed   int            `json:"passed"`
	Failed   int            `json:"failed"`
	Failures []SuiteFailure `json:"failures,omitempty"`
	Results  []*Result      `json:"results"`
}

// SuiteFailure is a scenario that failed to load, run or pass.
type SuiteFailure struct {
	Scenario string `json:"scenario"`
	Source   string `json:"source"`
	Error    string `json:"error"`
}

// Source is a scenario document and where it came from.
type Source struct {
	Path string
	Data []byte
}

// Builtin returns the scenarios shipped with the binary, sorted by file
// name.
func Builtin() ([]Source, error) {
	entries, err := fs.ReadDir(builtin, "scenarios")
	if err != nil {
		return nil, err
	}
	var out []Source
	for _, e := range entries {
		data, err := fs.ReadFile(builtin, "scenarios/"+e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, Source{Path: "builtin:" + e.Name(), Data: data})
	}
	return out, nil
}

// Collect reads scenario files. A directory contributes its *.yaml and
// *.yml files in name order.
func Collect(paths []string) ([]Source, error) {
	var out []Source
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path: %w", err)
		}
		files := []string{p}
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, err
			}
			files = files[:0]
			for _, e := range entries {
				ext := strings.ToLower(filepath.Ext(e.Name()))
				if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
					files = append(files, filepath.Join(p, e.Name()))
				}
			}
			slices.Sort(files)
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read scenario file: %w", err)
			}
			out = append(out, Source{Path: f, Data: data})
		}
	}
	return out, nil
}

// RunSuite parses and runs every source. Load and run failures are
// recorded as failed scenarios; only context cancellation aborts the
// suite.
func (h *Harness) RunSuite(ctx context.Context, sources []Source) (*SuiteResult, error) {
	result := &SuiteResult{Results: []*Result{}}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Total++

		scenario, err := ParseScenario(src.Data)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Source: src.Path,
				Error:  fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		run, err := h.Run(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Scenario: scenario.Name,
				Source:   src.Path,
				Error:    fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}
		run.Source = src.Path
		result.Results = append(result.Results, run)

		if !run.Pass {
			result.Failed++
			result.Failures = append(result.Failures, SuiteFailure{
				Scenario: scenario.Name,
				Source:   src.Path,
				Error:    fmt.Sprintf("scenario assertions failed: %v", run.Errors),
			})
			continue
		}
		result.Passed++
	}
	return result, nil
}
