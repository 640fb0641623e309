package cli

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/harness"
	"github.com/roach88/relcheck/internal/report"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern on the file name)
	Quiet  bool   // summary lines only

	// ShowSource prints each tree before its reports.
	ShowSource bool
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name      string                    `json:"name"`
	Source    string                    `json:"source"`
	Pass      bool                      `json:"pass"`
	Errors    []string                  `json:"errors,omitempty"`
	Types     *report.TypeDocument      `json:"types,omitempty"`
	Linearity *report.LinearityDocument `json:"linearity,omitempty"`
}

// CheckResult holds the overall result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenario.yaml|dir>...",
		Short: "Run analyses on scenario trees",
		Long: `Build the expression tree of each scenario, run the analyses it names
and check its assertions.

When a file golden/<scenario>.golden exists next to a scenario, the
uncoloured text report must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad configuration, etc.)

Examples:
  relcheck check ./scenarios
  relcheck check ./scenarios --filter "linear*"
  relcheck check ./scenarios --update
  relcheck check let.yaml --backend sqlite --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := harness.Collect(args)
			if err != nil {
				return WrapExitError(ExitCommandError, "collect scenarios", err)
			}
			sources, err = filterSources(sources, opts.Filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "filter", err)
			}
			return runCheck(cmd, opts, sources)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only pass/fail lines and the summary")

	return cmd
}

// filterSources keeps the sources whose file name without extension
// matches pattern.
func filterSources(sources []harness.Source, pattern string) ([]harness.Source, error) {
	if pattern == "" {
		return sources, nil
	}
	var kept []harness.Source
	for _, src := range sources {
		base := filepath.Base(src.Path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			kept = append(kept, src)
		}
	}
	return kept, nil
}

// runCheck runs sources as a suite and prints every scenario in source
// order. Shared by check and demo.
func runCheck(cmd *cobra.Command, opts *CheckOptions, sources []harness.Source) error {
	w := cmd.OutOrStdout()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    w,
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if len(sources) == 0 {
		if opts.Format == "json" {
			return formatter.Success(CheckResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	aopts, err := opts.analysisOptions(cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	formatter.VerboseLog("Running %d scenario(s) on the %s backend", len(sources), aopts.Backend)

	suite, err := harness.New(aopts).RunSuite(cmd.Context(), sources)
	if err != nil {
		return WrapExitError(ExitCommandError, "run scenarios", err)
	}

	runs := make(map[string]*harness.Result, len(suite.Results))
	for _, r := range suite.Results {
		runs[r.Source] = r
	}
	failures := make(map[string]harness.SuiteFailure, len(suite.Failures))
	for _, f := range suite.Failures {
		failures[f.Source] = f
	}

	result := CheckResult{
		Scenarios: make([]ScenarioResult, 0, len(sources)),
		Total:     len(sources),
	}
	for _, src := range sources {
		var sr ScenarioResult
		if run, ok := runs[src.Path]; ok {
			sr, err = checkScenario(opts, w, src, run)
			if err != nil {
				return err
			}
		} else {
			f := failures[src.Path]
			sr = ScenarioResult{
				Name:   cmp.Or(f.Scenario, filepath.Base(src.Path)),
				Source: src.Path,
				Errors: []string{f.Error},
			}
		}

		if opts.Format != "json" {
			printScenarioLine(w, sr)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if result.Failed > 0 {
			msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
			if err := formatter.Failure(result, ErrCodeScenarioFailed, msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(result)
	}
	return outputCheckText(w, result)
}

// checkScenario renders, compares with the golden file and collects the
// outcome of one run.
func checkScenario(opts *CheckOptions, w io.Writer, src harness.Source, run *harness.Result) (ScenarioResult, error) {
	sr := ScenarioResult{
		Name:   run.Scenario,
		Source: src.Path,
		Pass:   run.Pass,
		Errors: run.Errors,
	}

	if opts.Format == "json" {
		if run.Types != nil {
			doc, err := report.TypeDocumentOf(run.Tree.In, run.Types)
			if err != nil {
				return sr, err
			}
			sr.Types = doc
		}
		if run.Linearity != nil {
			doc, err := report.LinearityDocumentOf(run.Tree.In, run.Linearity)
			if err != nil {
				return sr, err
			}
			sr.Linearity = doc
		}
	} else if !opts.Quiet {
		if opts.ShowSource {
			if err := printSource(w, run); err != nil {
				return sr, err
			}
		}
		out, err := harness.Render(run, opts.reportOptions(w)...)
		if err != nil {
			return sr, err
		}
		if _, err := w.Write(out); err != nil {
			return sr, err
		}
		fmt.Fprintln(w)
	}

	msg, err := compareGolden(opts, src, run)
	if err != nil {
		return sr, err
	}
	if msg != "" {
		sr.Pass = false
		sr.Errors = append(sr.Errors, msg)
	}
	return sr, nil
}

// compareGolden checks the uncoloured text report of run against the
// golden file of src, or rewrites it with --update. A scenario without a
// golden file is checked by its assertions only.
func compareGolden(opts *CheckOptions, src harness.Source, run *harness.Result) (string, error) {
	path, ok := goldenFilePath(src.Path)
	if !ok {
		return "", nil
	}
	current, err := harness.Render(run, report.WithColor(false))
	if err != nil {
		return "", err
	}

	if opts.Update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", WrapExitError(ExitCommandError, "failed to create golden directory", err)
		}
		if err := os.WriteFile(path, current, 0o644); err != nil {
			return "", WrapExitError(ExitCommandError, "failed to write golden file", err)
		}
		return "", nil
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read golden file", err)
	}
	if !bytes.Equal(golden, current) {
		return "report does not match golden file (run with --update to regenerate)", nil
	}
	return "", nil
}

// goldenFilePath returns the golden file of a scenario file. Built-in
// scenarios have none.
func goldenFilePath(scenarioFile string) (string, bool) {
	if strings.HasPrefix(scenarioFile, "builtin:") {
		return "", false
	}
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden"), true
}

// printSource writes the scenario header and its tree, one binding per
// line.
func printSource(w io.Writer, run *harness.Result) error {
	fmt.Fprintf(w, "== %s: %s\n\n", run.Scenario, run.Description)
	return report.PrintExpr(w, run.Tree.In, run.Tree.Root, false)
}

func printScenarioLine(w io.Writer, sr ScenarioResult) {
	if sr.Pass {
		fmt.Fprintf(w, "✓ %s\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
	}
}

// outputCheckText prints the summary and maps failures to exit code 1.
func outputCheckText(w io.Writer, result CheckResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Check Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
