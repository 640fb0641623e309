package cli

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/harness"
)

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts, ShowSource: true}

	cmd := &cobra.Command{
		Use:   "demo [scenario...]",
		Short: "Run the built-in scenarios",
		Long: `Run the scenarios shipped with relcheck and print each tree with its
reports. Without arguments every built-in scenario runs.

Examples:
  relcheck demo
  relcheck demo scenario_c scenario_d
  relcheck demo --backend sqlite`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := builtinSources(args)
			if err != nil {
				return err
			}
			return runCheck(cmd, opts, sources)
		},
	}

	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "print only pass/fail lines and the summary")

	return cmd
}

// builtinSources returns the built-in scenarios named by names, or all of
// them.
func builtinSources(names []string) ([]harness.Source, error) {
	all, err := harness.Builtin()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read built-in scenarios", err)
	}
	if len(names) == 0 {
		return all, nil
	}

	available := make([]string, len(all))
	for i, src := range all {
		available[i] = scenarioName(src)
	}
	var out []harness.Source
	for _, name := range names {
		i := slices.Index(available, name)
		if i < 0 {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("unknown built-in scenario %q (available: %s)", name, strings.Join(available, ", ")))
		}
		out = append(out, all[i])
	}
	return out, nil
}

func scenarioName(src harness.Source) string {
	base := path.Base(strings.TrimPrefix(src.Path, "builtin:"))
	return strings.TrimSuffix(base, path.Ext(base))
}
