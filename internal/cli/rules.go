package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/compiler"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/rulesets"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	File   string // compile this CUE file instead of a built-in rule set
	Source bool   // print the CUE source instead of the compiled program
}

// RuleSetInfo is the JSON form of a compiled rule set.
type RuleSetInfo struct {
	Name      string         `json:"name"`
	Relations []RelationInfo `json:"relations"`
	Strata    []StratumInfo  `json:"strata"`
}

// RelationInfo describes one declared relation.
type RelationInfo struct {
	Name    string   `json:"name"`
	Arity   int      `json:"arity"`
	Input   bool     `json:"input"`
	Columns []string `json:"columns,omitempty"`
}

// StratumInfo lists the relations and rules of one stratum.
type StratumInfo struct {
	Index     int      `json:"index"`
	Relations []string `json:"relations"`
	Rules     []string `json:"rules"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:       "rules [typeinfer|linearity]...",
		Short:     "Print compiled rule sets",
		ValidArgs: rulesets.Names(),
		Long: `Print the built-in rule sets in Datalog notation, grouped by stratum.
Without arguments every built-in rule set is printed.

With --file, a CUE rule file is compiled against the built-in guards and
constants instead; compile errors are reported with their codes.

Examples:
  relcheck rules linearity
  relcheck rules typeinfer --source
  relcheck rules --file ./myrules.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "compile a CUE rule file")
	cmd.Flags().BoolVar(&opts.Source, "source", false, "print the CUE source of built-in rule sets")

	return cmd
}

func runRules(opts *RulesOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.File != "" && (len(args) > 0 || opts.Source) {
		return NewExitError(ExitCommandError, "--file cannot be combined with rule set names or --source")
	}

	var progs []*ruleir.Program
	if opts.File != "" {
		formatter.VerboseLog("Compiling %s", opts.File)
		prog, err := LoadRuleFile(opts.File)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		progs = append(progs, prog)
	} else {
		names := args
		if len(names) == 0 {
			names = rulesets.Names()
		}
		if opts.Source {
			return outputSources(formatter, names)
		}
		for _, name := range names {
			prog, err := LoadRuleSet(name)
			if err != nil {
				return outputLoadError(formatter, err)
			}
			progs = append(progs, prog)
		}
	}

	if opts.Format == "json" {
		infos := make([]RuleSetInfo, len(progs))
		for i, p := range progs {
			infos[i] = ruleSetInfo(p)
		}
		return formatter.Success(infos)
	}

	w := cmd.OutOrStdout()
	for i, p := range progs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := io.WriteString(w, p.String()); err != nil {
			return err
		}
	}
	return nil
}

func outputSources(formatter *OutputFormatter, names []string) error {
	sources := make(map[string]string, len(names))
	for i, name := range names {
		src, ok := rulesets.Source(name)
		if !ok {
			return outputLoadError(formatter, &LoadError{
				Code:    ErrCodeNotFound,
				Message: fmt.Sprintf("unknown rule set %q (want one of %v)", name, rulesets.Names()),
			})
		}
		if formatter.Format == "json" {
			sources[name] = string(src)
			continue
		}
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		if _, err := formatter.Writer.Write(src); err != nil {
			return err
		}
	}
	if formatter.Format == "json" {
		return formatter.Success(sources)
	}
	return nil
}

// outputLoadError reports a load failure and returns exit code 2.
// Validation errors are listed one per line in text mode.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	if err := formatter.Error(loadErr.Code, loadErr.Message, loadErr.Details); err != nil {
		return err
	}
	if formatter.Format != "json" {
		if verrs, ok := loadErr.Details.([]compiler.ValidationError); ok {
			for _, v := range verrs {
				fmt.Fprintf(formatter.Writer, "  %s\n", v.Error())
			}
		}
	}
	return WrapExitError(ExitCommandError, "load rule set", loadErr)
}

func ruleSetInfo(p *ruleir.Program) RuleSetInfo {
	info := RuleSetInfo{
		Name:      p.Name,
		Relations: make([]RelationInfo, len(p.Relations)),
		Strata:    make([]StratumInfo, len(p.Strata)),
	}
	for i, d := range p.Relations {
		info.Relations[i] = RelationInfo{Name: d.Name, Arity: d.Arity, Input: d.Input, Columns: d.Columns}
	}
	for i, s := range p.Strata {
		rules := make([]string, len(s.Rules))
		for j, r := range s.Rules {
			rules[j] = p.Rules[r].String()
		}
		info.Strata[i] = StratumInfo{Index: s.Index, Relations: s.Relations, Rules: rules}
	}
	return info
}
