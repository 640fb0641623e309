package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/report"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	Strategy    string
	Backend     string
	MaxRounds   int
	Parallelism int
	Color       string // "auto" | "always" | "never"

	// Config is the effective configuration: defaults, then the config
	// file, then flags set on the command line. Filled before any
	// subcommand runs.
	Config Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidColors defines the allowed values of --color.
var ValidColors = []string{"auto", "always", "never"}

// NewRootCommand creates the root command for the relcheck CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "relcheck",
		Short: "relcheck - relational checks for expression trees",
		Long: `Static analyses over interned expression trees, written as stratified
Datalog rules: type inference and linear use of let-bound values.`,
		Version:       ir.EngineVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigPath, "config", "", "configuration file (default ./"+DefaultConfigFile+" when present)")
	flags.StringVar(&opts.Strategy, "strategy", string(engine.SemiNaive), "evaluation strategy (semi-naive|naive)")
	flags.StringVar(&opts.Backend, "backend", string(analysis.Native), "evaluation backend (native|sqlite)")
	flags.IntVar(&opts.MaxRounds, "max-rounds", engine.DefaultMaxRounds, "round quota per stratum")
	flags.IntVar(&opts.Parallelism, "parallelism", 1, "rules evaluated concurrently within a round")
	flags.StringVar(&opts.Color, "color", "auto", "colorize text output (auto|always|never)")

	// Add subcommands
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))

	return cmd
}

// resolve merges defaults, the config file and changed flags into
// opts.Config and validates the result.
func (opts *RootOptions) resolve(cmd *cobra.Command) error {
	cfg := DefaultConfig()

	path, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		path = DefaultConfigFile
	}
	loaded, err := LoadConfig(path)
	switch {
	case err == nil:
		cfg = loaded
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return WrapExitError(ExitCommandError, "load config", err)
	}

	flags := cmd.Flags()
	if flags.Changed("format") || cfg.Output.Format == "" {
		cfg.Output.Format = opts.Format
	}
	if flags.Changed("strategy") {
		cfg.Engine.Strategy = opts.Strategy
	}
	if flags.Changed("backend") {
		cfg.Engine.Backend = opts.Backend
	}
	if flags.Changed("max-rounds") {
		cfg.Engine.MaxRounds = opts.MaxRounds
	}
	if flags.Changed("parallelism") {
		cfg.Engine.Parallelism = opts.Parallelism
	}
	if flags.Changed("color") {
		cfg.Output.Color = opts.Color
	}

	if !slices.Contains(ValidFormats, cfg.Output.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", cfg.Output.Format, ValidFormats))
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	opts.Format = cfg.Output.Format
	opts.Config = cfg
	return nil
}

// logger returns the slog logger for engine diagnostics: Debug level with
// --verbose, warnings only otherwise.
func (opts *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// analysisOptions builds evaluation options from the effective config.
func (opts *RootOptions) analysisOptions(cmd *cobra.Command) (analysis.Options, error) {
	return opts.Config.Options(opts.logger(cmd.ErrOrStderr()))
}

// reportOptions selects format and colour for report.Renderer.
func (opts *RootOptions) reportOptions(w io.Writer) []report.Option {
	format := report.Text
	if opts.Format == "json" {
		format = report.JSON
	}
	return []report.Option{report.WithFormat(format), report.WithColor(useColor(opts.Config.Output.Color, w))}
}

// useColor decides colouring for w. auto colours terminals only.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
