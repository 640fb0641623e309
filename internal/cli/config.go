package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/roach88/relcheck/internal/analysis"
	"github.com/roach88/relcheck/internal/engine"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. A missing default file is not an error.
const DefaultConfigFile = "relcheck.toml"

// Config is the relcheck.toml document.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	Output OutputConfig `toml:"output"`
}

// EngineConfig selects and tunes the evaluator.
type EngineConfig struct {
	Strategy    string `toml:"strategy"`
	MaxRounds   int    `toml:"max_rounds"`
	Parallelism int    `toml:"parallelism"`
	Backend     string `toml:"backend"`
}

// OutputConfig controls rendering.
type OutputConfig struct {
	Format string `toml:"format"`
	Color  string `toml:"color"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Engine: EngineConfig{
			Strategy:    string(engine.SemiNaive),
			MaxRounds:   engine.DefaultMaxRounds,
			Parallelism: 1,
			Backend:     string(analysis.Native),
		},
		Output: OutputConfig{
			Format: "text",
			Color:  "auto",
		},
	}
}

// LoadConfig reads a TOML configuration file. Keys missing from the file
// keep their defaults; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks every value against its allowed set.
func (c Config) Validate() error {
	if _, err := engine.ParseStrategy(c.Engine.Strategy); err != nil {
		return fmt.Errorf("engine.strategy: %w", err)
	}
	if _, err := analysis.ParseBackend(c.Engine.Backend); err != nil {
		return fmt.Errorf("engine.backend: %w", err)
	}
	if c.Engine.MaxRounds < 1 {
		return fmt.Errorf("engine.max_rounds: must be positive, got %d", c.Engine.MaxRounds)
	}
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism: must be positive, got %d", c.Engine.Parallelism)
	}
	if !slices.Contains(ValidFormats, c.Output.Format) {
		return fmt.Errorf("output.format: must be one of %v, got %q", ValidFormats, c.Output.Format)
	}
	if !slices.Contains(ValidColors, c.Output.Color) {
		return fmt.Errorf("output.color: must be one of %v, got %q", ValidColors, c.Output.Color)
	}
	return nil
}

// Options converts the engine section to analysis options.
func (c Config) Options(logger *slog.Logger) (analysis.Options, error) {
	strategy, err := engine.ParseStrategy(c.Engine.Strategy)
	if err != nil {
		return analysis.Options{}, err
	}
	backend, err := analysis.ParseBackend(c.Engine.Backend)
	if err != nil {
		return analysis.Options{}, err
	}
	return analysis.Options{
		Backend:     backend,
		Strategy:    strategy,
		MaxRounds:   c.Engine.MaxRounds,
		Parallelism: c.Engine.Parallelism,
		Logger:      logger,
	}, nil
}
