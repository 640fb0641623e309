package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/sqleval"
)

// Backend selects the evaluator an analysis runs on.
type Backend string

const (
	// Native is the in-process semi-naive engine.
	Native Backend = "native"
	// SQLite evaluates the rules as SQL on a private in-memory database.
	SQLite Backend = "sqlite"
)

// ParseBackend maps a backend name to a Backend. The empty string selects
// Native.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", Native:
		return Native, nil
	case SQLite:
		return SQLite, nil
	}
	return "", fmt.Errorf("unknown backend %q (want %q or %q)", s, Native, SQLite)
}

// Options configure an analysis run. The zero value runs the native engine
// with its defaults.
type Options struct {
	Backend     Backend
	Strategy    engine.Strategy
	MaxRounds   int
	Parallelism int
	RunIDs      engine.RunIDGenerator
	Logger      *slog.Logger
}

// runner is the part of an evaluator an analysis needs.
type runner interface {
	Run(ctx context.Context, facts engine.Facts) (*engine.Result, error)
}

func (o Options) runner(prog *ruleir.Program) (runner, error) {
	backend, err := ParseBackend(string(o.Backend))
	if err != nil {
		return nil, err
	}

	if backend == SQLite {
		var opts []sqleval.Option
		if o.MaxRounds > 0 {
			opts = append(opts, sqleval.WithMaxRounds(o.MaxRounds))
		}
		if o.RunIDs != nil {
			opts = append(opts, sqleval.WithRunIDGenerator(o.RunIDs))
		}
		if o.Logger != nil {
			opts = append(opts, sqleval.WithLogger(o.Logger))
		}
		return sqleval.New(prog, opts...)
	}

	opts := []engine.EngineOption{engine.WithParallelism(o.Parallelism)}
	if o.Strategy != "" {
		opts = append(opts, engine.WithStrategy(o.Strategy))
	}
	if o.MaxRounds > 0 {
		opts = append(opts, engine.WithMaxRounds(o.MaxRounds))
	}
	if o.RunIDs != nil {
		opts = append(opts, engine.WithRunIDGenerator(o.RunIDs))
	}
	if o.Logger != nil {
		opts = append(opts, engine.WithLogger(o.Logger))
	}
	return engine.New(prog, opts...)
}
