// Package sqleval evaluates a compiled program on SQLite.
//
// It is a second, independent implementation of the engine's semantics,
// used to cross-check the native evaluator: every rule becomes one
// INSERT OR IGNORE ... SELECT statement and every stratum is iterated
// naively until no statement adds a row. Results are returned as an
// engine.Result, so both backends are interchangeable.
//
// Guards cannot run inside SQLite. Each single-input guard is instead
// materialised into a table of (input, outputs...) rows: every value the
// run knows is fed to every guard once, and guard outputs become known
// values in turn. The tables grow between rounds, so a guard that keeps
// inventing values trips the round limit exactly like the native engine.
package sqleval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/queryir"
	"github.com/roach88/relcheck/internal/querysql"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/store"
)

var dbSeq atomic.Uint64

// Evaluator runs one program on SQLite. Like engine.Engine it holds no
// per-run state.
type Evaluator struct {
	prog   *ruleir.Program
	decls  map[string]ruleir.RelationDecl
	strata []stratumSQL
	guards []guardSpec

	maxRounds int
	runIDs    engine.RunIDGenerator
	logger    *slog.Logger
}

type stratumSQL struct {
	index     int
	relations []string
	stmts     []statement
}

// statement is one compiled rule.
type statement struct {
	rule   string
	sql    string
	params []any
}

type guardSpec struct {
	name  string
	nout  int
	fn    ruleir.GuardFunc
	table string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithMaxRounds sets the maximum number of rounds per stratum.
//
// Default: engine.DefaultMaxRounds
func WithMaxRounds(n int) Option {
	return func(ev *Evaluator) {
		ev.maxRounds = n
	}
}

// WithRunIDGenerator sets the source of run ids. The run id also names
// the run's private database.
//
// Default: engine.UUIDv7Generator
func WithRunIDGenerator(g engine.RunIDGenerator) Option {
	return func(ev *Evaluator) {
		ev.runIDs = g
	}
}

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) {
		ev.logger = l
	}
}

// New compiles every rule of prog to SQL.
//
// Fails for programs outside what the backend supports: zero-arity
// relations and guards with other than one input.
func New(prog *ruleir.Program, opts ...Option) (*Evaluator, error) {
	if prog == nil {
		return nil, fmt.Errorf("sqleval: nil program")
	}
	ev := &Evaluator{
		prog:      prog,
		decls:     prog.Decls(),
		maxRounds: engine.DefaultMaxRounds,
		runIDs:    engine.UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(ev)
	}

	for _, d := range prog.Relations {
		if d.Arity == 0 {
			return nil, fmt.Errorf("sqleval: relation %s: zero arity not supported", d.Name)
		}
	}

	compiler := querysql.NewSQLCompiler()
	seen := make(map[string]bool)
	for _, s := range prog.Strata {
		ss := stratumSQL{index: s.Index, relations: s.Relations}
		for _, ri := range s.Rules {
			rule := prog.Rules[ri]
			ins, err := queryir.FromRule(rule, ev.decls)
			if err != nil {
				return nil, fmt.Errorf("sqleval: %w", err)
			}
			sql, params, err := compiler.Compile(ins)
			if err != nil {
				return nil, fmt.Errorf("sqleval: rule %s: %w", rule.ID, err)
			}
			ss.stmts = append(ss.stmts, statement{rule: rule.ID, sql: sql, params: params})

			for _, lit := range rule.Body {
				g, ok := lit.(ruleir.Guard)
				if !ok || seen[g.Name] {
					continue
				}
				seen[g.Name] = true
				ev.guards = append(ev.guards, guardSpec{
					name:  g.Name,
					nout:  len(g.Out),
					fn:    g.Fn,
					table: querysql.GuardTable(g.Name),
				})
			}
		}
		ev.strata = append(ev.strata, ss)
	}
	slices.SortFunc(ev.guards, func(a, b guardSpec) int {
		if a.name < b.name {
			return -1
		}
		if a.name > b.name {
			return 1
		}
		return 0
	})
	return ev, nil
}

// Run evaluates the program over facts in a fresh in-memory database.
// The semantics, errors and result shape match engine.Engine.Run; the
// derivation order inside a relation may differ.
func (ev *Evaluator) Run(ctx context.Context, facts engine.Facts) (*engine.Result, error) {
	runID := ev.runIDs.Generate()

	// Run ids may be fixed (tests, scenarios); the sequence keeps
	// concurrent runs on separate databases.
	st, err := store.Open(fmt.Sprintf("relcheck-%s-%d", runID, dbSeq.Add(1)))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	r := &run{ev: ev, st: st, dict: newDictionary(), id: runID}
	if err := r.setup(ctx, facts); err != nil {
		return nil, err
	}

	var stats engine.Stats
	for _, s := range ev.strata {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %s cancelled: %w", runID, err)
		}
		ss, err := r.runStratum(ctx, s)
		if err != nil {
			return nil, err
		}
		stats.Strata = append(stats.Strata, ss)
		stats.Rounds += ss.Rounds
		stats.Derived += ss.Derived
	}

	rows, err := r.readAll(ctx)
	if err != nil {
		return nil, err
	}

	ev.logger.Info("run complete",
		"run_id", runID,
		"program", ev.prog.Name,
		"backend", "sqlite",
		"strata", len(ev.strata),
		"rounds", stats.Rounds,
		"derived", stats.Derived)
	return engine.NewResult(runID, ev.prog.Relations, rows, stats), nil
}

// run is the state of one Run.
type run struct {
	ev   *Evaluator
	st   *store.Store
	dict *dictionary
	id   string
}

func (r *run) setup(ctx context.Context, facts engine.Facts) error {
	for _, d := range r.ev.prog.Relations {
		if err := r.st.CreateTable(ctx, querysql.RelationTable(d.Name), d.Arity); err != nil {
			return err
		}
	}
	for _, g := range r.ev.guards {
		if err := r.st.CreateTable(ctx, g.table, 1+g.nout); err != nil {
			return err
		}
	}

	// Constants can reach a head or a guard without ever being stored.
	for _, rule := range r.ev.prog.Rules {
		for _, v := range ruleConsts(rule) {
			r.dict.add(v)
		}
	}

	for _, name := range facts.Relations() {
		d, ok := r.ev.decls[name]
		if !ok {
			return fmt.Errorf("load facts: %w", &engine.RuntimeError{
				Code: engine.ErrCodeUnknownRelation, Message: "facts for undeclared relation", Relation: name,
			})
		}
		keys := make([][]string, 0, len(facts[name]))
		for _, row := range facts[name] {
			if len(row) != d.Arity {
				return fmt.Errorf("load facts: %w", &engine.RuntimeError{
					Code:     engine.ErrCodeArityMismatch,
					Message:  fmt.Sprintf("row %s has %d values, declared arity %d", row, len(row), d.Arity),
					Relation: name,
				})
			}
			k := make([]string, len(row))
			for i, v := range row {
				if v == nil {
					return fmt.Errorf("load facts: %w", &engine.RuntimeError{
						Code: engine.ErrCodeInvalidFact, Message: "row carries a nil value", Relation: name,
					})
				}
				k[i] = r.dict.add(v)
			}
			keys = append(keys, k)
		}
		if _, err := r.st.InsertRows(ctx, querysql.RelationTable(name), d.Arity, keys); err != nil {
			return fmt.Errorf("load facts: %w", err)
		}
	}
	return nil
}

// runStratum executes the stratum's statements until a round neither adds
// a row nor grows a guard table.
func (r *run) runStratum(ctx context.Context, s stratumSQL) (engine.StratumStats, error) {
	ss := engine.StratumStats{Index: s.index, Relations: s.relations}
	quota := engine.NewRoundQuota(s.index, r.ev.maxRounds)

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return ss, fmt.Errorf("run %s cancelled in stratum %d: %w", r.id, s.index, err)
		}
		if err := quota.Check(); err != nil {
			return ss, err
		}

		guardRows, err := r.materialize(ctx)
		if err != nil {
			return ss, err
		}

		var added int64
		for _, stmt := range s.stmts {
			n, err := r.st.Exec(ctx, stmt.sql, stmt.params...)
			if err != nil {
				return ss, fmt.Errorf("rule %s: %w", stmt.rule, err)
			}
			added += n
		}
		ss.Rounds = quota.Current()
		ss.Derived += int(added)

		r.ev.logger.Debug("round complete",
			"run_id", r.id,
			"backend", "sqlite",
			"stratum", s.index,
			"round", round,
			"new_facts", added,
			"guard_rows", guardRows)

		if added == 0 && guardRows == 0 {
			return ss, nil
		}
	}
}

// materialize feeds every value not yet seen by the guards to each guard
// and stores the accepted calls. Returns the number of guard rows added.
func (r *run) materialize(ctx context.Context) (int64, error) {
	pending := r.dict.take()
	if len(pending) == 0 || len(r.ev.guards) == 0 {
		return 0, nil
	}

	var total int64
	for _, g := range r.ev.guards {
		var rows [][]string
		for _, v := range pending {
			out, ok := g.fn([]ir.Value{v})
			if !ok {
				continue
			}
			if len(out) != g.nout {
				return 0, &engine.RuntimeError{
					Code:    engine.ErrCodeGuardContract,
					Message: fmt.Sprintf("guard %s returned %d values, want %d", g.name, len(out), g.nout),
				}
			}
			row := make([]string, 0, 1+len(out))
			row = append(row, v.Key())
			for i, o := range out {
				if o == nil {
					return 0, &engine.RuntimeError{
						Code:    engine.ErrCodeGuardContract,
						Message: fmt.Sprintf("guard %s returned nil output %d", g.name, i),
					}
				}
				row = append(row, r.dict.add(o))
			}
			rows = append(rows, row)
		}
		n, err := r.st.InsertRows(ctx, g.table, 1+g.nout, rows)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (r *run) readAll(ctx context.Context) (map[string][]ir.Row, error) {
	out := make(map[string][]ir.Row, len(r.ev.prog.Relations))
	for _, d := range r.ev.prog.Relations {
		keyRows, err := r.st.ReadRows(ctx, querysql.RelationTable(d.Name), d.Arity)
		if err != nil {
			return nil, err
		}
		rows := make([]ir.Row, 0, len(keyRows))
		for _, keys := range keyRows {
			row, err := r.dict.decode(keys)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", d.Name, err)
			}
			rows = append(rows, row)
		}
		out[d.Name] = rows
	}
	return out, nil
}

// ruleConsts returns the constant values a rule mentions, head first.
func ruleConsts(rule ruleir.Rule) []ir.Value {
	var out []ir.Value
	collect := func(ts ...ruleir.Term) {
		for _, t := range ts {
			if c, ok := t.(ruleir.Const); ok && c.Value != nil {
				out = append(out, c.Value)
			}
		}
	}
	collect(rule.Head.Args...)
	for _, lit := range rule.Body {
		switch l := lit.(type) {
		case ruleir.Positive:
			collect(l.Atom.Args...)
		case ruleir.Negated:
			collect(l.Atom.Args...)
		case ruleir.Guard:
			collect(l.In...)
			collect(l.Out...)
		case ruleir.Compare:
			collect(l.Left, l.Right)
		}
	}
	return out
}
