package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

// Strategy selects how rounds after the first one are evaluated.
type Strategy string

const (
	// SemiNaive re-evaluates rules only against the previous round's delta.
	SemiNaive Strategy = "semi-naive"

	// Naive re-evaluates every rule over the full snapshot each round.
	// It is the reference the semi-naive strategy is tested against.
	Naive Strategy = "naive"
)

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case SemiNaive, Naive:
		return Strategy(s), nil
	case "":
		return SemiNaive, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, SemiNaive, Naive)
}

// Engine evaluates one compiled program. An Engine holds no per-run state:
// Run may be called any number of times, also concurrently.
//
// INVARIANTS:
//   - rule plans are built once in New and never change
//   - strata are evaluated in program order
//   - per-round buffers are merged in rule declaration order
type Engine struct {
	prog     *ruleir.Program
	relIndex map[string]int
	masks    map[int]map[colMask]struct{}
	strata   []stratumPlan

	strategy    Strategy
	maxRounds   int
	parallelism int
	runIDs      RunIDGenerator
	logger      *slog.Logger
}

// stratumPlan is a stratum with its rules planned.
type stratumPlan struct {
	index     int
	relations []string
	rules     []*rulePlan
	// recursive[i] lists the positive atom steps of rules[i] that read a
	// relation of this stratum.
	recursive [][]int
}

func (sp stratumPlan) isRecursive() bool {
	for _, r := range sp.recursive {
		if len(r) > 0 {
			return true
		}
	}
	return false
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithStrategy selects the evaluation strategy.
//
// Default: SemiNaive
func WithStrategy(s Strategy) EngineOption {
	return func(e *Engine) {
		e.strategy = s
	}
}

// WithMaxRounds sets the maximum number of rounds per stratum.
//
// Default: 10000 rounds (DefaultMaxRounds)
// Use WithMaxRounds(3) in tests of the round limit.
func WithMaxRounds(n int) EngineOption {
	return func(e *Engine) {
		e.maxRounds = n
	}
}

// WithParallelism evaluates up to n rules of a round concurrently.
// Values below 2 keep evaluation on the calling goroutine. Results are
// identical either way.
func WithParallelism(n int) EngineOption {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// WithRunIDGenerator sets the source of run ids.
//
// Default: UUIDv7Generator
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New plans every rule of prog and returns an Engine ready to run.
//
// prog must be stratified (as produced by compiler.Compile). New fails
// with an ErrCodeInvalidProgram RuntimeError when a rule cannot be planned
// or a stratum reads a negated relation it has not completed yet.
func New(prog *ruleir.Program, opts ...EngineOption) (*Engine, error) {
	if prog == nil {
		return nil, invalidProgram("", "nil program")
	}
	e := &Engine{
		prog:        prog,
		relIndex:    make(map[string]int, len(prog.Relations)),
		masks:       make(map[int]map[colMask]struct{}),
		strategy:    SemiNaive,
		maxRounds:   DefaultMaxRounds,
		parallelism: 1,
		runIDs:      UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if _, err := ParseStrategy(string(e.strategy)); err != nil {
		return nil, err
	}

	for i, d := range prog.Relations {
		if _, dup := e.relIndex[d.Name]; dup {
			return nil, invalidProgram("", "relation %s declared twice", d.Name)
		}
		if d.Arity < 0 || d.Arity > maxArity {
			return nil, invalidProgram("", "relation %s: arity %d out of range 0..%d", d.Name, d.Arity, maxArity)
		}
		e.relIndex[d.Name] = i
	}

	if err := e.planStrata(); err != nil {
		return nil, err
	}
	return e, nil
}

// MustNew is like New but panics on error.
// Use only with programs embedded in the binary.
func MustNew(prog *ruleir.Program, opts ...EngineOption) *Engine {
	e, err := New(prog, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Engine) planStrata() error {
	// stratumOf[rel] is the stratum deriving rel, -1 for relations no rule
	// derives.
	stratumOf := make([]int, len(e.prog.Relations))
	for i := range stratumOf {
		stratumOf[i] = -1
	}
	planned := make([]bool, len(e.prog.Rules))

	for si, s := range e.prog.Strata {
		for _, ri := range s.Rules {
			if ri < 0 || ri >= len(e.prog.Rules) {
				return invalidProgram("", "stratum %d references rule %d", s.Index, ri)
			}
			if rel, ok := e.relIndex[e.prog.Rules[ri].Head.Relation]; ok {
				stratumOf[rel] = si
			}
		}
	}

	for si, s := range e.prog.Strata {
		sp := stratumPlan{index: s.Index, relations: s.Relations}
		for _, ri := range s.Rules {
			if planned[ri] {
				return invalidProgram(e.prog.Rules[ri].ID, "rule appears in more than one stratum")
			}
			planned[ri] = true

			plan, err := planRule(ri, e.prog.Rules[ri], e.relIndex, e.prog.Relations, e.masks)
			if err != nil {
				return err
			}
			var rec []int
			for i, st := range plan.steps {
				switch st.kind {
				case stepScan:
					if stratumOf[st.rel] == si {
						rec = append(rec, i)
					} else if stratumOf[st.rel] > si {
						return invalidProgram(plan.id, "%s reads a relation of a later stratum", st.literal)
					}
				case stepNegate:
					if stratumOf[st.rel] >= si {
						return invalidProgram(plan.id, "%s negates a relation that is not complete yet", st.literal)
					}
				}
			}
			sp.rules = append(sp.rules, plan)
			sp.recursive = append(sp.recursive, rec)
		}
		e.strata = append(e.strata, sp)
	}

	for ri, ok := range planned {
		if !ok {
			return invalidProgram(e.prog.Rules[ri].ID, "rule is not assigned to a stratum")
		}
	}
	return nil
}

// Program returns the program the engine evaluates.
func (e *Engine) Program() *ruleir.Program {
	return e.prog
}

// database is the state of one run.
type database struct {
	rels []*relation
}

func (e *Engine) newDatabase() *database {
	db := &database{rels: make([]*relation, len(e.prog.Relations))}
	for i, d := range e.prog.Relations {
		db.rels[i] = newRelation(d.Name, d.Arity, e.masks[i])
	}
	return db
}

// load inserts the input facts. Relations are loaded in name order so that
// the first error reported does not depend on map iteration.
func (e *Engine) load(db *database, facts Facts) error {
	for _, name := range facts.Relations() {
		id, ok := e.relIndex[name]
		if !ok {
			return &RuntimeError{Code: ErrCodeUnknownRelation, Message: "facts for undeclared relation", Relation: name}
		}
		rel := db.rels[id]
		for _, row := range facts[name] {
			if len(row) != rel.arity {
				return &RuntimeError{
					Code:     ErrCodeArityMismatch,
					Message:  fmt.Sprintf("row %s has %d values, declared arity %d", row, len(row), rel.arity),
					Relation: name,
				}
			}
			for _, v := range row {
				if v == nil {
					return &RuntimeError{Code: ErrCodeInvalidFact, Message: "row carries a nil value", Relation: name}
				}
			}
			if _, err := rel.insert(row.Key(), append(ir.Row(nil), row...)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Run evaluates the program over facts and returns the final contents of
// every relation.
//
// Run checks ctx between rounds. On any error (cancellation, round limit,
// invalid input) no partial result is returned.
func (e *Engine) Run(ctx context.Context, facts Facts) (*Result, error) {
	runID := e.runIDs.Generate()

	db := e.newDatabase()
	if err := e.load(db, facts); err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}

	var stats Stats
	for _, sp := range e.strata {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run %s cancelled: %w", runID, err)
		}
		ss, err := e.runStratum(ctx, db, sp, runID)
		if err != nil {
			return nil, err
		}
		stats.Strata = append(stats.Strata, ss)
		stats.Rounds += ss.Rounds
		stats.Derived += ss.Derived
	}

	res := &Result{
		RunID: runID,
		rows:  make(map[string][]ir.Row, len(db.rels)),
		keys:  make(map[string]map[string]struct{}, len(db.rels)),
		stats: stats,
	}
	for _, rel := range db.rels {
		res.order = append(res.order, rel.name)
		res.rows[rel.name] = rel.rows
		res.keys[rel.name] = rel.keys
	}

	e.logger.Info("run complete",
		"run_id", runID,
		"program", e.prog.Name,
		"strategy", string(e.strategy),
		"strata", len(e.strata),
		"rounds", stats.Rounds,
		"derived", stats.Derived)
	return res, nil
}

// runStratum evaluates rounds until one adds nothing.
func (e *Engine) runStratum(ctx context.Context, db *database, sp stratumPlan, runID string) (StratumStats, error) {
	ss := StratumStats{Index: sp.index, Relations: sp.relations}
	quota := NewRoundQuota(sp.index, e.maxRounds)
	recursive := sp.isRecursive()

	prev := make([]int, len(db.rels))
	cur := make([]int, len(db.rels))

	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return ss, fmt.Errorf("run %s cancelled in stratum %d: %w", runID, sp.index, err)
		}
		if err := quota.Check(); err != nil {
			return ss, err
		}
		for i, rel := range db.rels {
			cur[i] = rel.len()
		}

		tasks := make([]ruleTask, len(sp.rules))
		for i, plan := range sp.rules {
			tasks[i] = ruleTask{plan: plan, head: db.rels[plan.head]}
			if round == 0 || e.strategy == Naive {
				tasks[i].variants = [][]span{fullSpans(plan, cur)}
			} else {
				tasks[i].variants = deltaVariants(plan, sp.recursive[i], prev, cur)
			}
		}

		buffers, err := e.evaluate(ctx, db, tasks)
		if err != nil {
			return ss, err
		}

		added := 0
		for i, buf := range buffers {
			head := tasks[i].head
			for _, kr := range buf {
				ok, err := head.insert(kr.key, kr.row)
				if err != nil {
					return ss, err
				}
				if ok {
					added++
				}
			}
		}
		ss.Rounds = quota.Current()
		ss.Derived += added

		e.logger.Debug("round complete",
			"run_id", runID,
			"stratum", sp.index,
			"round", round,
			"new_facts", added)

		if added == 0 || !recursive {
			return ss, nil
		}
		copy(prev, cur)
	}
}

// fullSpans lets every scan read the whole snapshot.
func fullSpans(plan *rulePlan, cur []int) []span {
	spans := make([]span, len(plan.steps))
	for i, st := range plan.steps {
		if st.kind == stepScan {
			spans[i] = span{0, cur[st.rel]}
		}
	}
	return spans
}

// deltaVariants builds one variant per recursive atom with a non-empty
// delta: that atom reads the delta, recursive atoms before it read the
// rows that existed before the delta, everything else reads the snapshot.
func deltaVariants(plan *rulePlan, rec []int, prev, cur []int) [][]span {
	var variants [][]span
	for j, sj := range rec {
		rel := plan.steps[sj].rel
		if prev[rel] == cur[rel] {
			continue
		}
		spans := fullSpans(plan, cur)
		for _, before := range rec[:j] {
			spans[before] = span{0, prev[plan.steps[before].rel]}
		}
		spans[sj] = span{prev[rel], cur[rel]}
		variants = append(variants, spans)
	}
	return variants
}
