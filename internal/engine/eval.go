package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

// ruleTask is the work for one rule in one round: one evaluation per
// variant, all writing into the same buffer.
type ruleTask struct {
	plan     *rulePlan
	head     *relation
	variants [][]span
}

// keyedRow is a derived row with its precomputed key.
type keyedRow struct {
	key string
	row ir.Row
}

// evaluate runs every task against the frozen database and returns one
// buffer per task, in task order.
//
// With parallelism above one, tasks run on an errgroup. Tasks only read
// the database; buffers are merged by the caller afterwards, so the
// outcome is the same as the sequential one.
func (e *Engine) evaluate(ctx context.Context, db *database, tasks []ruleTask) ([][]keyedRow, error) {
	out := make([][]keyedRow, len(tasks))

	if e.parallelism <= 1 {
		for i, t := range tasks {
			rows, err := t.run(db)
			if err != nil {
				return nil, err
			}
			out[i] = rows
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows, err := t.run(db)
			if err != nil {
				return err
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (t ruleTask) run(db *database) ([]keyedRow, error) {
	ev := &evaluator{
		db:    db,
		plan:  t.plan,
		head:  t.head,
		slots: make([]ir.Value, t.plan.nslots),
		seen:  make(map[string]struct{}),
	}
	for _, spans := range t.variants {
		ev.spans = spans
		if err := ev.step(0); err != nil {
			return nil, err
		}
	}
	return ev.out, nil
}

// evaluator walks the steps of one rule depth-first. Slots are assigned
// statically, so a step always overwrites the same slots and nothing has
// to be undone on backtracking.
type evaluator struct {
	db    *database
	plan  *rulePlan
	head  *relation
	spans []span
	slots []ir.Value
	seen  map[string]struct{}
	out   []keyedRow
}

func (ev *evaluator) step(i int) error {
	if i == len(ev.plan.steps) {
		ev.emit()
		return nil
	}
	st := &ev.plan.steps[i]

	switch st.kind {
	case stepScan:
		rel := ev.db.rels[st.rel]
		sp := ev.spans[i]
		if st.mask == 0 {
			for p := sp.lo; p < sp.hi; p++ {
				if !ev.apply(st.actions, rel.rows[p]) {
					continue
				}
				if err := ev.step(i + 1); err != nil {
					return err
				}
			}
			return nil
		}
		var err error
		rel.lookup(st.mask, ev.lookupKey(st), sp, func(p int) bool {
			if !ev.apply(st.actions, rel.rows[p]) {
				return true
			}
			err = ev.step(i + 1)
			return err == nil
		})
		return err

	case stepNegate:
		rel := ev.db.rels[st.rel]
		if rel.any(st.mask, ev.lookupKey(st), span{0, rel.len()}) {
			return nil
		}
		return ev.step(i + 1)

	case stepGuard:
		in := make([]ir.Value, len(st.in))
		for j, op := range st.in {
			in[j] = op.value(ev.slots)
		}
		out, ok := st.guard(in)
		if !ok {
			return nil
		}
		if len(out) != st.nout {
			return &RuntimeError{
				Code:    ErrCodeGuardContract,
				Message: fmt.Sprintf("guard %s returned %d values, want %d", st.guardName, len(out), st.nout),
				Rule:    ev.plan.id,
			}
		}
		for _, a := range st.actions {
			if out[a.col] == nil {
				return &RuntimeError{
					Code:    ErrCodeGuardContract,
					Message: fmt.Sprintf("guard %s returned nil output %d", st.guardName, a.col),
					Rule:    ev.plan.id,
				}
			}
		}
		if !ev.apply(st.actions, ir.Row(out)) {
			return nil
		}
		return ev.step(i + 1)

	case stepCompare:
		same := st.left.value(ev.slots).Key() == st.right.value(ev.slots).Key()
		if same != (st.op == ruleir.OpEq) {
			return nil
		}
		return ev.step(i + 1)
	}
	return nil
}

// apply runs the bind/check actions of a step against row.
func (ev *evaluator) apply(actions []action, row ir.Row) bool {
	for _, a := range actions {
		switch a.kind {
		case actBind:
			ev.slots[a.slot] = row[a.col]
		case actCheck:
			if row[a.col].Key() != a.cmp.value(ev.slots).Key() {
				return false
			}
		}
	}
	return true
}

func (ev *evaluator) lookupKey(st *step) string {
	if st.mask == 0 {
		return ""
	}
	vals := make(ir.Row, len(st.lookup))
	for i, op := range st.lookup {
		vals[i] = op.value(ev.slots)
	}
	return vals.Key()
}

// emit builds the head row. Rows already in the head relation or already
// buffered this round are skipped.
func (ev *evaluator) emit() {
	row := make(ir.Row, len(ev.plan.headOp))
	for i, op := range ev.plan.headOp {
		row[i] = op.value(ev.slots)
	}
	key := row.Key()
	if ev.head.has(key) {
		return
	}
	if _, dup := ev.seen[key]; dup {
		return
	}
	ev.seen[key] = struct{}{}
	ev.out = append(ev.out, keyedRow{key: key, row: row})
}
