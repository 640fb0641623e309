package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relcheck/internal/queryir"
)

// SQLCompiler compiles QueryIR to parameterized SQL for SQLite.
//
// Every value is stored as its canonical key in a TEXT column, so equality
// on keys is equality on values. Literals are always parameters, never
// interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a QueryIR query to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// Select results are ordered by every projected column so that inserted
// rows land in a deterministic rowid order.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Problems, "; "))
	}

	w := &writer{}
	switch query := q.(type) {
	case queryir.Select:
		c.writeSelect(w, query)
	case queryir.Insert:
		cols := columnList(len(query.Select.Columns))
		w.printf("INSERT OR IGNORE INTO %s (%s) ", RelationTable(query.Table), cols)
		c.writeSelect(w, query.Select)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	return w.sb.String(), w.params, nil
}

// writer accumulates SQL text and its parameters in placeholder order.
type writer struct {
	sb     strings.Builder
	params []any
}

func (w *writer) printf(format string, args ...any) {
	fmt.Fprintf(&w.sb, format, args...)
}

func (c *SQLCompiler) writeSelect(w *writer, sel queryir.Select) {
	w.sb.WriteString("SELECT DISTINCT ")
	if len(sel.Columns) == 0 {
		w.sb.WriteString("1")
	}
	for i, e := range sel.Columns {
		if i > 0 {
			w.sb.WriteString(", ")
		}
		c.writeExpr(w, e)
	}

	if len(sel.From) > 0 {
		w.sb.WriteString(" FROM ")
		for i, src := range sel.From {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.printf("%s AS %s", SourceTable(src), src.Alias)
		}
	}

	if sel.Where != nil {
		w.sb.WriteString(" WHERE ")
		c.writePredicate(w, sel.Where)
	}

	// TEXT columns compare with the BINARY collation.
	if len(sel.Columns) > 0 {
		w.sb.WriteString(" ORDER BY ")
		for i := range sel.Columns {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.printf("%d", i+1)
		}
	}
}

func (c *SQLCompiler) writeExpr(w *writer, e queryir.Expr) {
	switch ex := e.(type) {
	case queryir.Column:
		w.printf("%s.c%d", ex.Alias, ex.Index)
	case queryir.Literal:
		w.sb.WriteString("?")
		w.params = append(w.params, ex.Value.Key())
	}
}

func (c *SQLCompiler) writePredicate(w *writer, p queryir.Predicate) {
	switch pred := p.(type) {
	case queryir.Equals:
		c.writeExpr(w, pred.Left)
		w.sb.WriteString(" = ")
		c.writeExpr(w, pred.Right)

	case queryir.NotEquals:
		c.writeExpr(w, pred.Left)
		w.sb.WriteString(" <> ")
		c.writeExpr(w, pred.Right)

	case queryir.And:
		if len(pred.Predicates) == 0 {
			w.sb.WriteString("1 = 1") // vacuous truth
			return
		}
		for i, sub := range pred.Predicates {
			if i > 0 {
				w.sb.WriteString(" AND ")
			}
			c.writePredicate(w, sub)
		}

	case queryir.NotExists:
		w.printf("NOT EXISTS (SELECT 1 FROM %s AS %s", SourceTable(pred.Source), pred.Source.Alias)
		if pred.Where != nil {
			w.sb.WriteString(" WHERE ")
			c.writePredicate(w, pred.Where)
		}
		w.sb.WriteString(")")
	}
}

// RelationTable returns the quoted table name of a relation.
func RelationTable(name string) string {
	return quoteIdent("r_" + name)
}

// GuardTable returns the quoted table name of a materialised guard.
func GuardTable(name string) string {
	return quoteIdent("g_" + name)
}

// SourceTable returns the quoted table name a Source reads.
func SourceTable(src queryir.Source) string {
	if src.Kind == queryir.SourceGuard {
		return GuardTable(src.Name)
	}
	return RelationTable(src.Name)
}

// CreateTable returns the DDL for a table of arity TEXT columns. The
// primary key over all columns gives set semantics to INSERT OR IGNORE;
// rowid order is insertion order.
func CreateTable(table string, arity int) string {
	defs := make([]string, arity)
	for i := range defs {
		defs[i] = fmt.Sprintf("c%d TEXT NOT NULL", i)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s, PRIMARY KEY (%s))",
		table, strings.Join(defs, ", "), columnList(arity))
}

// InsertRow returns a parameterized single-row insert ignoring duplicates.
func InsertRow(table string, arity int) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", arity), ", ")
	return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columnList(arity), marks)
}

// SelectRows returns a query reading every row in insertion order.
func SelectRows(table string, arity int) string {
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid ASC", columnList(arity), table)
}

func columnList(n int) string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	return strings.Join(cols, ", ")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
