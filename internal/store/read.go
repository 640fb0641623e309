package store

import (
	"context"
	"fmt"

	"github.com/roach88/relcheck/internal/querysql"
)

// ReadRows returns every row of a table in insertion order.
//
// Returns an empty slice (not nil) for an empty table.
func (s *Store) ReadRows(ctx context.Context, table string, arity int) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, querysql.SelectRows(table, arity))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	out := [][]string{}
	dest := make([]any, arity)
	for rows.Next() {
		row := make([]string, arity)
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

// Count returns the number of rows of a table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
