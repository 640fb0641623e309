package store

import (
	"context"
	"fmt"

	"github.com/roach88/relcheck/internal/querysql"
)

// CreateTable creates a table of arity TEXT columns.
// table must already be quoted (see querysql.RelationTable).
func (s *Store) CreateTable(ctx context.Context, table string, arity int) error {
	if arity <= 0 {
		return fmt.Errorf("create table %s: arity %d not supported", table, arity)
	}
	if _, err := s.db.ExecContext(ctx, querysql.CreateTable(table, arity)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// InsertRows inserts rows of value keys in one transaction. Rows already
// present are silently ignored. Returns the number of rows added.
func (s *Store) InsertRows(ctx context.Context, table string, arity int, rows [][]string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: begin: %w", table, err)
	}
	defer tx.Rollback() // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, querysql.InsertRow(table, arity))
	if err != nil {
		return 0, fmt.Errorf("insert into %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	var added int64
	args := make([]any, arity)
	for _, row := range rows {
		if len(row) != arity {
			return 0, fmt.Errorf("insert into %s: row has %d columns, want %d", table, len(row), arity)
		}
		for i, k := range row {
			args[i] = k
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert into %s: rows affected: %w", table, err)
		}
		added += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert into %s: commit: %w", table, err)
	}
	return added, nil
}

// Exec runs a statement and returns the number of rows it changed.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
