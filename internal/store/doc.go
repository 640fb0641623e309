// Package store provides the per-run SQLite database of the SQL
// evaluation backend.
//
// Every run opens its own private in-memory database, named after the run
// id, creates one table per relation and per materialised guard, and
// closes it when the run ends. Nothing is persisted.
//
// # Tables
//
// Each table has arity TEXT columns c0..cN holding canonical value keys,
// and a primary key over all columns, so INSERT OR IGNORE gives set
// semantics. Rows are read back in rowid (insertion) order.
//
// # Database Configuration
//
//   - mode=memory&cache=shared: private named in-memory database
//   - one open connection: SQLite allows a single writer anyway
//   - journal_mode=MEMORY, synchronous=OFF: nothing to make durable
package store
