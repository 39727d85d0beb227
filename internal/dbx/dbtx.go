// Package dbx provides the tiny DB abstraction shared by repositories: a
// minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx, so a
// repository can run either standalone or inside a caller-owned transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the photo repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
