package eav

import (
	"context"
	"database/sql"
)

// DBTX is the session abstraction repositories and queries run on. Both
// *sql.DB and *sql.Tx satisfy it; transaction boundaries belong to the
// caller.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
