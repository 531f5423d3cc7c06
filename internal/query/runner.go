package query

import (
	"context"
	"database/sql"
)

// Runner executes specs against a database/sql handle.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a Runner.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// Query runs the spec and returns its rows. The caller closes them.
func (r *Runner) Query(ctx context.Context, s Spec) (*sql.Rows, error) {
	q, args, err := s.Build()
	if err != nil {
		return nil, err
	}
	return r.db.QueryContext(ctx, q, args...)
}

// QueryRow runs the spec expecting at most one row.
func (r *Runner) QueryRow(ctx context.Context, s Spec) (*sql.Row, error) {
	q, args, err := s.Build()
	if err != nil {
		return nil, err
	}
	return r.db.QueryRowContext(ctx, q, args...), nil
}

// Count returns the number of rows matching the spec.
func (r *Runner) Count(ctx context.Context, s Spec) (int64, error) {
	q, args, err := s.BuildCount()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
