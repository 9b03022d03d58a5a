// Package store provides pgx-backed persistence for hourly readings, daily
// averages, predictions and the forecasting model registry. A Store is
// constructed explicitly and injected where needed; there is no package
// level pool.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func dateArg(t time.Time) string {
	return t.Format("2006-01-02")
}

// sourcePrecedenceCase builds the ORDER BY CASE expression ranking sources,
// keeping the SQL tie-break aligned with Source.Precedence.
func sourcePrecedenceCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for i, src := range sourcePrecedence {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", src, i+1)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(sourcePrecedence)+1)
	return b.String()
}
