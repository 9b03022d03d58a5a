package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DailyAverage is one authoritative daily value for a parameter, tagged
// with the provenance that produced it. Multiple sources may coexist for
// the same date; reads resolve the tie by source precedence.
type DailyAverage struct {
	Date      time.Time
	Parameter string
	Value     *float64
	State     string
	Source    Source
	Details   []byte
}

const upsertAverageSQL = `
INSERT INTO promedios_diarios (fecha, parametro, valor, estado, source, detalles, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
ON CONFLICT (fecha, parametro, source) DO UPDATE
SET valor = EXCLUDED.valor,
    estado = EXCLUDED.estado,
    detalles = EXCLUDED.detalles,
    updated_at = NOW()`

// UpsertDailyAverage writes one daily average row, replacing any previous
// value for the same (date, parameter, source) key. Repeated calls are
// idempotent; the last write wins.
func (s *Store) UpsertDailyAverage(ctx context.Context, avg DailyAverage) error {
	state := avg.State
	if state == "" {
		state = StateFor(avg.Parameter, avg.Value)
	}
	_, err := s.pool.Exec(ctx, upsertAverageSQL,
		dateArg(avg.Date), avg.Parameter, avg.Value, state, string(avg.Source), avg.Details)
	if err != nil {
		return fmt.Errorf("upsert daily average %s/%s/%s: %w", dateArg(avg.Date), avg.Parameter, avg.Source, err)
	}
	return nil
}

// DailyAverageFor returns the most authoritative row for a date, resolving
// multi-source ties by precedence. Returns nil when no row exists.
func (s *Store) DailyAverageFor(ctx context.Context, day time.Time, parameter string) (*DailyAverage, error) {
	sql := `
SELECT fecha, parametro, valor, estado, source, detalles
FROM promedios_diarios
WHERE fecha = $1 AND parametro = $2
ORDER BY ` + sourcePrecedenceCase("source") + `
LIMIT 1`
	return s.queryOneAverage(ctx, sql, dateArg(day), parameter)
}

// ExternalDailyAverageFor returns a previously persisted externally-sourced
// row for a date, or nil.
func (s *Store) ExternalDailyAverageFor(ctx context.Context, day time.Time, parameter string) (*DailyAverage, error) {
	sql := `
SELECT fecha, parametro, valor, estado, source, detalles
FROM promedios_diarios
WHERE fecha = $1 AND parametro = $2 AND source = ANY($3)
ORDER BY ` + sourcePrecedenceCase("source") + `
LIMIT 1`
	external := []string{string(SourceWAQIDirect), string(SourceWAQIDB)}
	return s.queryOneAverage(ctx, sql, dateArg(day), parameter, external)
}

func (s *Store) queryOneAverage(ctx context.Context, sql string, args ...any) (*DailyAverage, error) {
	var avg DailyAverage
	var src string
	err := s.pool.QueryRow(ctx, sql, args...).Scan(
		&avg.Date, &avg.Parameter, &avg.Value, &avg.State, &src, &avg.Details)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query daily average: %w", err)
	}
	avg.Source = Source(src)
	return &avg, nil
}

// RecentValues returns the newest available daily values strictly before
// the given date, one per date (best source wins), newest first. Used for
// the week-ago fallback mean.
func (s *Store) RecentValues(ctx context.Context, before time.Time, parameter string, limit int) ([]float64, error) {
	sql := `
SELECT valor FROM (
    SELECT DISTINCT ON (fecha) fecha, valor
    FROM promedios_diarios
    WHERE fecha < $1 AND parametro = $2 AND valor IS NOT NULL
    ORDER BY fecha DESC, ` + sourcePrecedenceCase("source") + `
) AS best
ORDER BY fecha DESC
LIMIT $3`

	rows, err := s.pool.Query(ctx, sql, dateArg(before), parameter, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent daily values: %w", err)
	}
	defer rows.Close()

	values := make([]float64, 0, limit)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// DailyAveragesBetween returns the best row per date within [from, to],
// ordered by date ascending. Dates without any row are simply absent.
func (s *Store) DailyAveragesBetween(ctx context.Context, from, to time.Time, parameter string) ([]DailyAverage, error) {
	sql := `
SELECT fecha, parametro, valor, estado, source, detalles FROM (
    SELECT DISTINCT ON (fecha) fecha, parametro, valor, estado, source, detalles
    FROM promedios_diarios
    WHERE fecha BETWEEN $1 AND $2 AND parametro = $3
    ORDER BY fecha, ` + sourcePrecedenceCase("source") + `
) AS best
ORDER BY fecha ASC`

	rows, err := s.pool.Query(ctx, sql, dateArg(from), dateArg(to), parameter)
	if err != nil {
		return nil, fmt.Errorf("query daily averages: %w", err)
	}
	defer rows.Close()

	averages := make([]DailyAverage, 0)
	for rows.Next() {
		var avg DailyAverage
		var src string
		if err := rows.Scan(&avg.Date, &avg.Parameter, &avg.Value, &avg.State, &src, &avg.Details); err != nil {
			return nil, err
		}
		avg.Source = Source(src)
		averages = append(averages, avg)
	}
	return averages, rows.Err()
}
