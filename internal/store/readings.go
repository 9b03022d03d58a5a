package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/airgijon/aircore/internal/series"
)

// HourlyReading is one station/parameter/hour row from the ingestion feed.
type HourlyReading struct {
	StationID string
	Timestamp time.Time
	Parameter string
	Value     *float64
	AQI       *float64
	Validated bool
}

const upsertReadingSQL = `
INSERT INTO mediciones_api (estacion_id, fecha, parametro, valor, aqi, is_validated, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())
ON CONFLICT (estacion_id, fecha, parametro) DO UPDATE
SET valor = EXCLUDED.valor,
    aqi = EXCLUDED.aqi,
    is_validated = EXCLUDED.is_validated,
    updated_at = NOW()`

// InsertHourlyReadings writes a batch of reconciled hourly readings in a
// single transaction: either all rows land or none do.
func (s *Store) InsertHourlyReadings(ctx context.Context, readings []HourlyReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin readings tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range readings {
		batch.Queue(upsertReadingSQL, r.StationID, r.Timestamp, r.Parameter, r.Value, r.AQI, r.Validated)
	}

	res := tx.SendBatch(ctx, batch)
	for range readings {
		if _, err := res.Exec(); err != nil {
			res.Close()
			return fmt.Errorf("insert hourly reading: %w", err)
		}
	}
	if err := res.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const hourlySamplesSQL = `
SELECT EXTRACT(HOUR FROM fecha AT TIME ZONE $1)::int AS hora, valor
FROM mediciones_api
WHERE DATE(fecha AT TIME ZONE $1) = $2
  AND estacion_id = $3
  AND parametro = $4
  AND valor IS NOT NULL
ORDER BY fecha ASC`

// HourlySamples returns the known hourly values for one station, parameter
// and calendar day in the given timezone, ready for gap analysis.
func (s *Store) HourlySamples(ctx context.Context, stationID, parameter string, day time.Time, tz string) ([]series.Sample, error) {
	rows, err := s.pool.Query(ctx, hourlySamplesSQL, tz, dateArg(day), stationID, parameter)
	if err != nil {
		return nil, fmt.Errorf("query hourly samples: %w", err)
	}
	defer rows.Close()

	samples := make([]series.Sample, 0, series.HoursPerDay)
	for rows.Next() {
		var sample series.Sample
		if err := rows.Scan(&sample.Hour, &sample.Value); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

const latestReadingSQL = `
SELECT fecha, valor
FROM mediciones_api
WHERE estacion_id = $1 AND parametro = $2 AND valor IS NOT NULL
ORDER BY fecha DESC
LIMIT 1`

// LatestReading returns the most recent stored value for a parameter.
func (s *Store) LatestReading(ctx context.Context, stationID, parameter string) (time.Time, float64, error) {
	var ts time.Time
	var value float64
	err := s.pool.QueryRow(ctx, latestReadingSQL, stationID, parameter).Scan(&ts, &value)
	if err != nil {
		return time.Time{}, 0, err
	}
	return ts, value, nil
}

// IngestStats summarizes the hourly readings table after an ingestion run.
type IngestStats struct {
	TotalRows  int64
	DaysOfData int64
	Latest     *time.Time
}

const ingestStatsSQL = `
SELECT COUNT(*), COUNT(DISTINCT DATE(fecha)), MAX(fecha)
FROM mediciones_api
WHERE estacion_id = $1`

// Stats reports ingestion totals for one station.
func (s *Store) Stats(ctx context.Context, stationID string) (IngestStats, error) {
	var st IngestStats
	err := s.pool.QueryRow(ctx, ingestStatsSQL, stationID).Scan(&st.TotalRows, &st.DaysOfData, &st.Latest)
	if err != nil {
		return IngestStats{}, fmt.Errorf("query ingest stats: %w", err)
	}
	return st, nil
}
