// Package pipeline orchestrates the daily batch run: ingest the external
// feed, reconcile yesterday's hourly series, persist the authoritative
// daily average and generate the today/tomorrow forecasts. One run is
// sequential and synchronous; reruns are safe because every write is an
// upsert.
package pipeline

import (
	"context"
	"time"

	"github.com/airgijon/aircore/internal/series"
	"github.com/airgijon/aircore/internal/store"
	"github.com/airgijon/aircore/internal/waqi"
)

// Feed produces the external station snapshot.
type Feed interface {
	Fetch(ctx context.Context) (*waqi.Snapshot, error)
}

// Datastore is the persistence surface the pipeline needs. *store.Store
// implements it; tests substitute fakes.
type Datastore interface {
	InsertHourlyReadings(ctx context.Context, readings []store.HourlyReading) error
	HourlySamples(ctx context.Context, stationID, parameter string, day time.Time, tz string) ([]series.Sample, error)
	Stats(ctx context.Context, stationID string) (store.IngestStats, error)

	UpsertDailyAverage(ctx context.Context, avg store.DailyAverage) error
	DailyAverageFor(ctx context.Context, day time.Time, parameter string) (*store.DailyAverage, error)
	ExternalDailyAverageFor(ctx context.Context, day time.Time, parameter string) (*store.DailyAverage, error)
	RecentValues(ctx context.Context, before time.Time, parameter string, limit int) ([]float64, error)

	ActiveModel(ctx context.Context) (store.Model, error)
	UpsertPredictions(ctx context.Context, preds []store.Prediction) error
}

// Summary reports what one run did, for logging and tests.
type Summary struct {
	ProcessedDate      time.Time
	Quality            series.QualityStatus
	AverageWritten     bool
	YesterdaySource    store.Source
	PredictionsWritten int
	SkipReason         string
}
