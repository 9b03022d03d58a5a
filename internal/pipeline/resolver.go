package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/airgijon/aircore/internal/store"
	"github.com/airgijon/aircore/internal/waqi"
)

// YesterdayValue is the resolved prediction input for the day before the
// run, with the provenance tier that supplied it.
type YesterdayValue struct {
	Value  *float64
	Source store.Source
}

// resolveYesterday picks yesterday's authoritative daily value, trying the
// provenance tiers in order and stopping at the first success:
//  1. a value computed directly from the feed's hourly history,
//  2. a previously persisted externally-sourced daily average row,
//  3. the value aggregated from this station's own hourly readings.
//
// When every tier fails the caller must abort prediction generation: there
// is no silent default.
func (r *Runner) resolveYesterday(ctx context.Context, snap *waqi.Snapshot, yesterday time.Time, localValue *float64) (YesterdayValue, error) {
	if snap != nil {
		if avg, count := snap.DailyAverage(r.cfg.Parameter, yesterday, r.cfg.Location()); avg != nil {
			log.Info().Float64("value", *avg).Int("readings", count).
				Msg("yesterday value resolved from feed history")
			if err := r.persistDirectAverage(ctx, yesterday, *avg, count); err != nil {
				return YesterdayValue{}, err
			}
			return YesterdayValue{Value: avg, Source: store.SourceWAQIDirect}, nil
		}
	}

	row, err := r.db.ExternalDailyAverageFor(ctx, yesterday, r.cfg.Parameter)
	if err != nil {
		return YesterdayValue{}, err
	}
	if row != nil && row.Value != nil {
		log.Info().Float64("value", *row.Value).Str("stored_source", string(row.Source)).
			Msg("yesterday value resolved from persisted external average")
		return YesterdayValue{Value: row.Value, Source: store.SourceWAQIDB}, nil
	}

	if localValue != nil {
		log.Info().Float64("value", *localValue).
			Msg("yesterday value resolved from local hourly readings")
		return YesterdayValue{Value: localValue, Source: store.SourceCalculatedHourly}, nil
	}

	log.Warn().Str("date", yesterday.Format("2006-01-02")).
		Msg("no source could supply yesterday's value")
	return YesterdayValue{Source: store.SourceNone}, nil
}

// persistDirectAverage records the feed-derived daily value so later runs
// can fall back to it when the feed is unreachable.
func (r *Runner) persistDirectAverage(ctx context.Context, day time.Time, value float64, readings int) error {
	if r.cfg.DryRun {
		return nil
	}
	details, _ := detailsJSON(map[string]any{"readings": readings})
	return r.db.UpsertDailyAverage(ctx, store.DailyAverage{
		Date:      day,
		Parameter: r.cfg.Parameter,
		Value:     &value,
		Source:    store.SourceWAQIDirect,
		Details:   details,
	})
}
