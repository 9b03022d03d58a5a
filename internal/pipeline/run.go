package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/airgijon/aircore/internal/config"
	"github.com/airgijon/aircore/internal/forecast"
	"github.com/airgijon/aircore/internal/series"
	"github.com/airgijon/aircore/internal/store"
	"github.com/airgijon/aircore/internal/waqi"
)

// Runner executes the daily pipeline.
type Runner struct {
	cfg  config.Config
	feed Feed
	db   Datastore
}

// New builds a Runner with its collaborators injected.
func New(cfg config.Config, feed Feed, db Datastore) *Runner {
	return &Runner{cfg: cfg, feed: feed, db: db}
}

// Run performs one daily batch: ingest, reconcile yesterday, persist the
// daily average, resolve prediction inputs and upsert both forecast
// horizons. It returns an error only for failures that must abort the run
// (persistence, no active model); a missing feed or insufficient data
// degrade and are reported in the Summary.
func (r *Runner) Run(ctx context.Context, now time.Time) (Summary, error) {
	loc := r.cfg.Location()
	today := midnight(now.In(loc))
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	summary := Summary{ProcessedDate: yesterday}

	snap, err := r.ingest(ctx)
	if err != nil {
		return summary, err
	}

	samples, err := r.db.HourlySamples(ctx, r.cfg.StationID, r.cfg.Parameter, yesterday, r.cfg.Timezone)
	if err != nil {
		return summary, err
	}

	report := series.EvaluateQuality(samples, r.cfg.EmptyDayValue)
	summary.Quality = report.Status
	log.Info().Str("date", yesterday.Format("2006-01-02")).
		Str("status", string(report.Status)).
		Ints("missing_hours", report.MissingHours).
		Int("longest_run", report.LongestRun).
		Msg("quality gate evaluated")

	localValue, err := r.aggregateYesterday(ctx, yesterday, samples, report, &summary)
	if err != nil {
		return summary, err
	}

	resolved, err := r.resolveYesterday(ctx, snap, yesterday, localValue)
	if err != nil {
		return summary, err
	}
	summary.YesterdaySource = resolved.Source
	if resolved.Value == nil {
		summary.SkipReason = "no source could supply yesterday's value"
		return summary, nil
	}

	model, err := r.db.ActiveModel(ctx)
	if err != nil {
		return summary, err
	}
	log.Info().Int64("model_id", model.ID).Str("model", model.Name).Msg("using active model")

	preds, err := r.computePredictions(ctx, today, tomorrow, resolved, model, &summary)
	if err != nil {
		return summary, err
	}
	if len(preds) == 0 {
		return summary, nil
	}

	if !r.cfg.DryRun {
		if err := r.db.UpsertPredictions(ctx, preds); err != nil {
			return summary, err
		}
	}
	summary.PredictionsWritten = len(preds)

	for _, p := range preds {
		state := store.StateFor(p.Parameter, &p.Value)
		event := log.Info()
		if p.Value > r.cfg.AlertThreshold {
			event = log.Warn().Bool("alert", true)
		}
		event.Str("date", p.Date.Format("2006-01-02")).
			Int("horizon", p.Horizon).
			Float64("value", p.Value).
			Str("state", state).
			Msg("prediction stored")
	}

	return summary, nil
}

// ingest pulls the feed and persists its hourly history. An unreachable
// feed is logged and swallowed (the fallback tiers take over), but a
// persistence failure aborts the run.
func (r *Runner) ingest(ctx context.Context) (*waqi.Snapshot, error) {
	if r.feed == nil {
		return nil, nil
	}

	snap, err := r.feed.Fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("feed unavailable, degrading to stored data")
		return nil, nil
	}

	readings := feedReadings(snap, r.cfg.StationID)
	if r.cfg.DryRun {
		log.Info().Int("readings", len(readings)).Msg("dry-run: skipping hourly ingest")
		return snap, nil
	}

	if err := r.db.InsertHourlyReadings(ctx, readings); err != nil {
		return nil, fmt.Errorf("persist hourly readings: %w", err)
	}

	if stats, err := r.db.Stats(ctx, r.cfg.StationID); err == nil {
		log.Info().Int64("rows", stats.TotalRows).Int64("days", stats.DaysOfData).
			Msg("hourly readings ingested")
	}
	return snap, nil
}

// aggregateYesterday interpolates and averages yesterday's local series and
// persists the result. Days the quality gate rejects get neither an average
// nor a prediction from local data.
func (r *Runner) aggregateYesterday(ctx context.Context, yesterday time.Time, samples []series.Sample, report series.QualityReport, summary *Summary) (*float64, error) {
	if !report.Usable() {
		log.Warn().Str("date", yesterday.Format("2006-01-02")).Str("reason", report.Message).
			Msg("daily average withheld")
		return nil, nil
	}

	slots := series.Interpolate(samples, r.cfg.EmptyDayValue)
	agg := series.Aggregate(slots)

	src := store.SourceMedicionesAPI
	if agg.InterpolatedCount > 0 {
		src = store.SourceMedicionesInterp
	}

	details, _ := detailsJSON(map[string]any{
		"min_valor":          agg.Min,
		"max_valor":          agg.Max,
		"horas_interpoladas": agg.InterpolatedCount,
		"calidad":            string(report.Status),
	})

	if !r.cfg.DryRun {
		err := r.db.UpsertDailyAverage(ctx, store.DailyAverage{
			Date:      yesterday,
			Parameter: r.cfg.Parameter,
			Value:     &agg.Value,
			Source:    src,
			Details:   details,
		})
		if err != nil {
			return nil, err
		}
	}
	summary.AverageWritten = true

	log.Info().Str("date", yesterday.Format("2006-01-02")).
		Float64("value", agg.Value).
		Str("source", string(src)).
		Int("interpolated", agg.InterpolatedCount).
		Msg("daily average stored")

	return &agg.Value, nil
}

// computePredictions runs the horizon-0 -> horizon-1 chain. When the
// week-ago input for tomorrow cannot be resolved, only horizon 0 is
// produced, mirroring the run degrading rather than failing.
func (r *Runner) computePredictions(ctx context.Context, today, tomorrow time.Time, resolved YesterdayValue, model store.Model, summary *Summary) ([]store.Prediction, error) {
	sevenToday, fbToday, err := r.sevenDaysAgo(ctx, today)
	if err != nil {
		return nil, err
	}
	if sevenToday == nil {
		summary.SkipReason = "no historical data for the week-ago input"
		log.Warn().Msg("prediction generation skipped: " + summary.SkipReason)
		return nil, nil
	}

	h0, err := forecast.ComputeHorizon0(forecast.Inputs{
		TargetDate:        today,
		ValueYesterday:    resolved.Value,
		ValueSevenDaysAgo: sevenToday,
		FallbackUsed:      fbToday,
	})
	if err != nil {
		return nil, err
	}

	preds := []store.Prediction{r.predictionRow(h0, model)}

	sevenTomorrow, fbTomorrow, err := r.sevenDaysAgo(ctx, tomorrow)
	if err != nil {
		return nil, err
	}
	if sevenTomorrow == nil {
		log.Warn().Msg("horizon-1 prediction skipped: no week-ago input for tomorrow")
		return preds, nil
	}

	h1, err := forecast.ComputeHorizon1(h0, sevenTomorrow, fbTomorrow)
	if err != nil {
		return nil, err
	}
	return append(preds, r.predictionRow(h1, model)), nil
}

// sevenDaysAgo resolves the week-ago input for a target date: the exact
// date's daily average when stored, otherwise the mean of the most recent
// available days, flagged as a fallback.
func (r *Runner) sevenDaysAgo(ctx context.Context, target time.Time) (*float64, bool, error) {
	exact, err := r.db.DailyAverageFor(ctx, target.AddDate(0, 0, -7), r.cfg.Parameter)
	if err != nil {
		return nil, false, err
	}
	if exact != nil && exact.Value != nil {
		return exact.Value, false, nil
	}

	values, err := r.db.RecentValues(ctx, target, r.cfg.Parameter, r.cfg.FallbackWindow)
	if err != nil {
		return nil, false, err
	}
	if len(values) == 0 {
		return nil, false, nil
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := series.Round2(sum / float64(len(values)))
	return &mean, true, nil
}

func (r *Runner) predictionRow(res forecast.Result, model store.Model) store.Prediction {
	details, _ := json.Marshal(struct {
		forecast.Details
		Algorithm  string  `json:"algoritmo"`
		Confidence float64 `json:"confianza"`
	}{res.Details, res.Algorithm, res.Confidence})

	return store.Prediction{
		Date:      res.Date,
		StationID: r.cfg.StationID,
		ModelID:   model.ID,
		Parameter: r.cfg.Parameter,
		Value:     res.Value,
		Horizon:   res.Horizon,
		Details:   details,
	}
}

func feedReadings(snap *waqi.Snapshot, stationID string) []store.HourlyReading {
	readings := make([]store.HourlyReading, 0, len(snap.History)*2)
	for _, point := range snap.History {
		for param, value := range point.Values {
			v := value
			readings = append(readings, store.HourlyReading{
				StationID: stationID,
				Timestamp: point.Time,
				Parameter: param,
				Value:     &v,
				Validated: true,
			})
		}
	}
	return readings
}

func detailsJSON(payload map[string]any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}
	return b, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
