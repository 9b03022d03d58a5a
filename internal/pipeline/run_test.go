package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airgijon/aircore/internal/config"
	"github.com/airgijon/aircore/internal/series"
	"github.com/airgijon/aircore/internal/store"
	"github.com/airgijon/aircore/internal/waqi"
)

type fakeFeed struct {
	snap *waqi.Snapshot
	err  error
}

func (f *fakeFeed) Fetch(ctx context.Context) (*waqi.Snapshot, error) {
	return f.snap, f.err
}

type fakeDB struct {
	samples  map[string][]series.Sample // keyed by date
	daily    map[string]float64         // DailyAverageFor by date
	external map[string]float64         // externally-sourced rows by date
	recent   []float64
	model    store.Model
	modelErr error

	readings []store.HourlyReading
	upserts  []store.DailyAverage
	preds    []store.Prediction
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		samples:  map[string][]series.Sample{},
		daily:    map[string]float64{},
		external: map[string]float64{},
		model:    store.Model{ID: 7, Name: "heuristica_semanal_v2", Active: true},
	}
}

func day(t time.Time) string { return t.Format("2006-01-02") }

func (f *fakeDB) InsertHourlyReadings(ctx context.Context, readings []store.HourlyReading) error {
	f.readings = append(f.readings, readings...)
	return nil
}

func (f *fakeDB) HourlySamples(ctx context.Context, stationID, parameter string, d time.Time, tz string) ([]series.Sample, error) {
	return f.samples[day(d)], nil
}

func (f *fakeDB) Stats(ctx context.Context, stationID string) (store.IngestStats, error) {
	return store.IngestStats{TotalRows: int64(len(f.readings))}, nil
}

func (f *fakeDB) UpsertDailyAverage(ctx context.Context, avg store.DailyAverage) error {
	f.upserts = append(f.upserts, avg)
	if avg.Source.External() && avg.Value != nil {
		f.external[day(avg.Date)] = *avg.Value
	}
	return nil
}

func (f *fakeDB) DailyAverageFor(ctx context.Context, d time.Time, parameter string) (*store.DailyAverage, error) {
	if v, ok := f.daily[day(d)]; ok {
		value := v
		return &store.DailyAverage{Date: d, Parameter: parameter, Value: &value, Source: store.SourceMedicionesAPI}, nil
	}
	return nil, nil
}

func (f *fakeDB) ExternalDailyAverageFor(ctx context.Context, d time.Time, parameter string) (*store.DailyAverage, error) {
	if v, ok := f.external[day(d)]; ok {
		value := v
		return &store.DailyAverage{Date: d, Parameter: parameter, Value: &value, Source: store.SourceWAQIDB}, nil
	}
	return nil, nil
}

func (f *fakeDB) RecentValues(ctx context.Context, before time.Time, parameter string, limit int) ([]float64, error) {
	return f.recent, nil
}

func (f *fakeDB) ActiveModel(ctx context.Context) (store.Model, error) {
	if f.modelErr != nil {
		return store.Model{}, f.modelErr
	}
	return f.model, nil
}

func (f *fakeDB) UpsertPredictions(ctx context.Context, preds []store.Prediction) error {
	f.preds = append(f.preds, preds...)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		StationID:      "6699",
		Parameter:      "pm25",
		Timezone:       "Europe/Madrid",
		EmptyDayValue:  25.0,
		AlertThreshold: 25.0,
		FallbackWindow: 7,
		HistoricalDays: 5,
	}
}

// 2025-06-04 is a Wednesday in Europe/Madrid.
func testNow(t *testing.T) time.Time {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return time.Date(2025, 6, 4, 8, 30, 0, 0, loc)
}

func samplesWithout(value float64, missing ...int) []series.Sample {
	drop := map[int]bool{}
	for _, h := range missing {
		drop[h] = true
	}
	out := make([]series.Sample, 0, series.HoursPerDay)
	for h := 0; h < series.HoursPerDay; h++ {
		if !drop[h] {
			out = append(out, series.Sample{Hour: h, Value: value})
		}
	}
	return out
}

func TestRunEndToEnd(t *testing.T) {
	now := testNow(t)
	yesterday := now.AddDate(0, 0, -1)

	db := newFakeDB()
	db.samples[day(yesterday)] = samplesWithout(20, 5, 14, 17, 18)
	db.daily[day(now.AddDate(0, 0, -7))] = 30 // week-ago for today
	db.daily[day(now.AddDate(0, 0, -6))] = 40 // week-ago for tomorrow

	runner := New(testConfig(), &fakeFeed{err: errors.New("feed down")}, db)
	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, series.QualityIncomplete, summary.Quality)
	assert.True(t, summary.AverageWritten)
	assert.Equal(t, store.SourceCalculatedHourly, summary.YesterdaySource)
	assert.Equal(t, 2, summary.PredictionsWritten)

	require.Len(t, db.upserts, 1)
	avg := db.upserts[0]
	assert.Equal(t, store.SourceMedicionesInterp, avg.Source)
	require.NotNil(t, avg.Value)
	assert.Equal(t, 20.0, *avg.Value)

	require.Len(t, db.preds, 2)
	h0, h1 := db.preds[0], db.preds[1]
	assert.Equal(t, 0, h0.Horizon)
	assert.Equal(t, 22.5, h0.Value) // 0.75*20 + 0.25*30
	assert.Equal(t, 1, h1.Horizon)
	assert.Equal(t, 26.88, h1.Value) // 0.75*22.5 + 0.25*40

	var details map[string]any
	require.NoError(t, json.Unmarshal(h1.Details, &details))
	assert.Equal(t, h0.Value, details["promedio_ayer"]) // recursive chaining
	assert.Equal(t, false, details["fallback_usado"])
	assert.Equal(t, "ponderado_semanal", details["algoritmo"])
	assert.Equal(t, int64(7), h0.ModelID)
}

func TestRunFallbackPrecedence(t *testing.T) {
	now := testNow(t)
	yesterday := now.AddDate(0, 0, -1)

	feedSnap := func() *waqi.Snapshot {
		loc := now.Location()
		points := make([]waqi.HourlyPoint, 0, 6)
		for h := 8; h < 14; h++ {
			points = append(points, waqi.HourlyPoint{
				Time:   time.Date(2025, 6, 3, h, 0, 0, 0, loc),
				Values: map[string]float64{"pm25": 18},
			})
		}
		return &waqi.Snapshot{History: points}
	}

	t.Run("direct feed value wins over everything", func(t *testing.T) {
		db := newFakeDB()
		db.samples[day(yesterday)] = samplesWithout(20)
		db.external[day(yesterday)] = 99
		db.daily[day(now.AddDate(0, 0, -7))] = 30

		runner := New(testConfig(), &fakeFeed{snap: feedSnap()}, db)
		summary, err := runner.Run(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, store.SourceWAQIDirect, summary.YesterdaySource)

		// the direct value was persisted for later WAQI_DB fallback
		var persisted bool
		for _, up := range db.upserts {
			if up.Source == store.SourceWAQIDirect {
				persisted = true
				require.NotNil(t, up.Value)
				assert.Equal(t, 18.0, *up.Value)
			}
		}
		assert.True(t, persisted)
	})

	t.Run("stored external row when feed is down", func(t *testing.T) {
		db := newFakeDB()
		db.samples[day(yesterday)] = samplesWithout(20)
		db.external[day(yesterday)] = 33
		db.daily[day(now.AddDate(0, 0, -7))] = 30

		runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
		summary, err := runner.Run(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, store.SourceWAQIDB, summary.YesterdaySource)
		require.Len(t, db.preds, 1) // tomorrow week-ago missing, horizon 1 skipped
		assert.InDelta(t, 0.75*33+0.25*30, db.preds[0].Value, 0.001)
	})

	t.Run("local hourly readings as last tier", func(t *testing.T) {
		db := newFakeDB()
		db.samples[day(yesterday)] = samplesWithout(20)
		db.daily[day(now.AddDate(0, 0, -7))] = 30

		runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
		summary, err := runner.Run(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, store.SourceCalculatedHourly, summary.YesterdaySource)
	})

	t.Run("no tier available aborts prediction generation", func(t *testing.T) {
		db := newFakeDB()

		runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
		summary, err := runner.Run(context.Background(), now)
		require.NoError(t, err)
		assert.Equal(t, store.SourceNone, summary.YesterdaySource)
		assert.NotEmpty(t, summary.SkipReason)
		assert.Empty(t, db.preds)
	})
}

func TestRunInsufficientQualityWithholdsAverageAndPrediction(t *testing.T) {
	now := testNow(t)
	yesterday := now.AddDate(0, 0, -1)

	db := newFakeDB()
	db.samples[day(yesterday)] = samplesWithout(20, 9, 10, 11) // 3 consecutive gaps
	db.daily[day(now.AddDate(0, 0, -7))] = 30

	runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, series.QualityInsufficient, summary.Quality)
	assert.False(t, summary.AverageWritten)
	assert.Empty(t, db.upserts)
	assert.Equal(t, store.SourceNone, summary.YesterdaySource)
	assert.Empty(t, db.preds)
}

func TestRunNoActiveModelIsFatal(t *testing.T) {
	now := testNow(t)
	yesterday := now.AddDate(0, 0, -1)

	db := newFakeDB()
	db.samples[day(yesterday)] = samplesWithout(20)
	db.modelErr = store.ErrNoActiveModel

	runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
	_, err := runner.Run(context.Background(), now)
	assert.ErrorIs(t, err, store.ErrNoActiveModel)
}

func TestRunWeekAgoFallbackMean(t *testing.T) {
	now := testNow(t)
	yesterday := now.AddDate(0, 0, -1)

	db := newFakeDB()
	db.samples[day(yesterday)] = samplesWithout(20)
	db.recent = []float64{10, 20, 30} // no exact week-ago rows anywhere

	runner := New(testConfig(), &fakeFeed{err: errors.New("down")}, db)
	summary, err := runner.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PredictionsWritten)

	require.Len(t, db.preds, 2)
	// Wednesday target: 0.75*20 + 0.25*mean(10,20,30)=20
	assert.Equal(t, 20.0, db.preds[0].Value)

	var details map[string]any
	require.NoError(t, json.Unmarshal(db.preds[0].Details, &details))
	assert.Equal(t, true, details["fallback_usado"])
	assert.Equal(t, "ponderado_semanal_fallback", details["algoritmo"])
	assert.Equal(t, 0.6, details["confianza"])
}
