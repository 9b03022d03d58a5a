package evolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airgijon/aircore/internal/store"
)

type fakeReader struct {
	averages []store.DailyAverage
	preds    map[int]store.Prediction
}

func (f *fakeReader) DailyAveragesBetween(ctx context.Context, from, to time.Time, parameter string) ([]store.DailyAverage, error) {
	out := make([]store.DailyAverage, 0)
	for _, a := range f.averages {
		if !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeReader) ActivePredictions(ctx context.Context, stationID, parameter string) (map[int]store.Prediction, error) {
	return f.preds, nil
}

func f64(v float64) *float64 { return &v }

func TestEvolutionMergesHistoryAndForecasts(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 4, 9, 0, 0, 0, loc)
	today := time.Date(2025, 6, 4, 0, 0, 0, 0, loc)

	reader := &fakeReader{preds: map[int]store.Prediction{}}
	for i := 5; i >= 1; i-- {
		reader.averages = append(reader.averages, store.DailyAverage{
			Date:      today.AddDate(0, 0, -i),
			Parameter: "pm25",
			Value:     f64(10 + float64(i)),
			Source:    store.SourceMedicionesAPI,
		})
	}
	// predictions stored with a stale date on purpose: matching is by horizon
	reader.preds[0] = store.Prediction{Date: today.AddDate(0, 0, -1), Value: 22.5, Horizon: 0, ModelName: "heuristica_semanal_v2"}
	reader.preds[1] = store.Prediction{Date: today, Value: 26.9, Horizon: 1, ModelName: "heuristica_semanal_v2"}

	entries, err := New(reader, "6699", "pm25", 5, loc).Evolution(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, entries, 7)

	for i := 0; i < 5; i++ {
		assert.Equal(t, TypeHistorical, entries[i].Type)
		assert.Equal(t, today.AddDate(0, 0, i-5), entries[i].Date)
	}

	// horizon 0 lands on today, horizon 1 on tomorrow, regardless of the
	// dates the prediction rows carry
	assert.Equal(t, TypePrediction, entries[5].Type)
	assert.Equal(t, today, entries[5].Date)
	assert.Equal(t, 22.5, entries[5].Value)
	assert.Equal(t, "Moderada", entries[5].State)

	assert.Equal(t, today.AddDate(0, 0, 1), entries[6].Date)
	assert.Equal(t, 26.9, entries[6].Value)
	assert.Equal(t, "Regular", entries[6].State)
}

func TestEvolutionFallsBackToLastHistorical(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 6, 4, 9, 0, 0, 0, loc)
	today := time.Date(2025, 6, 4, 0, 0, 0, 0, loc)

	reader := &fakeReader{
		averages: []store.DailyAverage{{
			Date:      today.AddDate(0, 0, -1),
			Parameter: "pm25",
			Value:     f64(14),
			Source:    store.SourceCSVHistorical,
		}},
		preds: map[int]store.Prediction{},
	}

	entries, err := New(reader, "6699", "pm25", 5, loc).Evolution(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, TypeHistorical, entries[0].Type)
	for _, e := range entries[1:] {
		assert.Equal(t, TypePrediction, e.Type)
		assert.Equal(t, 14.0, e.Value)
		assert.Equal(t, FallbackModel, e.Model)
		assert.Equal(t, "Buena", e.State)
	}
}

func TestEvolutionEmptyStore(t *testing.T) {
	reader := &fakeReader{preds: map[int]store.Prediction{}}
	entries, err := New(reader, "6699", "pm25", 5, time.UTC).Evolution(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
