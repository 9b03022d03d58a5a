// Package evolution merges recent historical daily averages with the two
// forecast days into one ordered series for presentation.
package evolution

import (
	"context"
	"fmt"
	"time"

	"github.com/airgijon/aircore/internal/store"
)

// EntryType distinguishes measured history from forecasts.
type EntryType string

const (
	TypeHistorical EntryType = "historico"
	TypePrediction EntryType = "prediccion"
)

// FallbackModel labels prediction slots filled with the last historical
// value when no stored prediction matches.
const FallbackModel = "Fallback_Ultimo_Historico"

// Entry is one day of the assembled series.
type Entry struct {
	Date   time.Time `json:"fecha"`
	Value  float64   `json:"valor"`
	Type   EntryType `json:"tipo"`
	State  string    `json:"estado"`
	Source string    `json:"source,omitempty"`
	Model  string    `json:"modelo,omitempty"`
}

// Datastore is the read surface the assembler needs.
type Datastore interface {
	DailyAveragesBetween(ctx context.Context, from, to time.Time, parameter string) ([]store.DailyAverage, error)
	ActivePredictions(ctx context.Context, stationID, parameter string) (map[int]store.Prediction, error)
}

// Assembler builds the evolution series for one station and parameter.
type Assembler struct {
	db        Datastore
	stationID string
	parameter string
	days      int
	loc       *time.Location
}

// New builds an Assembler covering the given number of historical days.
func New(db Datastore, stationID, parameter string, days int, loc *time.Location) *Assembler {
	if days <= 0 {
		days = 5
	}
	return &Assembler{db: db, stationID: stationID, parameter: parameter, days: days, loc: loc}
}

// Evolution returns the preceding historical days followed by today and
// tomorrow. Historical ties between sources are resolved by provenance
// precedence in the store. Forecast days are matched to stored predictions
// by horizon, never by raw date: a run near midnight must not shift the
// series. Days with no data at all are absent, never invented.
func (a *Assembler) Evolution(ctx context.Context, now time.Time) ([]Entry, error) {
	today := midnight(now.In(a.loc))

	from := today.AddDate(0, 0, -a.days)
	to := today.AddDate(0, 0, -1)

	rows, err := a.db.DailyAveragesBetween(ctx, from, to, a.parameter)
	if err != nil {
		return nil, fmt.Errorf("load historical averages: %w", err)
	}

	entries := make([]Entry, 0, a.days+2)
	var lastHistorical *float64
	for _, row := range rows {
		if row.Value == nil {
			continue
		}
		state := row.State
		if state == "" {
			state = store.StateFor(row.Parameter, row.Value)
		}
		entries = append(entries, Entry{
			Date:   row.Date,
			Value:  *row.Value,
			Type:   TypeHistorical,
			State:  state,
			Source: string(row.Source),
		})
		v := *row.Value
		lastHistorical = &v
	}

	preds, err := a.db.ActivePredictions(ctx, a.stationID, a.parameter)
	if err != nil {
		return nil, fmt.Errorf("load active predictions: %w", err)
	}

	for horizon := 0; horizon <= 1; horizon++ {
		date := today.AddDate(0, 0, horizon)
		if p, ok := preds[horizon]; ok {
			entries = append(entries, Entry{
				Date:  date,
				Value: p.Value,
				Type:  TypePrediction,
				State: store.StateFor(a.parameter, &p.Value),
				Model: p.ModelName,
			})
			continue
		}
		if lastHistorical != nil {
			entries = append(entries, Entry{
				Date:  date,
				Value: *lastHistorical,
				Type:  TypePrediction,
				State: store.StateFor(a.parameter, lastHistorical),
				Model: FallbackModel,
			})
		}
	}

	return entries, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
