// Package forecast implements the weekday-weighted heuristic used to
// produce today/tomorrow pollutant forecasts. The engine is pure: callers
// resolve the historical inputs, the engine only computes.
package forecast

import (
	"errors"
	"time"

	"github.com/airgijon/aircore/internal/series"
)

// Algorithm tags recorded with every prediction.
const (
	AlgorithmWeekly         = "ponderado_semanal"
	AlgorithmWeeklyFallback = "ponderado_semanal_fallback"
)

// ErrMissingInput is returned when a required prediction input is absent.
var ErrMissingInput = errors.New("forecast: missing prediction input")

// Inputs are the resolved values a single-day forecast needs.
type Inputs struct {
	TargetDate time.Time

	// ValueYesterday is the authoritative daily average for the day before
	// the target, or the previous horizon's predicted value when chaining.
	ValueYesterday *float64

	// ValueSevenDaysAgo is the daily average seven days before the target.
	// FallbackUsed marks it as the mean of the most recent available days
	// instead of the exact date.
	ValueSevenDaysAgo *float64
	FallbackUsed      bool
}

// Details captures every input and weight that produced a prediction.
type Details struct {
	ValueYesterday    float64 `json:"promedio_ayer"`
	ValueSevenDaysAgo float64 `json:"promedio_hace_7_dias"`
	WeightYesterday   float64 `json:"peso_ayer"`
	WeightWeekAgo     float64 `json:"peso_semana_anterior"`
	Weekday           int     `json:"dia_semana"`
	SaturdayOrMonday  bool    `json:"es_sabado_o_lunes"`
	FallbackUsed      bool    `json:"fallback_usado"`
}

// Result is one computed forecast day.
type Result struct {
	Date       time.Time
	Horizon    int
	Value      float64
	Confidence float64
	Algorithm  string
	Details    Details
}

// Weights returns the (yesterday, week-ago) weighting for a target date.
// Saturdays and Mondays lean on the week-ago value: the day before belongs
// to a different weekday regime.
func Weights(target time.Time) (float64, float64) {
	wd := target.Weekday()
	if wd == time.Saturday || wd == time.Monday {
		return 0.25, 0.75
	}
	return 0.75, 0.25
}

// Compute produces the forecast for one target date from resolved inputs.
func Compute(in Inputs, horizon int) (Result, error) {
	if in.ValueYesterday == nil || in.ValueSevenDaysAgo == nil {
		return Result{}, ErrMissingInput
	}

	wYesterday, wWeekAgo := Weights(in.TargetDate)
	value := *in.ValueYesterday*wYesterday + *in.ValueSevenDaysAgo*wWeekAgo

	algorithm := AlgorithmWeekly
	if in.FallbackUsed {
		algorithm = AlgorithmWeeklyFallback
	}

	wd := in.TargetDate.Weekday()
	return Result{
		Date:       in.TargetDate,
		Horizon:    horizon,
		Value:      series.Round2(value),
		Confidence: confidence(in),
		Algorithm:  algorithm,
		Details: Details{
			ValueYesterday:    *in.ValueYesterday,
			ValueSevenDaysAgo: *in.ValueSevenDaysAgo,
			WeightYesterday:   wYesterday,
			WeightWeekAgo:     wWeekAgo,
			Weekday:           int(wd),
			SaturdayOrMonday:  wd == time.Saturday || wd == time.Monday,
			FallbackUsed:      in.FallbackUsed,
		},
	}, nil
}

// ComputeHorizon0 forecasts the target date from real ground-truth inputs.
func ComputeHorizon0(in Inputs) (Result, error) {
	return Compute(in, 0)
}

// ComputeHorizon1 forecasts the day after horizon 0, reusing the horizon-0
// prediction as its yesterday input. No second ground-truth lookup happens
// for that day: the chain is one-step-ahead by construction.
func ComputeHorizon1(h0 Result, sevenDaysAgo *float64, fallbackUsed bool) (Result, error) {
	return Compute(Inputs{
		TargetDate:        h0.Date.AddDate(0, 0, 1),
		ValueYesterday:    &h0.Value,
		ValueSevenDaysAgo: sevenDaysAgo,
		FallbackUsed:      fallbackUsed,
	}, 1)
}

// confidence scores a prediction: 0.5 base, +0.2 per trusted input, capped
// at 0.9, minus 0.1 when the week-ago value came from the fallback mean.
func confidence(in Inputs) float64 {
	score := 0.5
	if in.ValueYesterday != nil {
		score += 0.2
	}
	if in.ValueSevenDaysAgo != nil && !in.FallbackUsed {
		score += 0.2
	}
	if score > 0.9 {
		score = 0.9
	}
	if in.FallbackUsed {
		score -= 0.1
	}
	return series.Round2(score)
}
