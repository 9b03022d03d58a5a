package series

import (
	"fmt"
	"sort"
)

// Quality gate thresholds: a day is unusable for prediction when it misses
// six or more hours in total, or three or more consecutive hours.
const (
	maxMissingHours = 6
	maxMissingRun   = 3
)

// QualityStatus classifies a day's hourly coverage.
type QualityStatus string

const (
	QualityComplete     QualityStatus = "complete"
	QualityIncomplete   QualityStatus = "incomplete"
	QualityInsufficient QualityStatus = "insufficient"
)

// QualityReport is the outcome of the coverage check for one day.
type QualityReport struct {
	Status          QualityStatus
	Message         string
	MissingHours    []int
	LongestRun      int
	ComputedAverage *float64
}

// Usable reports whether the day's data may feed aggregation and prediction.
func (r QualityReport) Usable() bool {
	return r.Status != QualityInsufficient
}

// EvaluateQuality checks a day's hourly coverage before the data is trusted
// for prediction input. Zero missing hours is complete; fewer than six
// missing with no run of three consecutive gaps is incomplete (interpolation
// proceeds); anything worse is insufficient and the day must not be
// aggregated or predicted from. For usable days the report carries the
// interpolated daily average.
func EvaluateQuality(samples []Sample, emptyDayValue float64) QualityReport {
	known := make(map[int]bool, len(samples))
	for _, s := range samples {
		known[s.Hour] = true
	}

	report := QualityReport{}
	run := 0
	for hour := 0; hour < HoursPerDay; hour++ {
		if known[hour] {
			run = 0
			continue
		}
		report.MissingHours = append(report.MissingHours, hour)
		run++
		if run > report.LongestRun {
			report.LongestRun = run
		}
	}
	sort.Ints(report.MissingHours)

	missing := len(report.MissingHours)
	switch {
	case missing == 0:
		report.Status = QualityComplete
		report.Message = "all 24 hourly readings present"
	case missing < maxMissingHours && report.LongestRun < maxMissingRun:
		report.Status = QualityIncomplete
		report.Message = fmt.Sprintf("%d hours missing (longest run %d), interpolation applies", missing, report.LongestRun)
	default:
		report.Status = QualityInsufficient
		report.Message = fmt.Sprintf("%d hours missing (longest run %d), coverage insufficient", missing, report.LongestRun)
	}

	if report.Status != QualityInsufficient {
		agg := Aggregate(Interpolate(samples, emptyDayValue))
		report.ComputedAverage = &agg.Value
	}

	return report
}
