package series

// Origin labels whether a daily aggregate was computed purely from measured
// values or needed interpolated slots.
const (
	OriginOriginal     = "original"
	OriginInterpolated = "interpolated"
)

// Aggregation is the daily reduction of a completed 24-hour series.
type Aggregation struct {
	Value             float64
	Origin            string
	InterpolatedCount int
	Min               float64
	Max               float64
}

// Aggregate reduces an interpolated daily series to its mean, rounded to two
// decimals, and records how many slots were interpolated. It is pure;
// persisting the result is the caller's concern.
func Aggregate(slots []Slot) Aggregation {
	agg := Aggregation{Origin: OriginOriginal}
	if len(slots) == 0 {
		return agg
	}

	sum := 0.0
	agg.Min = slots[0].Value
	agg.Max = slots[0].Value
	for _, s := range slots {
		sum += s.Value
		if s.Value < agg.Min {
			agg.Min = s.Value
		}
		if s.Value > agg.Max {
			agg.Max = s.Value
		}
		if s.Interpolated {
			agg.InterpolatedCount++
		}
	}

	agg.Value = Round2(sum / float64(len(slots)))
	if agg.InterpolatedCount > 0 {
		agg.Origin = OriginInterpolated
	}
	return agg
}
