package series

import "math"

// HoursPerDay is the number of slots in a daily series.
const HoursPerDay = 24

// Sample is a known hourly reading within one calendar day.
type Sample struct {
	Hour  int
	Value float64
}

// Slot is one entry of the completed 24-hour series.
type Slot struct {
	Hour         int
	Value        float64
	Interpolated bool
}

// Interpolate fills the missing hours of a daily series. For each gap it
// interpolates linearly between the nearest earlier and later known hours,
// carries the single available neighbor flat when only one side exists, and
// falls back to emptyDayValue when the day has no readings at all. It never
// fails: the result always has 24 entries ordered by hour.
func Interpolate(samples []Sample, emptyDayValue float64) []Slot {
	known := make(map[int]float64, len(samples))
	for _, s := range samples {
		known[s.Hour] = s.Value
	}

	slots := make([]Slot, 0, HoursPerDay)
	for hour := 0; hour < HoursPerDay; hour++ {
		if v, ok := known[hour]; ok {
			slots = append(slots, Slot{Hour: hour, Value: v})
			continue
		}

		prevHour, prevOK := nearestBefore(known, hour)
		nextHour, nextOK := nearestAfter(known, hour)

		var value float64
		switch {
		case prevOK && nextOK:
			prev := known[prevHour]
			next := known[nextHour]
			value = prev + (next-prev)*float64(hour-prevHour)/float64(nextHour-prevHour)
		case prevOK:
			value = known[prevHour]
		case nextOK:
			value = known[nextHour]
		default:
			value = emptyDayValue
		}

		slots = append(slots, Slot{Hour: hour, Value: Round2(value), Interpolated: true})
	}

	return slots
}

func nearestBefore(known map[int]float64, hour int) (int, bool) {
	for h := hour - 1; h >= 0; h-- {
		if _, ok := known[h]; ok {
			return h, true
		}
	}
	return 0, false
}

func nearestAfter(known map[int]float64, hour int) (int, bool) {
	for h := hour + 1; h < HoursPerDay; h++ {
		if _, ok := known[h]; ok {
			return h, true
		}
	}
	return 0, false
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
