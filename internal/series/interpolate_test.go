package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDay(value float64) []Sample {
	samples := make([]Sample, 0, HoursPerDay)
	for h := 0; h < HoursPerDay; h++ {
		samples = append(samples, Sample{Hour: h, Value: value})
	}
	return samples
}

func TestInterpolateLinearMidpoint(t *testing.T) {
	samples := fullDay(10)
	// drop hour 12, set neighbors to force a midpoint
	samples = append(samples[:12], samples[13:]...)
	for i := range samples {
		switch samples[i].Hour {
		case 11:
			samples[i].Value = 10
		case 13:
			samples[i].Value = 20
		}
	}

	slots := Interpolate(samples, 25.0)
	require.Len(t, slots, HoursPerDay)

	assert.Equal(t, 15.0, slots[12].Value)
	assert.True(t, slots[12].Interpolated)
	assert.False(t, slots[11].Interpolated)
}

func TestInterpolateUnevenGap(t *testing.T) {
	samples := []Sample{{Hour: 10, Value: 10}, {Hour: 14, Value: 30}}
	slots := Interpolate(samples, 25.0)

	// hours 11..13 sit on the line between 10h=10 and 14h=30
	assert.Equal(t, 15.0, slots[11].Value)
	assert.Equal(t, 20.0, slots[12].Value)
	assert.Equal(t, 25.0, slots[13].Value)
}

func TestInterpolateEdgeCarry(t *testing.T) {
	t.Run("carry backward at hour 0", func(t *testing.T) {
		samples := fullDay(12)[1:]
		for i := range samples {
			if samples[i].Hour == 1 {
				samples[i].Value = 8
			}
		}
		slots := Interpolate(samples, 25.0)
		assert.Equal(t, 8.0, slots[0].Value)
		assert.True(t, slots[0].Interpolated)
	})

	t.Run("carry forward at hour 23", func(t *testing.T) {
		samples := fullDay(12)[:23]
		for i := range samples {
			if samples[i].Hour == 22 {
				samples[i].Value = 17.5
			}
		}
		slots := Interpolate(samples, 25.0)
		assert.Equal(t, 17.5, slots[23].Value)
		assert.True(t, slots[23].Interpolated)
	})
}

func TestInterpolateEmptyDayUsesDefault(t *testing.T) {
	slots := Interpolate(nil, 25.0)
	require.Len(t, slots, HoursPerDay)
	for _, s := range slots {
		assert.Equal(t, 25.0, s.Value)
		assert.True(t, s.Interpolated)
	}
}

func TestInterpolateCompleteDayUntouched(t *testing.T) {
	slots := Interpolate(fullDay(9.37), 25.0)
	require.Len(t, slots, HoursPerDay)
	for _, s := range slots {
		assert.Equal(t, 9.37, s.Value)
		assert.False(t, s.Interpolated)
	}
}
