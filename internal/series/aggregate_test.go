package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateOriginalTag(t *testing.T) {
	slots := Interpolate(fullDay(18.4), 25.0)
	agg := Aggregate(slots)

	assert.Equal(t, 18.4, agg.Value)
	assert.Equal(t, OriginOriginal, agg.Origin)
	assert.Equal(t, 0, agg.InterpolatedCount)
}

func TestAggregateInterpolatedTag(t *testing.T) {
	samples := fullDay(10)
	samples = append(samples[:5], samples[6:]...) // drop hour 5
	agg := Aggregate(Interpolate(samples, 25.0))

	assert.Equal(t, OriginInterpolated, agg.Origin)
	assert.Equal(t, 1, agg.InterpolatedCount)
	assert.Equal(t, 10.0, agg.Value)
}

func TestAggregateRounding(t *testing.T) {
	slots := []Slot{{Hour: 0, Value: 10}, {Hour: 1, Value: 10}, {Hour: 2, Value: 11}}
	agg := Aggregate(slots)
	assert.Equal(t, 10.33, agg.Value)
}

func TestAggregateMinMax(t *testing.T) {
	slots := []Slot{{Hour: 0, Value: 7}, {Hour: 1, Value: 31}, {Hour: 2, Value: 12}}
	agg := Aggregate(slots)
	assert.Equal(t, 7.0, agg.Min)
	assert.Equal(t, 31.0, agg.Max)
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil)
	assert.Equal(t, 0.0, agg.Value)
	assert.Equal(t, OriginOriginal, agg.Origin)
}
