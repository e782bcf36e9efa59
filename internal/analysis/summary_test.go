package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodMean(t *testing.T) {
	series := []PricePoint{
		{Date: day(2024, 1, 1), Price: 1000},
		{Date: day(2024, 1, 2), Price: 1500},
	}

	mean, ok := PeriodMean(series)
	require.True(t, ok)
	assert.InDelta(t, 1250, mean, 1e-9)

	_, ok = PeriodMean(nil)
	assert.False(t, ok)
}

func TestLatestDelta(t *testing.T) {
	series := []PricePoint{
		{Date: day(2024, 1, 1), Price: 1000},
		{Date: day(2024, 1, 2), Price: 1100},
		{Date: day(2024, 1, 3), Price: 1600},
	}

	delta, ok := LatestDelta(series)
	require.True(t, ok)
	// 1600 - mean(1233.33)
	assert.InDelta(t, 1600-3700.0/3, delta, 1e-9)

	_, ok = LatestDelta(nil)
	assert.False(t, ok)
}

func TestMonthlyAnomalyCounts(t *testing.T) {
	series := AnnotatedSeries{
		{Date: day(2024, 1, 5), IsSpike: true},
		{Date: day(2024, 1, 20)},
		{Date: day(2024, 1, 25), IsSpike: true},
		{Date: day(2024, 2, 2), IsCrash: true},
	}

	counts := MonthlyAnomalyCounts(series)
	require.Len(t, counts, 2)

	assert.Equal(t, day(2024, 1, 1), counts[0].Month)
	assert.Equal(t, 2, counts[0].Spikes)
	assert.Equal(t, 0, counts[0].Crashes)

	assert.Equal(t, day(2024, 2, 1), counts[1].Month)
	assert.Equal(t, 0, counts[1].Spikes)
	assert.Equal(t, 1, counts[1].Crashes)
}

func TestMonthlyVolatility(t *testing.T) {
	series := []PricePoint{
		{Date: day(2024, 1, 1), Price: 1000},
		{Date: day(2024, 1, 2), Price: 1200},
		{Date: day(2024, 2, 1), Price: 900},
	}

	rows := MonthlyVolatility(series)
	require.Len(t, rows, 2)

	jan := rows[0]
	assert.Equal(t, day(2024, 1, 1), jan.Month)
	assert.InDelta(t, 1100, jan.MeanPrice, 1e-9)
	assert.Equal(t, 2, jan.N)
	require.NotNil(t, jan.Std)
	assert.InDelta(t, 141.4213562, *jan.Std, 1e-6)
	require.NotNil(t, jan.CV)
	assert.InDelta(t, 141.4213562/1100, *jan.CV, 1e-9)

	feb := rows[1]
	assert.Equal(t, 1, feb.N)
	assert.Nil(t, feb.Std, "single observation has no sample deviation")
	assert.Nil(t, feb.CV)
}

func TestMonthlyVolatility_Empty(t *testing.T) {
	assert.Empty(t, MonthlyVolatility(nil))
}
