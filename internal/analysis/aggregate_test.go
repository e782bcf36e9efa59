package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agripulse/internal/store"
)

func TestAggregate_DateBySurveyType(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyWholesale, market: "가락시장", price: 1000},
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyWholesale, market: "강서시장", price: 1200},
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyRetail, price: 1500},
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 900},
	})

	view, err := Filter(s, FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"})
	require.NoError(t, err)

	series := Aggregate(view, DateBySurveyType)
	require.Len(t, series, 3)

	// ascending by date, then key
	assert.Equal(t, day(2024, 1, 1), series[0].Period)
	assert.Equal(t, store.SurveyWholesale.String(), series[0].Key)
	assert.InDelta(t, 900, series[0].MeanPrice, 1e-9)
	assert.Equal(t, 1, series[0].N)

	assert.Equal(t, day(2024, 1, 2), series[1].Period)
	assert.Equal(t, store.SurveyRetail.String(), series[1].Key)

	assert.Equal(t, store.SurveyWholesale.String(), series[2].Key)
	assert.InDelta(t, 1100, series[2].MeanPrice, 1e-9)
	assert.Equal(t, 2, series[2].N)
}

func TestAggregate_MissingPricesExcluded(t *testing.T) {
	rows := []store.Observation{
		{Date: day(2024, 1, 1), Commodity: "감자", SurveyType: store.SurveyWholesale, Region: "서울", Market: "가락시장", PricePerKG: 1000, HasPrice: true},
		{Date: day(2024, 1, 1), Commodity: "감자", SurveyType: store.SurveyWholesale, Region: "서울", Market: "가락시장", HasPrice: false},
	}
	s := store.New(rows)

	view, err := Filter(s, FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"})
	require.NoError(t, err)

	series := Aggregate(view, DateBySurveyType)
	require.Len(t, series, 1)
	assert.InDelta(t, 1000, series[0].MeanPrice, 1e-9)
	assert.Equal(t, 1, series[0].N)
}

func TestAggregate_MonthByMarket(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 5), variety: "수미", grade: "1등", survey: store.SurveyWholesale, region: "서울", market: "가락시장", price: 1000},
		{date: day(2024, 1, 20), variety: "수미", grade: "1등", survey: store.SurveyWholesale, region: "서울", market: "가락시장", price: 1400},
		{date: day(2024, 2, 3), variety: "수미", grade: "1등", survey: store.SurveyWholesale, region: "부산", market: "자갈치시장", price: 800},
	})

	view, err := Filter(s, FacetSelection{
		DateRange: DateRange{Start: day(2024, 1, 1), End: day(2024, 2, 29)},
		Commodity: "감자",
	})
	require.NoError(t, err)

	series := Aggregate(view, MonthByMarket)
	require.Len(t, series, 2)

	assert.Equal(t, day(2024, 1, 1), series[0].Period)
	assert.Equal(t, "가락시장 (서울)", series[0].Key)
	assert.InDelta(t, 1200, series[0].MeanPrice, 1e-9)
	assert.Equal(t, 2, series[0].N)

	assert.Equal(t, day(2024, 2, 1), series[1].Period)
	assert.Equal(t, "자갈치시장 (부산)", series[1].Key)
}

func TestAggregate_Idempotent(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyRetail, price: 1500},
	})

	sel := FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"}
	first, err := Filter(s, sel)
	require.NoError(t, err)
	second, err := Filter(s, sel)
	require.NoError(t, err)

	assert.Equal(t, Aggregate(first, DateBySurveyType), Aggregate(second, DateBySurveyType))
}

func TestParseKeyKind(t *testing.T) {
	for _, k := range []KeyKind{DateBySurveyType, DateByRegion, DateByMarket, MonthByRegion, MonthByMarket} {
		parsed, ok := ParseKeyKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, parsed)
	}

	_, ok := ParseKeyKind("bogus")
	assert.False(t, ok)
}

func TestDailyMeans(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyWholesale, market: "가락시장", price: 1000},
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyWholesale, market: "강서시장", price: 1300},
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 900},
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyRetail, price: 1500},
	})

	view, err := Filter(s, FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"})
	require.NoError(t, err)

	points := DailyMeans(view, store.SurveyWholesale)
	require.Len(t, points, 2)
	assert.Equal(t, day(2024, 1, 1), points[0].Date)
	assert.InDelta(t, 900, points[0].Price, 1e-9)
	assert.Equal(t, day(2024, 1, 2), points[1].Date)
	assert.InDelta(t, 1150, points[1].Price, 1e-9)

	assert.Empty(t, DailyMeans(View{}, store.SurveyWholesale))
}
