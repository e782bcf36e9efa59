package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agripulse/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type rowSpec struct {
	date    time.Time
	variety string
	grade   string
	survey  store.SurveyType
	region  string
	market  string
	price   float64
}

func buildStore(t *testing.T, specs []rowSpec) *store.Store {
	t.Helper()
	rows := make([]store.Observation, 0, len(specs))
	for _, sp := range specs {
		region := sp.region
		if region == "" {
			region = "서울"
		}
		market := sp.market
		if market == "" {
			market = "가락시장"
		}
		rows = append(rows, store.Observation{
			Date:       sp.date,
			Commodity:  "감자",
			Variety:    sp.variety,
			Grade:      sp.grade,
			SurveyType: sp.survey,
			Region:     region,
			Market:     market,
			PricePerKG: sp.price,
			HasPrice:   true,
		})
	}
	return store.New(rows)
}

func wholeJanuary() DateRange {
	return DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 31)}
}

func TestFilter_PredicatesHold(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
		{date: day(2024, 1, 2), variety: "수미", grade: "2등", survey: store.SurveyWholesale, price: 900},
		{date: day(2024, 1, 3), variety: "대지", grade: "1등", survey: store.SurveyRetail, price: 1200},
		{date: day(2024, 2, 5), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1100},
	})

	view, err := Filter(s, FacetSelection{
		DateRange: wholeJanuary(),
		Commodity: "감자",
		Variety:   "수미",
		Grade:     "1등",
	})
	require.NoError(t, err)
	require.Equal(t, 1, view.Len())

	for _, o := range view.Rows() {
		assert.Equal(t, "감자", o.Commodity)
		assert.Equal(t, "수미", o.Variety)
		assert.Equal(t, "1등", o.Grade)
		assert.False(t, o.Date.Before(day(2024, 1, 1)))
		assert.False(t, o.Date.After(day(2024, 1, 31)))
	}
}

func TestFilter_ReversedDateRangeFailsFast(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 15), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
	})

	_, err := Filter(s, FacetSelection{
		DateRange: DateRange{Start: day(2024, 2, 1), End: day(2024, 1, 1)},
		Commodity: "감자",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date_range", verr.Field)
}

func TestFilter_EmptyViewIsValue(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
	})

	view, err := Filter(s, FacetSelection{
		DateRange: wholeJanuary(),
		Commodity: "감자",
		Variety:   "없는품종",
	})
	require.NoError(t, err)
	assert.True(t, view.Empty())

	// aggregation over an empty view is an empty series, not an error
	assert.True(t, Aggregate(view, DateBySurveyType).Empty())
}

func TestFilter_RegionAndMarketSets(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, region: "서울", market: "가락시장", price: 1000},
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, region: "부산", market: "자갈치시장", price: 800},
	})

	base := FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"}

	t.Run("empty set means no comparison series, not all", func(t *testing.T) {
		sel := base
		sel.Regions = []string{}
		view, err := Filter(s, sel)
		require.NoError(t, err)
		// nil/empty set leaves the predicate off entirely
		assert.Equal(t, 2, view.Len())
	})

	t.Run("region set narrows", func(t *testing.T) {
		sel := base
		sel.Regions = []string{"부산"}
		view, err := Filter(s, sel)
		require.NoError(t, err)
		require.Equal(t, 1, view.Len())
		assert.Equal(t, "부산", view.Rows()[0].Region)
	})

	t.Run("market set matches disambiguated label", func(t *testing.T) {
		sel := base
		sel.Markets = []string{"자갈치시장 (부산)"}
		view, err := Filter(s, sel)
		require.NoError(t, err)
		require.Equal(t, 1, view.Len())
		assert.Equal(t, "자갈치시장", view.Rows()[0].Market)
	})
}

func TestDistinct_CascadingMonotonicity(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
		{date: day(2024, 1, 2), variety: "수미", grade: "2등", survey: store.SurveyWholesale, price: 900},
		{date: day(2024, 1, 3), variety: "대지", grade: "특", survey: store.SurveyWholesale, price: 1200},
	})

	commodityView, err := Filter(s, FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"})
	require.NoError(t, err)
	varietyView, err := Filter(s, FacetSelection{DateRange: wholeJanuary(), Commodity: "감자", Variety: "수미"})
	require.NoError(t, err)

	all := commodityView.Distinct(FacetGrade)
	narrowed := varietyView.Distinct(FacetGrade)

	assert.Subset(t, all, narrowed)
	assert.Equal(t, []string{"1등", "2등"}, narrowed)
}

func TestResolveCascade(t *testing.T) {
	s := buildStore(t, []rowSpec{
		{date: day(2024, 1, 1), variety: "대지", grade: "특", survey: store.SurveyWholesale, price: 1200},
		{date: day(2024, 1, 2), variety: "수미", grade: "1등", survey: store.SurveyWholesale, price: 1000},
	})

	t.Run("stale grade is reset for new variety", func(t *testing.T) {
		sel := FacetSelection{
			DateRange: wholeJanuary(),
			Commodity: "감자",
			Variety:   "대지",
			Grade:     "1등", // valid only for 수미
		}
		resolved, resets, err := ResolveCascade(s, sel)
		require.NoError(t, err)
		assert.Equal(t, "대지", resolved.Variety)
		assert.Equal(t, "특", resolved.Grade)
		require.Len(t, resets, 1)
		assert.Equal(t, "grade", resets[0].Facet)
		assert.Equal(t, "1등", resets[0].Previous)
	})

	t.Run("empty selection resolves to first options", func(t *testing.T) {
		sel := FacetSelection{DateRange: wholeJanuary(), Commodity: "감자"}
		resolved, _, err := ResolveCascade(s, sel)
		require.NoError(t, err)
		assert.Equal(t, "대지", resolved.Variety)
		assert.Equal(t, "특", resolved.Grade)
	})

	t.Run("valid selection is untouched", func(t *testing.T) {
		sel := FacetSelection{
			DateRange: wholeJanuary(),
			Commodity: "감자",
			Variety:   "수미",
			Grade:     "1등",
		}
		resolved, resets, err := ResolveCascade(s, sel)
		require.NoError(t, err)
		assert.Empty(t, resets)
		assert.Equal(t, sel.Variety, resolved.Variety)
		assert.Equal(t, sel.Grade, resolved.Grade)
	})
}

func TestFacetSelection_Validate(t *testing.T) {
	eco := store.SurveyEco
	wholesale := store.SurveyWholesale

	tests := []struct {
		name      string
		sel       FacetSelection
		wantField string
	}{
		{
			name:      "missing dates",
			sel:       FacetSelection{Commodity: "감자"},
			wantField: "date_range",
		},
		{
			name: "start after end",
			sel: FacetSelection{
				DateRange: DateRange{Start: day(2024, 2, 1), End: day(2024, 1, 1)},
				Commodity: "감자",
			},
			wantField: "date_range",
		},
		{
			name:      "missing commodity",
			sel:       FacetSelection{DateRange: wholeJanuary()},
			wantField: "commodity",
		},
		{
			name: "eco survey type rejected",
			sel: FacetSelection{
				DateRange:  wholeJanuary(),
				Commodity:  "감자",
				SurveyType: &eco,
			},
			wantField: "survey_type",
		},
		{
			name: "valid",
			sel: FacetSelection{
				DateRange:  wholeJanuary(),
				Commodity:  "감자",
				SurveyType: &wholesale,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}
