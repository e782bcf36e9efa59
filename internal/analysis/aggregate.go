package analysis

import (
	"sort"
	"time"

	"agripulse/internal/store"
)

// KeyKind selects the grouping applied by Aggregate.
type KeyKind int

const (
	// DateBySurveyType groups by (date, survey type) for wholesale/retail
	// time-series comparison
	DateBySurveyType KeyKind = iota
	// DateByRegion groups by (date, region) for comparative region series
	DateByRegion
	// DateByMarket groups by (date, market label) for comparative market series
	DateByMarket
	// MonthByRegion groups by (year-month, region) for period comparison
	MonthByRegion
	// MonthByMarket groups by (year-month, market label) for period comparison
	MonthByMarket
)

// String returns the canonical name of the key kind
func (k KeyKind) String() string {
	switch k {
	case DateBySurveyType:
		return "date_survey_type"
	case DateByRegion:
		return "date_region"
	case DateByMarket:
		return "date_market"
	case MonthByRegion:
		return "month_region"
	case MonthByMarket:
		return "month_market"
	default:
		return "unknown"
	}
}

// ParseKeyKind maps a canonical name back to its KeyKind.
func ParseKeyKind(s string) (KeyKind, bool) {
	for _, k := range []KeyKind{DateBySurveyType, DateByRegion, DateByMarket, MonthByRegion, MonthByMarket} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// AggregateRow is one group's reduction: the secondary key, the time
// component, the arithmetic mean price and the number of priced observations.
type AggregateRow struct {
	Key       string    `json:"key"`
	Period    time.Time `json:"period"`
	MeanPrice float64   `json:"mean_price"`
	N         int       `json:"n"`
}

// AggregateSeries is a comparison-ready series ordered ascending by time,
// then by secondary key. It is constructed per query and never cached across
// differing selections.
type AggregateSeries []AggregateRow

// Empty reports whether the series has no rows.
func (s AggregateSeries) Empty() bool {
	return len(s) == 0
}

// Aggregate groups the view by the requested key and reduces price-per-kg to
// an arithmetic mean. Observations with a missing price are excluded from
// both the numerator and the count, never imputed. Output ordering is
// deterministic regardless of input order.
func Aggregate(v View, kind KeyKind) AggregateSeries {
	type bucket struct {
		key    string
		period time.Time
		sum    float64
		n      int
	}

	type groupID struct {
		period int64
		key    string
	}

	buckets := make(map[groupID]*bucket)
	for _, o := range v.Rows() {
		if !o.HasPrice {
			continue
		}
		period, key := groupKey(o, kind)
		id := groupID{period: period.Unix(), key: key}
		b, ok := buckets[id]
		if !ok {
			b = &bucket{key: key, period: period}
			buckets[id] = b
		}
		b.sum += o.PricePerKG
		b.n++
	}

	series := make(AggregateSeries, 0, len(buckets))
	for _, b := range buckets {
		series = append(series, AggregateRow{
			Key:       b.key,
			Period:    b.period,
			MeanPrice: b.sum / float64(b.n),
			N:         b.n,
		})
	}

	sort.Slice(series, func(i, j int) bool {
		if !series[i].Period.Equal(series[j].Period) {
			return series[i].Period.Before(series[j].Period)
		}
		return series[i].Key < series[j].Key
	})

	return series
}

func groupKey(o store.Observation, kind KeyKind) (time.Time, string) {
	switch kind {
	case DateBySurveyType:
		return o.Date, o.SurveyType.String()
	case DateByRegion:
		return o.Date, o.Region
	case DateByMarket:
		return o.Date, o.MarketLabel()
	case MonthByRegion:
		return o.YearMonth(), o.Region
	case MonthByMarket:
		return o.YearMonth(), o.MarketLabel()
	default:
		return o.Date, o.SurveyType.String()
	}
}

// PricePoint is one dated price in a single-facet daily series.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// DailyMeans reduces the view to a time-sorted daily mean series for one
// survey type, the input shape the anomaly detector consumes.
func DailyMeans(v View, st store.SurveyType) []PricePoint {
	type bucket struct {
		sum float64
		n   int
	}

	buckets := make(map[int64]*bucket)
	dates := make(map[int64]time.Time)
	for _, o := range v.Rows() {
		if o.SurveyType != st || !o.HasPrice {
			continue
		}
		ts := o.Date.Unix()
		b, ok := buckets[ts]
		if !ok {
			b = &bucket{}
			buckets[ts] = b
			dates[ts] = o.Date
		}
		b.sum += o.PricePerKG
		b.n++
	}

	points := make([]PricePoint, 0, len(buckets))
	for ts, b := range buckets {
		points = append(points, PricePoint{Date: dates[ts], Price: b.sum / float64(b.n)})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})
	return points
}
