package analysis

import (
	"sort"
	"time"

	"agripulse/internal/store"
)

// MarginRow is the retail-minus-wholesale differential for one date where
// both sides were observed.
type MarginRow struct {
	Date      time.Time `json:"date"`
	Wholesale float64   `json:"wholesale"`
	Retail    float64   `json:"retail"`
	Margin    float64   `json:"margin"`
}

// MarginSeries is a date-ordered series of daily margins.
type MarginSeries []MarginRow

// Empty reports whether no date carried both sub-series.
func (s MarginSeries) Empty() bool {
	return len(s) == 0
}

// MonthlyMarginRow is the mean of daily margins within one calendar month.
type MonthlyMarginRow struct {
	Month      time.Time `json:"month"`
	MeanMargin float64   `json:"mean_margin"`
	N          int       `json:"n"`
}

// Margin derives the daily retail-minus-wholesale differential from a
// (date, survey type) aggregate series. The join is strictly inner: a date
// present in only one sub-series produces no margin row. When the wholesale
// or retail side is wholly absent, Margin returns ErrNotComputable instead
// of a series of nulls.
func Margin(daily AggregateSeries) (MarginSeries, error) {
	type sides struct {
		wholesale *float64
		retail    *float64
	}

	byDate := make(map[int64]*sides)
	dates := make(map[int64]time.Time)
	hasWholesale, hasRetail := false, false

	for _, row := range daily {
		ts := row.Period.Unix()
		s, ok := byDate[ts]
		if !ok {
			s = &sides{}
			byDate[ts] = s
			dates[ts] = row.Period
		}
		mean := row.MeanPrice
		switch row.Key {
		case store.SurveyWholesale.String():
			s.wholesale = &mean
			hasWholesale = true
		case store.SurveyRetail.String():
			s.retail = &mean
			hasRetail = true
		}
	}

	if !hasWholesale || !hasRetail {
		return nil, ErrNotComputable
	}

	series := make(MarginSeries, 0, len(byDate))
	for ts, s := range byDate {
		if s.wholesale == nil || s.retail == nil {
			continue
		}
		series = append(series, MarginRow{
			Date:      dates[ts],
			Wholesale: *s.wholesale,
			Retail:    *s.retail,
			Margin:    *s.retail - *s.wholesale,
		})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date.Before(series[j].Date)
	})

	return series, nil
}

// MonthlyMargin averages daily margins within each calendar month. This is
// the single standardized semantic: the mean of daily margins, which differs
// from (monthly retail mean - monthly wholesale mean) whenever daily counts
// are unequal between the two sides.
func MonthlyMargin(daily MarginSeries) []MonthlyMarginRow {
	type bucket struct {
		month time.Time
		sum   float64
		n     int
	}

	buckets := make(map[int64]*bucket)
	for _, row := range daily {
		month := time.Date(row.Date.Year(), row.Date.Month(), 1, 0, 0, 0, 0, row.Date.Location())
		ts := month.Unix()
		b, ok := buckets[ts]
		if !ok {
			b = &bucket{month: month}
			buckets[ts] = b
		}
		b.sum += row.Margin
		b.n++
	}

	out := make([]MonthlyMarginRow, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, MonthlyMarginRow{Month: b.month, MeanMargin: b.sum / float64(b.n), N: b.n})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}
