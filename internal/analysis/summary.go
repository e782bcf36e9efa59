package analysis

import (
	"math"
	"sort"
	"time"
)

// PeriodMean returns the arithmetic mean of a daily series. ok is false for
// an empty series.
func PeriodMean(series []PricePoint) (mean float64, ok bool) {
	if len(series) == 0 {
		return 0, false
	}
	return meanPrice(series), true
}

// LatestDelta returns the latest price minus the period mean, the indicator
// used to flag a price as above or below its typical level. ok is false for
// an empty series.
func LatestDelta(series []PricePoint) (delta float64, ok bool) {
	mean, ok := PeriodMean(series)
	if !ok {
		return 0, false
	}
	return series[len(series)-1].Price - mean, true
}

// MonthlyAnomalyCount is the number of spike and crash days within one month.
type MonthlyAnomalyCount struct {
	Month   time.Time `json:"month"`
	Spikes  int       `json:"spikes"`
	Crashes int       `json:"crashes"`
}

// MonthlyAnomalyCounts groups an annotated series by calendar month and sums
// the spike/crash flags.
func MonthlyAnomalyCounts(series AnnotatedSeries) []MonthlyAnomalyCount {
	buckets := make(map[int64]*MonthlyAnomalyCount)
	for _, p := range series {
		month := time.Date(p.Date.Year(), p.Date.Month(), 1, 0, 0, 0, 0, p.Date.Location())
		ts := month.Unix()
		b, ok := buckets[ts]
		if !ok {
			b = &MonthlyAnomalyCount{Month: month}
			buckets[ts] = b
		}
		if p.IsSpike {
			b.Spikes++
		}
		if p.IsCrash {
			b.Crashes++
		}
	}

	out := make([]MonthlyAnomalyCount, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}

// MonthlyVolatilityRow summarizes price dispersion within one month. CV is
// nil when fewer than two prices exist or the mean is zero.
type MonthlyVolatilityRow struct {
	Month     time.Time `json:"month"`
	MeanPrice float64   `json:"mean_price"`
	Std       *float64  `json:"std,omitempty"`
	CV        *float64  `json:"cv,omitempty"`
	N         int       `json:"n"`
}

// MonthlyVolatility computes the per-month mean, sample standard deviation
// and coefficient of variation of a daily series.
func MonthlyVolatility(series []PricePoint) []MonthlyVolatilityRow {
	byMonth := make(map[int64][]PricePoint)
	months := make(map[int64]time.Time)
	for _, p := range series {
		month := time.Date(p.Date.Year(), p.Date.Month(), 1, 0, 0, 0, 0, p.Date.Location())
		ts := month.Unix()
		byMonth[ts] = append(byMonth[ts], p)
		months[ts] = month
	}

	out := make([]MonthlyVolatilityRow, 0, len(byMonth))
	for ts, points := range byMonth {
		row := MonthlyVolatilityRow{
			Month:     months[ts],
			MeanPrice: meanPrice(points),
			N:         len(points),
		}
		if len(points) > 1 {
			var sq float64
			for _, p := range points {
				d := p.Price - row.MeanPrice
				sq += d * d
			}
			std := math.Sqrt(sq / float64(len(points)-1))
			row.Std = &std
			if row.MeanPrice != 0 {
				cv := std / row.MeanPrice
				row.CV = &cv
			}
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Month.Before(out[j].Month)
	})
	return out
}
