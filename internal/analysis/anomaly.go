package analysis

import (
	"math"
	"time"
)

// StandardWindows are the trailing window lengths exposed as selectable
// granularities. Detect accepts any positive window up to the series length.
var StandardWindows = []int{7, 14, 30}

// BandWidth is the number of standard deviations on each side of the moving
// average that bounds normal prices.
const BandWidth = 2.0

// AnnotatedPoint extends one daily observation with its trailing-window
// statistics. Pointer fields are nil where the window has not yet filled;
// undefined is distinct from zero.
type AnnotatedPoint struct {
	Date      time.Time `json:"date"`
	Price     float64   `json:"price"`
	MovingAvg *float64  `json:"moving_avg,omitempty"`
	MovingStd *float64  `json:"moving_std,omitempty"`
	UpperBand *float64  `json:"upper_band,omitempty"`
	LowerBand *float64  `json:"lower_band,omitempty"`
	IsSpike   bool      `json:"is_spike"`
	IsCrash   bool      `json:"is_crash"`
}

// AnnotatedSeries is a single-facet daily series annotated with rolling
// band statistics and spike/crash flags.
type AnnotatedSeries []AnnotatedPoint

// AnomalySummary holds the scalar indicators derived from an annotated
// series. LatestVolatility is the percentage coefficient of variation at the
// most recent point, nil when the band there is undefined or the moving
// average is zero.
type AnomalySummary struct {
	SpikeCount       int      `json:"spike_count"`
	CrashCount       int      `json:"crash_count"`
	LatestVolatility *float64 `json:"latest_volatility,omitempty"`
}

// Detect computes trailing moving average and sample standard deviation over
// the given window and classifies each point against the mean ± 2·std band.
// The window is strictly causal: statistics at index i use prices
// [i-window+1, i] only, so a future price can never change an earlier flag.
// The first window-1 points have undefined bands and false flags. A series
// shorter than the window fails with InsufficientDataError rather than
// silently producing an all-undefined series.
func Detect(series []PricePoint, window int) (AnnotatedSeries, error) {
	if window <= 0 {
		return nil, &ValidationError{Field: "window", Message: "window must be positive"}
	}
	if len(series) < window {
		return nil, &InsufficientDataError{Have: len(series), Need: window}
	}

	annotated := make(AnnotatedSeries, len(series))
	for i, p := range series {
		annotated[i] = AnnotatedPoint{Date: p.Date, Price: p.Price}
		if i < window-1 {
			continue
		}

		slice := series[i-window+1 : i+1]
		mean := meanPrice(slice)
		annotated[i].MovingAvg = &mean

		// Sample standard deviation needs at least two points; a window of
		// one leaves the band undefined, matching the undefined-not-zero rule.
		if window < 2 {
			continue
		}
		var sq float64
		for _, q := range slice {
			d := q.Price - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(window-1))
		upper := mean + BandWidth*std
		lower := mean - BandWidth*std

		annotated[i].MovingStd = &std
		annotated[i].UpperBand = &upper
		annotated[i].LowerBand = &lower
		annotated[i].IsSpike = p.Price > upper
		annotated[i].IsCrash = p.Price < lower
	}

	return annotated, nil
}

// Summary derives spike/crash counts and the latest coefficient of variation.
func (s AnnotatedSeries) Summary() AnomalySummary {
	var out AnomalySummary
	for _, p := range s {
		if p.IsSpike {
			out.SpikeCount++
		}
		if p.IsCrash {
			out.CrashCount++
		}
	}

	if len(s) > 0 {
		last := s[len(s)-1]
		if last.MovingAvg != nil && last.MovingStd != nil && *last.MovingAvg != 0 {
			cv := *last.MovingStd / *last.MovingAvg * 100
			out.LatestVolatility = &cv
		}
	}
	return out
}

func meanPrice(points []PricePoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Price
	}
	return sum / float64(len(points))
}
