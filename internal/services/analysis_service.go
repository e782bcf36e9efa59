package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"agripulse/internal/analysis"
	"agripulse/internal/store"
)

// AnalysisService orchestrates the analysis pipeline over the observation
// store: filter, aggregate, margin, anomaly detection and summary
// indicators. Each query is a synchronous, deterministic pipeline run; the
// store is shared immutable state, so no locking is needed.
type AnalysisService struct {
	store         *store.Store
	logger        *slog.Logger
	tracer        trace.Tracer
	metrics       *Metrics
	defaultWindow int
}

// AnalysisOption configures the service.
type AnalysisOption func(*AnalysisService)

// WithTracer sets the tracer used for pipeline spans.
func WithTracer(tracer trace.Tracer) AnalysisOption {
	return func(s *AnalysisService) { s.tracer = tracer }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) AnalysisOption {
	return func(s *AnalysisService) { s.metrics = m }
}

// WithDefaultWindow sets the rolling window used when a request omits one.
func WithDefaultWindow(window int) AnalysisOption {
	return func(s *AnalysisService) { s.defaultWindow = window }
}

// NewAnalysisService creates an analysis service over a loaded store.
func NewAnalysisService(st *store.Store, logger *slog.Logger, opts ...AnalysisOption) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AnalysisService{
		store:         st,
		logger:        logger,
		tracer:        noop.NewTracerProvider().Tracer("agripulse"),
		defaultWindow: 7,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		s.metrics.StoreRows.Set(float64(st.Len()))
	}
	return s
}

// Store exposes the underlying observation store.
func (s *AnalysisService) Store() *store.Store {
	return s.store
}

// DefaultWindow returns the configured fallback rolling window.
func (s *AnalysisService) DefaultWindow() int {
	return s.defaultWindow
}

// FacetOptions is the cascading option-list bundle for one selection state.
type FacetOptions struct {
	Commodities []string                `json:"commodities"`
	Varieties   []string                `json:"varieties"`
	Grades      []string                `json:"grades"`
	Regions     []string                `json:"regions"`
	Markets     []string                `json:"markets"`
	Selection   analysis.FacetSelection `json:"selection"`
	Resets      []analysis.CascadeReset `json:"resets,omitempty"`
	NoData      bool                    `json:"no_data"`
}

// Options recomputes the cascading facet option lists for the given
// selection. Variety options reflect the date+commodity view and grade
// options the variety view; stale downstream values are reset and reported.
func (s *AnalysisService) Options(ctx context.Context, sel analysis.FacetSelection) (*FacetOptions, error) {
	return withSpan(s, ctx, "options", func(ctx context.Context) (*FacetOptions, error) {
		resolved, resets, err := analysis.ResolveCascade(s.store, sel)
		if err != nil {
			return nil, err
		}

		view, err := analysis.Filter(s.store, resolved)
		if err != nil {
			return nil, err
		}

		varietyBase := resolved
		varietyBase.Variety = ""
		varietyBase.Grade = ""
		varietyView, err := analysis.Filter(s.store, varietyBase)
		if err != nil {
			return nil, err
		}

		gradeBase := resolved
		gradeBase.Grade = ""
		gradeView, err := analysis.Filter(s.store, gradeBase)
		if err != nil {
			return nil, err
		}

		return &FacetOptions{
			Commodities: s.store.Commodities(),
			Varieties:   varietyView.Distinct(analysis.FacetVariety),
			Grades:      gradeView.Distinct(analysis.FacetGrade),
			Regions:     view.Distinct(analysis.FacetRegion),
			Markets:     view.Distinct(analysis.FacetMarket),
			Selection:   resolved,
			Resets:      resets,
			NoData:      view.Empty(),
		}, nil
	})
}

// SeriesResult wraps an aggregate series with its emptiness flag.
type SeriesResult struct {
	Kind   string                   `json:"kind"`
	Series analysis.AggregateSeries `json:"series"`
	NoData bool                     `json:"no_data"`
}

// Aggregate filters the store by the selection and reduces it under the
// requested grouping. An empty result is a value, not an error.
func (s *AnalysisService) Aggregate(ctx context.Context, sel analysis.FacetSelection, kind analysis.KeyKind) (*SeriesResult, error) {
	return withSpan(s, ctx, "aggregate", func(ctx context.Context) (*SeriesResult, error) {
		view, err := analysis.Filter(s.store, sel)
		if err != nil {
			return nil, err
		}
		series := analysis.Aggregate(view, kind)
		return &SeriesResult{
			Kind:   kind.String(),
			Series: series,
			NoData: series.Empty(),
		}, nil
	})
}

// MarginResult bundles daily and monthly margin with the period average.
type MarginResult struct {
	Daily         analysis.MarginSeries       `json:"daily"`
	Monthly       []analysis.MonthlyMarginRow `json:"monthly"`
	AverageMargin float64                     `json:"average_margin"`
	NoData        bool                        `json:"no_data"`
}

// MarginReport computes the daily retail-minus-wholesale margin and its
// monthly means. When one side is wholly absent, ErrNotComputable
// propagates; an empty filtered view short-circuits to a no-data result
// before any pivoting is attempted.
func (s *AnalysisService) MarginReport(ctx context.Context, sel analysis.FacetSelection) (*MarginResult, error) {
	return withSpan(s, ctx, "margin", func(ctx context.Context) (*MarginResult, error) {
		view, err := analysis.Filter(s.store, sel)
		if err != nil {
			return nil, err
		}
		if view.Empty() {
			return &MarginResult{NoData: true}, nil
		}

		daily, err := analysis.Margin(analysis.Aggregate(view, analysis.DateBySurveyType))
		if err != nil {
			return nil, err
		}
		if daily.Empty() {
			return &MarginResult{NoData: true}, nil
		}

		monthly := analysis.MonthlyMargin(daily)
		var sum float64
		for _, m := range monthly {
			sum += m.MeanMargin
		}

		return &MarginResult{
			Daily:         daily,
			Monthly:       monthly,
			AverageMargin: sum / float64(len(monthly)),
		}, nil
	})
}

// AnomalyResult bundles the annotated wholesale series with its summaries.
type AnomalyResult struct {
	Window     int                            `json:"window"`
	Series     analysis.AnnotatedSeries       `json:"series"`
	Summary    analysis.AnomalySummary        `json:"summary"`
	Monthly    []analysis.MonthlyAnomalyCount `json:"monthly"`
	Volatility []analysis.MonthlyVolatilityRow `json:"volatility"`
	NoData     bool                           `json:"no_data"`
}

// DetectAnomalies runs the rolling band detector over the wholesale daily
// series of the selection. A zero window falls back to the configured
// default; a series shorter than the window fails with
// InsufficientDataError.
func (s *AnalysisService) DetectAnomalies(ctx context.Context, sel analysis.FacetSelection, window int) (*AnomalyResult, error) {
	if window == 0 {
		window = s.defaultWindow
	}

	return withSpan(s, ctx, "detect", func(ctx context.Context) (*AnomalyResult, error) {
		wholesale := store.SurveyWholesale
		sel.SurveyType = &wholesale

		view, err := analysis.Filter(s.store, sel)
		if err != nil {
			return nil, err
		}
		if view.Empty() {
			return &AnomalyResult{Window: window, NoData: true}, nil
		}

		daily := analysis.DailyMeans(view, store.SurveyWholesale)
		annotated, err := analysis.Detect(daily, window)
		if err != nil {
			return nil, err
		}

		return &AnomalyResult{
			Window:     window,
			Series:     annotated,
			Summary:    annotated.Summary(),
			Monthly:    analysis.MonthlyAnomalyCounts(annotated),
			Volatility: analysis.MonthlyVolatility(daily),
		}, nil
	})
}

// SurveyIndicators are the headline figures for one survey type.
type SurveyIndicators struct {
	PeriodMean  float64 `json:"period_mean"`
	Latest      float64 `json:"latest"`
	LatestDelta float64 `json:"latest_delta"`
	Days        int     `json:"days"`
}

// SummaryResult is the indicator bundle shared by the overview pages.
type SummaryResult struct {
	Wholesale     *SurveyIndicators `json:"wholesale,omitempty"`
	Retail        *SurveyIndicators `json:"retail,omitempty"`
	AverageMargin *float64          `json:"average_margin,omitempty"`
	NoData        bool              `json:"no_data"`
}

// Summary derives the scalar indicators: period mean and latest-vs-mean
// delta per survey type, plus the period average margin when both sides
// exist.
func (s *AnalysisService) Summary(ctx context.Context, sel analysis.FacetSelection) (*SummaryResult, error) {
	return withSpan(s, ctx, "summary", func(ctx context.Context) (*SummaryResult, error) {
		view, err := analysis.Filter(s.store, sel)
		if err != nil {
			return nil, err
		}
		if view.Empty() {
			return &SummaryResult{NoData: true}, nil
		}

		out := &SummaryResult{}
		out.Wholesale = surveyIndicators(view, store.SurveyWholesale)
		out.Retail = surveyIndicators(view, store.SurveyRetail)

		daily, err := analysis.Margin(analysis.Aggregate(view, analysis.DateBySurveyType))
		if err == nil && !daily.Empty() {
			monthly := analysis.MonthlyMargin(daily)
			var sum float64
			for _, m := range monthly {
				sum += m.MeanMargin
			}
			avg := sum / float64(len(monthly))
			out.AverageMargin = &avg
		}

		out.NoData = out.Wholesale == nil && out.Retail == nil
		return out, nil
	})
}

func surveyIndicators(view analysis.View, st store.SurveyType) *SurveyIndicators {
	daily := analysis.DailyMeans(view, st)
	mean, ok := analysis.PeriodMean(daily)
	if !ok {
		return nil
	}
	delta, _ := analysis.LatestDelta(daily)
	return &SurveyIndicators{
		PeriodMean:  mean,
		Latest:      daily[len(daily)-1].Price,
		LatestDelta: delta,
		Days:        len(daily),
	}
}

// withSpan wraps one pipeline run with tracing, metrics and logging.
func withSpan[T any](s *AnalysisService, ctx context.Context, operation string, fn func(context.Context) (*T, error)) (*T, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("analysis.%s", operation),
		trace.WithAttributes(attribute.String("operation", operation)))
	defer span.End()

	result, err := fn(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
	}
	if s.metrics != nil {
		s.metrics.QueriesTotal.WithLabelValues(operation, outcome).Inc()
		s.metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	s.logger.DebugContext(ctx, "analysis query finished",
		slog.String("operation", operation),
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)
	return result, err
}
