// Command analyze runs the full analysis pipeline for one facet selection
// against a local dataset and writes CSV and JSON reports.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"agripulse/internal/analysis"
	"agripulse/internal/services"
	"agripulse/internal/store"
)

func main() {
	dataPath := flag.String("data", "data/observations.csv", "path to the observation dataset (csv, zip or xlsx)")
	commodity := flag.String("commodity", "", "commodity to analyze (required)")
	variety := flag.String("variety", "", "variety filter (defaults to first available)")
	grade := flag.String("grade", "", "grade filter (defaults to first available)")
	from := flag.String("from", "", "start date YYYY-MM-DD (defaults to dataset start)")
	to := flag.String("to", "", "end date YYYY-MM-DD (defaults to dataset end)")
	window := flag.Int("window", 7, "rolling window for anomaly detection")
	outDir := flag.String("out", "reports", "output directory for report files")
	flag.Parse()

	if *commodity == "" {
		slog.Error("commodity is required", "hint", "pass -commodity with a name present in the dataset")
		os.Exit(1)
	}

	ctx := context.Background()
	st, err := loadStore(ctx, *dataPath)
	if err != nil {
		slog.Error("failed to load dataset", "path", *dataPath, "error", err)
		os.Exit(1)
	}
	slog.Info("dataset loaded", "observations", st.Len(), "dropped", st.Dropped())

	sel, err := buildSelection(st, *commodity, *variety, *grade, *from, *to)
	if err != nil {
		slog.Error("invalid selection", "error", err)
		os.Exit(1)
	}
	slog.Info("selection resolved",
		"commodity", sel.Commodity,
		"variety", sel.Variety,
		"grade", sel.Grade,
		"from", sel.DateRange.Start.Format("2006-01-02"),
		"to", sel.DateRange.End.Format("2006-01-02"),
	)

	svc := services.NewAnalysisService(st, slog.Default(), services.WithDefaultWindow(*window))

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "dir", *outDir, "error", err)
		os.Exit(1)
	}

	if err := writeReports(ctx, svc, sel, *window, *outDir); err != nil {
		slog.Error("failed to write reports", "error", err)
		os.Exit(1)
	}
	slog.Info("reports written", "dir", *outDir)
}

func loadStore(ctx context.Context, path string) (*store.Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return store.LoadZip(ctx, path)
	case ".xlsx":
		return store.LoadExcel(ctx, path)
	default:
		return store.LoadCSV(ctx, path)
	}
}

func buildSelection(st *store.Store, commodity, variety, grade, from, to string) (analysis.FacetSelection, error) {
	start, end, ok := st.DateRange()
	if !ok {
		return analysis.FacetSelection{}, fmt.Errorf("dataset is empty")
	}
	if from != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return analysis.FacetSelection{}, fmt.Errorf("parse -from: %w", err)
		}
		start = parsed
	}
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return analysis.FacetSelection{}, fmt.Errorf("parse -to: %w", err)
		}
		end = parsed
	}

	sel := analysis.FacetSelection{
		DateRange: analysis.DateRange{Start: start, End: end},
		Commodity: commodity,
		Variety:   variety,
		Grade:     grade,
	}

	resolved, resets, err := analysis.ResolveCascade(st, sel)
	if err != nil {
		return analysis.FacetSelection{}, err
	}
	for _, reset := range resets {
		slog.Warn("selection adjusted to available data",
			"facet", reset.Facet, "previous", reset.Previous, "current", reset.Current)
	}
	return resolved, nil
}

func writeReports(ctx context.Context, svc *services.AnalysisService, sel analysis.FacetSelection, window int, outDir string) error {
	daily, err := svc.Aggregate(ctx, sel, analysis.DateBySurveyType)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if daily.NoData {
		return fmt.Errorf("no data for this selection")
	}
	if err := writeAggregateCSV(filepath.Join(outDir, "daily_prices.csv"), daily.Series); err != nil {
		return err
	}

	margin, err := svc.MarginReport(ctx, sel)
	if err != nil {
		slog.Warn("margin not computable for this selection", "error", err)
	} else if !margin.NoData {
		if err := writeMarginCSV(filepath.Join(outDir, "margin.csv"), margin.Daily); err != nil {
			return err
		}
	}

	anomalies, err := svc.DetectAnomalies(ctx, sel, window)
	if err != nil {
		return fmt.Errorf("detect anomalies: %w", err)
	}
	if !anomalies.NoData {
		if err := writeAnomalyCSV(filepath.Join(outDir, "anomalies.csv"), anomalies.Series); err != nil {
			return err
		}
	}

	summary, err := svc.Summary(ctx, sel)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	report := map[string]any{
		"selection": sel,
		"summary":   summary,
		"anomalies": anomalies.Summary,
		"window":    anomalies.Window,
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return os.WriteFile(filepath.Join(outDir, "summary.json"), data, 0o644)
}

func writeAggregateCSV(path string, series analysis.AggregateSeries) error {
	return writeCSV(path, []string{"Period", "Key", "MeanPrice", "N"}, len(series), func(i int) []string {
		row := series[i]
		return []string{
			row.Period.Format("2006-01-02"),
			row.Key,
			strconv.FormatFloat(row.MeanPrice, 'f', 2, 64),
			strconv.Itoa(row.N),
		}
	})
}

func writeMarginCSV(path string, series analysis.MarginSeries) error {
	return writeCSV(path, []string{"Date", "Wholesale", "Retail", "Margin"}, len(series), func(i int) []string {
		row := series[i]
		return []string{
			row.Date.Format("2006-01-02"),
			strconv.FormatFloat(row.Wholesale, 'f', 2, 64),
			strconv.FormatFloat(row.Retail, 'f', 2, 64),
			strconv.FormatFloat(row.Margin, 'f', 2, 64),
		}
	})
}

func writeAnomalyCSV(path string, series analysis.AnnotatedSeries) error {
	format := func(v *float64) string {
		if v == nil {
			return ""
		}
		return strconv.FormatFloat(*v, 'f', 2, 64)
	}
	return writeCSV(path, []string{"Date", "Price", "MovingAvg", "MovingStd", "UpperBand", "LowerBand", "IsSpike", "IsCrash"}, len(series), func(i int) []string {
		p := series[i]
		return []string{
			p.Date.Format("2006-01-02"),
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			format(p.MovingAvg),
			format(p.MovingStd),
			format(p.UpperBand),
			format(p.LowerBand),
			strconv.FormatBool(p.IsSpike),
			strconv.FormatBool(p.IsCrash),
		}
	})
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	if err := writeCSVTo(file, header, n, row); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeCSVTo(w io.Writer, header []string, n int, row func(i int) []string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < n; i++ {
		if err := writer.Write(row(i)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	// records are buffered; a failed flush is the usual way a full disk
	// shows up, and it must not pass as a written report
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush records: %w", err)
	}
	return nil
}
