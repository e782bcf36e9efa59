package store

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

// IngestError indicates the raw source could not be parsed into the
// observation schema. It is fatal to the query; the data is static so there
// is nothing to retry.
type IngestError struct {
	Source string
	Err    error
}

// Error implements the error interface
func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
}

// Unwrap exposes the underlying cause
func (e *IngestError) Unwrap() error {
	return e.Err
}

func ingestErr(source string, format string, args ...any) error {
	return &IngestError{Source: source, Err: fmt.Errorf(format, args...)}
}

// Column aliases accepted in source headers. The dataset ships with Korean
// headers; English aliases are accepted for exported fixtures.
var columnAliases = map[string]string{
	"가격등록일자": "date",
	"date":         "date",
	"품목명":       "commodity",
	"commodity":    "commodity",
	"품종명":       "variety",
	"variety":      "variety",
	"산물등급명":   "grade",
	"grade":        "grade",
	"조사구분명":   "survey_type",
	"survey_type":  "survey_type",
	"시도명":       "region",
	"region":       "region",
	"시장명":       "market",
	"market":       "market",
	"kg당가격":     "price_per_kg",
	"price_per_kg": "price_per_kg",
}

var requiredColumns = []string{"date", "commodity", "variety", "grade", "survey_type", "region", "market", "price_per_kg"}

// columnIndex maps canonical column names to their position in the header row.
type columnIndex map[string]int

func resolveHeader(header []string, source string) (columnIndex, error) {
	idx := make(columnIndex, len(requiredColumns))
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		if canonical, ok := columnAliases[name]; ok {
			if _, dup := idx[canonical]; !dup {
				idx[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, ingestErr(source, "missing required column %q", col)
		}
	}
	return idx, nil
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006-01-02 15:04:05",
}

func parseObservationDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, format := range dateFormats {
		if d, err := time.Parse(format, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %q", s)
}

// parseRow converts one record into an Observation. A row with an
// unparseable date or empty commodity returns ok=false and is dropped; a
// non-numeric price yields a retained row with a missing price.
func parseRow(record []string, idx columnIndex) (Observation, bool) {
	get := func(col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	date, err := parseObservationDate(get("date"))
	if err != nil {
		return Observation{}, false
	}

	o := Observation{
		Date:       date,
		Commodity:  get("commodity"),
		Variety:    get("variety"),
		Grade:      get("grade"),
		SurveyType: ParseSurveyType(get("survey_type")),
		Region:     get("region"),
		Market:     get("market"),
	}
	if o.Commodity == "" {
		return Observation{}, false
	}

	raw := strings.ReplaceAll(get("price_per_kg"), ",", "")
	if price, err := strconv.ParseFloat(raw, 64); err == nil {
		o.PricePerKG = price
		o.HasPrice = true
	}

	return o, true
}

func readCSVRows(r io.Reader, source string) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, ingestErr(source, "read header: %w", err)
	}
	idx, err := resolveHeader(header, source)
	if err != nil {
		return nil, err
	}

	var rows []Observation
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ingestErr(source, "read record: %w", err)
		}
		o, ok := parseRow(record, idx)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, o)
	}

	if skipped > 0 {
		slog.Debug("skipped unparseable rows during ingest",
			slog.String("source", source),
			slog.Int("skipped", skipped),
		)
	}
	return rows, nil
}

// LoadCSV builds a Store from a delimited text file.
func LoadCSV(ctx context.Context, path string) (*Store, error) {
	logger := slog.Default()
	logger.InfoContext(ctx, "loading observations from CSV", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, ingestErr(path, "open: %w", err)
	}
	defer f.Close()

	rows, err := readCSVRows(f, path)
	if err != nil {
		return nil, err
	}
	return finishLoad(ctx, logger, path, rows)
}

// LoadZip builds a Store from a compressed container of CSV files. Entries
// are parsed concurrently and merged; non-CSV entries are ignored.
func LoadZip(ctx context.Context, path string) (*Store, error) {
	logger := slog.Default()
	logger.InfoContext(ctx, "loading observations from ZIP", slog.String("path", path))

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, ingestErr(path, "open archive: %w", err)
	}
	defer zr.Close()

	var entries []*zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			entries = append(entries, f)
		}
	}
	if len(entries) == 0 {
		return nil, ingestErr(path, "no CSV entries in archive")
	}

	results := make([][]Observation, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rc, err := entry.Open()
			if err != nil {
				return ingestErr(entry.Name, "open entry: %w", err)
			}
			defer rc.Close()

			rows, err := readCSVRows(rc, entry.Name)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []Observation
	for _, part := range results {
		rows = append(rows, part...)
	}
	return finishLoad(ctx, logger, path, rows)
}

// LoadExcel builds a Store from an Excel workbook. The observation sheet is
// located by probing each sheet for the expected header row.
func LoadExcel(ctx context.Context, path string) (*Store, error) {
	logger := slog.Default()
	logger.InfoContext(ctx, "loading observations from Excel", slog.String("path", path))

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, ingestErr(path, "open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		cells, err := f.GetRows(sheet)
		if err != nil || len(cells) < 2 {
			continue
		}
		idx, err := resolveHeader(cells[0], path)
		if err != nil {
			continue
		}

		var rows []Observation
		skipped := 0
		for _, record := range cells[1:] {
			o, ok := parseRow(record, idx)
			if !ok {
				skipped++
				continue
			}
			rows = append(rows, o)
		}
		if skipped > 0 {
			logger.DebugContext(ctx, "skipped unparseable rows during ingest",
				slog.String("source", path),
				slog.String("sheet", sheet),
				slog.Int("skipped", skipped),
			)
		}
		return finishLoad(ctx, logger, path, rows)
	}

	return nil, ingestErr(path, "no sheet with the expected observation columns")
}

func finishLoad(ctx context.Context, logger *slog.Logger, source string, rows []Observation) (*Store, error) {
	if len(rows) == 0 {
		return nil, ingestErr(source, "no parseable observations")
	}
	s := New(rows)
	logger.InfoContext(ctx, "observation store loaded",
		slog.String("source", source),
		slog.Int("observations", s.Len()),
		slog.Int("dropped", s.Dropped()),
	)
	return s, nil
}
