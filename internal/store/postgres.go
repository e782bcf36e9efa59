package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// observationRow is the database projection of an observation. Price and
// survey type are nullable in the source table; null prices become missing,
// not zero.
type observationRow struct {
	Date       sql.NullTime    `db:"price_date"`
	Commodity  sql.NullString  `db:"commodity"`
	Variety    sql.NullString  `db:"variety"`
	Grade      sql.NullString  `db:"grade"`
	SurveyType sql.NullString  `db:"survey_type"`
	Region     sql.NullString  `db:"region"`
	Market     sql.NullString  `db:"market"`
	PricePerKG sql.NullFloat64 `db:"price_per_kg"`
}

// OpenPostgres connects to the observation database and verifies the
// connection.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// LoadPostgres builds a Store from a relational observation table. The table
// must carry the canonical columns; schema mismatches surface as IngestError.
func LoadPostgres(ctx context.Context, db *sqlx.DB, table string) (*Store, error) {
	logger := slog.Default()
	logger.InfoContext(ctx, "loading observations from postgres", slog.String("table", table))

	query := fmt.Sprintf(`
		SELECT price_date, commodity, variety, grade, survey_type, region, market, price_per_kg
		FROM %s
		ORDER BY price_date`, pqQuoteIdentifier(table))

	var raw []observationRow
	if err := db.SelectContext(ctx, &raw, query); err != nil {
		return nil, ingestErr(table, "select observations: %w", err)
	}

	rows := make([]Observation, 0, len(raw))
	for _, r := range raw {
		if !r.Date.Valid {
			continue
		}
		o := Observation{
			Date:       r.Date.Time,
			Commodity:  r.Commodity.String,
			Variety:    r.Variety.String,
			Grade:      r.Grade.String,
			SurveyType: ParseSurveyType(r.SurveyType.String),
			Region:     r.Region.String,
			Market:     r.Market.String,
		}
		if r.PricePerKG.Valid {
			o.PricePerKG = r.PricePerKG.Float64
			o.HasPrice = true
		}
		rows = append(rows, o)
	}

	return finishLoad(ctx, logger, table, rows)
}

// pqQuoteIdentifier quotes a table name so a configured identifier cannot
// break out of the query.
func pqQuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
