package store

import (
	"fmt"
	"strings"
	"time"
)

// SurveyType classifies how a price observation was surveyed.
// The source data uses Korean labels (도매/소매/친환경); unknown labels are
// preserved as SurveyOther rather than silently dropped.
type SurveyType int

const (
	// SurveyUnknown is the zero value for an unparsed survey type
	SurveyUnknown SurveyType = iota
	// SurveyWholesale represents wholesale market prices (도매)
	SurveyWholesale
	// SurveyRetail represents retail market prices (소매)
	SurveyRetail
	// SurveyEco represents organic/eco prices (친환경); excluded from analysis
	SurveyEco
	// SurveyOther represents any label outside the known set
	SurveyOther
)

// String returns the canonical English label for the survey type
func (st SurveyType) String() string {
	switch st {
	case SurveyWholesale:
		return "wholesale"
	case SurveyRetail:
		return "retail"
	case SurveyEco:
		return "eco"
	case SurveyOther:
		return "other"
	default:
		return "unknown"
	}
}

// ParseSurveyType maps source labels (Korean or English) to a SurveyType.
// Unrecognized non-empty labels map to SurveyOther.
func ParseSurveyType(label string) SurveyType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "도매", "wholesale":
		return SurveyWholesale
	case "소매", "retail":
		return SurveyRetail
	case "친환경", "eco", "organic":
		return SurveyEco
	case "":
		return SurveyUnknown
	default:
		return SurveyOther
	}
}

// Observation is a single dated price record for one commodity at one market.
type Observation struct {
	Date       time.Time  `json:"date" db:"price_date"`
	Commodity  string     `json:"commodity" db:"commodity"`
	Variety    string     `json:"variety" db:"variety"`
	Grade      string     `json:"grade" db:"grade"`
	SurveyType SurveyType `json:"survey_type" db:"-"`
	Region     string     `json:"region" db:"region"`
	Market     string     `json:"market" db:"market"`

	// PricePerKG is only meaningful when HasPrice is true. Coercion failures
	// at ingest become missing prices, never zero.
	PricePerKG float64 `json:"price_per_kg" db:"price_per_kg"`
	HasPrice   bool    `json:"has_price" db:"-"`
}

// MarketLabel returns the market name disambiguated by its region, so two
// same-named markets in different provinces stay distinct in comparisons.
func (o Observation) MarketLabel() string {
	if o.Region == "" {
		return o.Market
	}
	return fmt.Sprintf("%s (%s)", o.Market, o.Region)
}

// YearMonth truncates the observation date to the first day of its month.
func (o Observation) YearMonth() time.Time {
	return time.Date(o.Date.Year(), o.Date.Month(), 1, 0, 0, 0, 0, o.Date.Location())
}

// IsValid reports whether the observation satisfies the store invariants:
// a real date and a non-empty commodity.
func (o Observation) IsValid() bool {
	return !o.Date.IsZero() && o.Commodity != ""
}
