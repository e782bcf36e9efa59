package analysis

import (
	"time"

	"agripulse/internal/store"
)

// DateRange is an inclusive [Start, End] bound on observation dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether d falls inside the inclusive range.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// FacetSelection is the ephemeral description of one query: a date bound plus
// a chain of hierarchical facet values. Regions and Markets are comparison
// sets; an empty set means "no series to compare", never "all".
type FacetSelection struct {
	DateRange DateRange `json:"date_range"`
	Commodity string    `json:"commodity"`
	Variety   string    `json:"variety"`
	Grade     string    `json:"grade"`

	// SurveyType optionally restricts the view to one survey type. Nil keeps
	// both wholesale and retail.
	SurveyType *store.SurveyType `json:"survey_type,omitempty"`

	Regions []string `json:"regions,omitempty"`
	Markets []string `json:"markets,omitempty"`
}

// Validate checks internal consistency of the selection. A reversed date
// range fails fast with a ValidationError; it is never swapped or clamped.
func (sel FacetSelection) Validate() error {
	if sel.DateRange.Start.IsZero() || sel.DateRange.End.IsZero() {
		return &ValidationError{Field: "date_range", Message: "start and end are required"}
	}
	if sel.DateRange.Start.After(sel.DateRange.End) {
		return &ValidationError{Field: "date_range", Message: "start is after end"}
	}
	if sel.Commodity == "" {
		return &ValidationError{Field: "commodity", Message: "commodity is required"}
	}
	if sel.SurveyType != nil {
		switch *sel.SurveyType {
		case store.SurveyWholesale, store.SurveyRetail:
		default:
			return &ValidationError{Field: "survey_type", Message: "must be wholesale or retail"}
		}
	}
	return nil
}
