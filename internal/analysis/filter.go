package analysis

import (
	"sort"

	"agripulse/internal/store"
)

// Facet identifies one categorical filter dimension.
type Facet int

const (
	// FacetCommodity is the top-level item name
	FacetCommodity Facet = iota
	// FacetVariety is the cultivar/sub-type name
	FacetVariety
	// FacetGrade is the quality grade label
	FacetGrade
	// FacetRegion is the province-level region name
	FacetRegion
	// FacetMarket is the region-disambiguated market label
	FacetMarket
)

// View is a narrowed, read-only slice of the observation store. An empty
// view is an expected outcome, not an error; consumers must branch on
// Empty() before dependent stages.
type View struct {
	rows []store.Observation
}

// Empty reports whether no observations matched.
func (v View) Empty() bool {
	return len(v.rows) == 0
}

// Len returns the number of observations in the view.
func (v View) Len() int {
	return len(v.rows)
}

// Rows returns the matched observations. Treat as read-only.
func (v View) Rows() []store.Observation {
	return v.rows
}

// Filter narrows the store through the selection's predicate chain:
// date-range, commodity, variety, grade, then survey-type/region/market.
// Predicates are independent equality and range tests, so composition is
// commutative; the fixed order exists for the cascading option lists.
func Filter(s *store.Store, sel FacetSelection) (View, error) {
	if err := sel.Validate(); err != nil {
		return View{}, err
	}

	regions := toSet(sel.Regions)
	markets := toSet(sel.Markets)

	var rows []store.Observation
	for _, o := range s.Rows() {
		if !sel.DateRange.Contains(o.Date) {
			continue
		}
		if o.Commodity != sel.Commodity {
			continue
		}
		if sel.Variety != "" && o.Variety != sel.Variety {
			continue
		}
		if sel.Grade != "" && o.Grade != sel.Grade {
			continue
		}
		if sel.SurveyType != nil && o.SurveyType != *sel.SurveyType {
			continue
		}
		if regions != nil {
			if _, ok := regions[o.Region]; !ok {
				continue
			}
		}
		if markets != nil {
			if _, ok := markets[o.MarketLabel()]; !ok {
				continue
			}
		}
		rows = append(rows, o)
	}

	return View{rows: rows}, nil
}

// Distinct returns the sorted unique values of a facet within the view.
// Option lists for cascading selection are recomputed from the current view
// on every query; there is no incremental session state.
func (v View) Distinct(f Facet) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range v.rows {
		var val string
		switch f {
		case FacetCommodity:
			val = o.Commodity
		case FacetVariety:
			val = o.Variety
		case FacetGrade:
			val = o.Grade
		case FacetRegion:
			val = o.Region
		case FacetMarket:
			val = o.MarketLabel()
		}
		if val == "" {
			continue
		}
		if _, ok := seen[val]; !ok {
			seen[val] = struct{}{}
			out = append(out, val)
		}
	}
	sort.Strings(out)
	return out
}

// CascadeReset records a downstream selection that was replaced because its
// value no longer exists in the upstream-filtered distinct set.
type CascadeReset struct {
	Facet    string `json:"facet"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// ResolveCascade re-validates the variety and grade selections against their
// upstream views. Variety options reflect the date- and commodity-filtered
// view; grade options reflect the variety-filtered view. A stale value is
// reset to the first available option (or cleared when none exist) and
// reported, never silently retained.
func ResolveCascade(s *store.Store, sel FacetSelection) (FacetSelection, []CascadeReset, error) {
	base := sel
	base.Variety = ""
	base.Grade = ""
	base.SurveyType = nil
	base.Regions = nil
	base.Markets = nil

	view, err := Filter(s, base)
	if err != nil {
		return FacetSelection{}, nil, err
	}

	var resets []CascadeReset
	varieties := view.Distinct(FacetVariety)
	if sel.Variety == "" || !containsString(varieties, sel.Variety) {
		next := firstOrEmpty(varieties)
		if next != sel.Variety {
			resets = append(resets, CascadeReset{Facet: "variety", Previous: sel.Variety, Current: next})
		}
		sel.Variety = next
	}

	base.Variety = sel.Variety
	view, err = Filter(s, base)
	if err != nil {
		return FacetSelection{}, nil, err
	}

	grades := view.Distinct(FacetGrade)
	if sel.Grade == "" || !containsString(grades, sel.Grade) {
		next := firstOrEmpty(grades)
		if next != sel.Grade {
			resets = append(resets, CascadeReset{Facet: "grade", Previous: sel.Grade, Current: next})
		}
		sel.Grade = next
	}

	return sel, resets, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
