package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the immutable observation table all analysis queries read from.
// Construction applies the cleaning rules exactly once; afterwards the store
// is read-only and safe for concurrent use.
type Store struct {
	rows     []Observation
	loadedAt time.Time
	dropped  int
}

// New builds a Store from raw observations, applying the unconditional
// cleaning rules: rows without a parseable date or commodity are dropped,
// and organic/eco rows are excluded since analysis is defined over
// wholesale and retail only.
func New(rows []Observation) *Store {
	clean := make([]Observation, 0, len(rows))
	dropped := 0

	for _, o := range rows {
		if !o.IsValid() || o.SurveyType == SurveyEco {
			dropped++
			continue
		}
		clean = append(clean, o)
	}

	return &Store{
		rows:     clean,
		loadedAt: time.Now(),
		dropped:  dropped,
	}
}

// Len returns the number of observations in the store.
func (s *Store) Len() int {
	return len(s.rows)
}

// Dropped returns the number of rows excluded by the cleaning rules.
func (s *Store) Dropped() int {
	return s.dropped
}

// LoadedAt returns when the store was constructed.
func (s *Store) LoadedAt() time.Time {
	return s.loadedAt
}

// Rows returns the underlying observations. Callers must treat the slice as
// read-only; every transformation produces a new derived table.
func (s *Store) Rows() []Observation {
	return s.rows
}

// Commodities returns the sorted distinct commodity names in the store.
func (s *Store) Commodities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range s.rows {
		if _, ok := seen[o.Commodity]; !ok {
			seen[o.Commodity] = struct{}{}
			out = append(out, o.Commodity)
		}
	}
	sort.Strings(out)
	return out
}

// DateRange returns the earliest and latest observation dates. The second
// return is false for an empty store.
func (s *Store) DateRange() (start, end time.Time, ok bool) {
	if len(s.rows) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = s.rows[0].Date, s.rows[0].Date
	for _, o := range s.rows[1:] {
		if o.Date.Before(start) {
			start = o.Date
		}
		if o.Date.After(end) {
			end = o.Date
		}
	}
	return start, end, true
}

// SourceFunc produces the raw observations for a Loader, typically one of the
// Load* ingestion functions partially applied to a configured source.
type SourceFunc func(ctx context.Context) (*Store, error)

// Loader memoizes store construction so the dataset is parsed once and the
// same immutable Store is reused across queries. Filtered and aggregated
// intermediates are deliberately not cached: selections vary per call.
type Loader struct {
	source SourceFunc

	once  sync.Once
	store *Store
	err   error
}

// NewLoader creates a memoizing loader around the given source.
func NewLoader(source SourceFunc) *Loader {
	return &Loader{source: source}
}

// Load returns the memoized store, constructing it on first use.
func (l *Loader) Load(ctx context.Context) (*Store, error) {
	l.once.Do(func() {
		l.store, l.err = l.source(ctx)
	})
	return l.store, l.err
}
