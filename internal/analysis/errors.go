package analysis

import (
	"errors"
	"fmt"
)

// ValidationError reports an internally inconsistent FacetSelection, such as
// a reversed date range or a filter value outside the valid cascading set.
// It is always caller-correctable; the engine never silently coerces.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid selection: %s: %s", e.Field, e.Message)
}

// InsufficientDataError reports a series shorter than the requested rolling
// window. It is fatal to that detection call only; the caller may retry with
// a smaller window.
type InsufficientDataError struct {
	Have int
	Need int
}

// Error implements the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d observations, window requires %d", e.Have, e.Need)
}

// ErrNotComputable is returned by the margin calculator when the wholesale or
// retail side is wholly absent from the input series.
var ErrNotComputable = errors.New("margin not computable: wholesale or retail side absent")
