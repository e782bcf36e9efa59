// Package analysis implements the faceted aggregation and rolling anomaly
// detection engine over the observation store.
//
// The pipeline is a chain of pure transformations:
//
//	Store -> Filter -> {Aggregate -> Margin; Detect} -> summary statistics
//
// No stage mutates its input; each returns a new derived table, so a store
// may serve any number of concurrent queries without synchronization.
// Emptiness is an expected outcome, not an error: callers branch on
// View.Empty() and AggregateSeries.Empty() before dependent stages.
package analysis
