// Package store provides the immutable in-memory observation store that every
// analysis query reads from. It owns dataset ingestion (CSV, ZIP-of-CSV, Excel
// and Postgres sources), the unconditional cleaning rules applied exactly once
// at load time, and read-only accessors used to build facet option lists.
//
// A Store is never mutated after construction, so it may be shared by any
// number of concurrent queries without locking.
package store
