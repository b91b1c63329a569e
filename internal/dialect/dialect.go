// Package dialect abstracts the SQL fragments that differ across the
// four supported analytics/transactional backends (SQLite, PostgreSQL,
// DuckDB, ClickHouse), so the repository layer never embeds
// backend-specific SQL itself.
package dialect

import "fmt"

// Dialect produces backend-specific SQL fragments for a logically
// identical query. Implementations must be stateless and safe for
// concurrent use.
type Dialect interface {
	// Name is the dialect identifier ("sqlite", "postgres", "duckdb", "clickhouse").
	Name() string

	// Placeholder returns the parameter placeholder for the 1-based index i.
	Placeholder(i int) string

	// ArrayContains returns a boolean expression testing whether arrayCol
	// contains the value bound at paramIdx.
	ArrayContains(arrayCol string, paramIdx int) string

	// ArrayFlatten returns a FROM-clause fragment that unnests arrayCol
	// into one row per element.
	ArrayFlatten(col string) string

	// TimestampToMicros converts a timestamp column to microseconds since
	// the Unix epoch.
	TimestampToMicros(col string) string

	// DurationMillis returns an expression computing (end - start) in
	// milliseconds.
	DurationMillis(start, end string) string

	// LimitOffset renders a LIMIT/OFFSET clause.
	LimitOffset(limit, offset int) string

	// CastToJSON casts col to the dialect's native JSON type.
	CastToJSON(col string) string

	// CastToString casts col to a string/text type.
	CastToString(col string) string

	// NowUTC returns an expression for the current UTC timestamp.
	NowUTC() string

	// OrderByWithNulls renders an ORDER BY fragment for col with explicit
	// NULL placement.
	OrderByWithNulls(col string, desc bool, nullsLast bool) string
}

func direction(desc bool) string {
	if desc {
		return "DESC"
	}
	return "ASC"
}

// defaultLimitOffset is shared by dialects that use standard SQL LIMIT/OFFSET.
func defaultLimitOffset(limit, offset int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}
