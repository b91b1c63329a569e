package dialect

import "fmt"

// DuckDBDialect targets DuckDB over database/sql, via a driver the
// deployment binary registers under the name "duckdb" (see DESIGN.md:
// no DuckDB Go driver appears anywhere in the reference corpus, so this
// dialect is the one seam that intentionally does not name a concrete
// third-party driver package).
type DuckDBDialect struct{}

var _ Dialect = DuckDBDialect{}

func (DuckDBDialect) Name() string { return "duckdb" }

func (DuckDBDialect) Placeholder(int) string { return "?" }

func (DuckDBDialect) ArrayContains(arrayCol string, _ int) string {
	return fmt.Sprintf("array_contains(%s, ?)", arrayCol)
}

func (DuckDBDialect) ArrayFlatten(col string) string {
	return fmt.Sprintf("UNNEST(%s)", col)
}

func (DuckDBDialect) TimestampToMicros(col string) string {
	return fmt.Sprintf("EPOCH_US(%s)", col)
}

func (DuckDBDialect) DurationMillis(start, end string) string {
	return fmt.Sprintf("DATE_DIFF('millisecond', %s, %s)", start, end)
}

func (DuckDBDialect) LimitOffset(limit, offset int) string {
	return defaultLimitOffset(limit, offset)
}

func (DuckDBDialect) CastToJSON(col string) string {
	return fmt.Sprintf("%s::JSON", col)
}

func (DuckDBDialect) CastToString(col string) string {
	return fmt.Sprintf("%s::VARCHAR", col)
}

func (DuckDBDialect) NowUTC() string { return "NOW()" }

func (DuckDBDialect) OrderByWithNulls(col string, desc bool, nullsLast bool) string {
	nulls := "NULLS LAST"
	if !nullsLast {
		nulls = "NULLS FIRST"
	}
	return fmt.Sprintf("%s %s %s", col, direction(desc), nulls)
}
