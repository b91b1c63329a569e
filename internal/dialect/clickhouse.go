package dialect

import "fmt"

// ClickHouseDialect targets github.com/ClickHouse/clickhouse-go/v2.
type ClickHouseDialect struct{}

var _ Dialect = ClickHouseDialect{}

func (ClickHouseDialect) Name() string { return "clickhouse" }

func (ClickHouseDialect) Placeholder(int) string { return "?" }

func (ClickHouseDialect) ArrayContains(arrayCol string, _ int) string {
	return fmt.Sprintf("has(%s, ?)", arrayCol)
}

func (ClickHouseDialect) ArrayFlatten(col string) string {
	return fmt.Sprintf("arrayJoin(%s)", col)
}

func (ClickHouseDialect) TimestampToMicros(col string) string {
	return fmt.Sprintf("toInt64(toUnixTimestamp64Micro(%s))", col)
}

func (ClickHouseDialect) DurationMillis(start, end string) string {
	return fmt.Sprintf("dateDiff('millisecond', %s, %s)", start, end)
}

func (ClickHouseDialect) LimitOffset(limit, offset int) string {
	return defaultLimitOffset(limit, offset)
}

func (ClickHouseDialect) CastToJSON(col string) string {
	// ClickHouse stores JSON payloads as String; no cast needed.
	return col
}

func (ClickHouseDialect) CastToString(col string) string {
	return fmt.Sprintf("toString(%s)", col)
}

func (ClickHouseDialect) NowUTC() string { return "now64(6)" }

// OrderByWithNulls: ClickHouse keeps NULLs FIRST by default in ASC order
// and LAST in DESC; for our normalized tables no analytics column that is
// sorted on is nullable, so NULLS ordering is not expressible natively
// and we fall back to plain ORDER BY (matching ClickHouse's own
// unconditional NULL-handling for non-Nullable columns).
func (ClickHouseDialect) OrderByWithNulls(col string, desc bool, _ bool) string {
	return fmt.Sprintf("%s %s", col, direction(desc))
}
