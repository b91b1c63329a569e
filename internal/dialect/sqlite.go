package dialect

import "fmt"

// SQLiteDialect targets modernc.org/sqlite, storing arrays as JSON text
// and timestamps as integer microseconds.
type SQLiteDialect struct{}

var _ Dialect = SQLiteDialect{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) ArrayContains(arrayCol string, _ int) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE value = ?)", arrayCol)
}

func (SQLiteDialect) ArrayFlatten(col string) string {
	return fmt.Sprintf("json_each(%s)", col)
}

func (SQLiteDialect) TimestampToMicros(col string) string {
	// SQLite timestamps in this schema are already stored as integer microseconds.
	return col
}

func (SQLiteDialect) DurationMillis(start, end string) string {
	return fmt.Sprintf("(%s - %s) / 1000", end, start)
}

func (SQLiteDialect) LimitOffset(limit, offset int) string {
	return defaultLimitOffset(limit, offset)
}

func (SQLiteDialect) CastToJSON(col string) string {
	return fmt.Sprintf("json(%s)", col)
}

func (SQLiteDialect) CastToString(col string) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", col)
}

func (SQLiteDialect) NowUTC() string {
	return "CAST((julianday('now') - 2440587.5) * 86400000000 AS INTEGER)"
}

// OrderByWithNulls emulates NULLS FIRST/LAST with a CASE discriminator,
// since SQLite has no native syntax for it.
func (SQLiteDialect) OrderByWithNulls(col string, desc bool, nullsLast bool) string {
	nullRank := map[bool]int{true: 1, false: 0}[nullsLast]
	otherRank := 1 - nullRank
	return fmt.Sprintf(
		"CASE WHEN %s IS NULL THEN %d ELSE %d END, %s %s",
		col, nullRank, otherRank, col, direction(desc),
	)
}
