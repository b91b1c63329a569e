package dialect

import "fmt"

// PostgresDialect targets github.com/jackc/pgx/v5.
type PostgresDialect struct{}

var _ Dialect = PostgresDialect{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Placeholder(i int) string { return fmt.Sprintf("$%d", i) }

func (PostgresDialect) ArrayContains(arrayCol string, paramIdx int) string {
	return fmt.Sprintf("$%d = ANY(%s)", paramIdx, arrayCol)
}

func (PostgresDialect) ArrayFlatten(col string) string {
	return fmt.Sprintf("UNNEST(%s)", col)
}

func (PostgresDialect) TimestampToMicros(col string) string {
	return fmt.Sprintf("(EXTRACT(EPOCH FROM %s)::BIGINT * 1000000)", col)
}

func (PostgresDialect) DurationMillis(start, end string) string {
	return fmt.Sprintf("(EXTRACT(EPOCH FROM (%s - %s)) * 1000)::BIGINT", end, start)
}

func (PostgresDialect) LimitOffset(limit, offset int) string {
	return defaultLimitOffset(limit, offset)
}

func (PostgresDialect) CastToJSON(col string) string {
	return fmt.Sprintf("%s::JSONB", col)
}

func (PostgresDialect) CastToString(col string) string {
	return fmt.Sprintf("%s::TEXT", col)
}

func (PostgresDialect) NowUTC() string {
	return "NOW() AT TIME ZONE 'UTC'"
}

func (PostgresDialect) OrderByWithNulls(col string, desc bool, nullsLast bool) string {
	nulls := "NULLS LAST"
	if !nullsLast {
		nulls = "NULLS FIRST"
	}
	return fmt.Sprintf("%s %s %s", col, direction(desc), nulls)
}
