package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSQLitePlaceholderAndArrayContains(t *testing.T) {
	d := SQLiteDialect{}
	assert.Equal(t, "?", d.Placeholder(1))
	assert.Equal(t, "?", d.Placeholder(5))
	assert.Equal(t, "EXISTS (SELECT 1 FROM json_each(tags) WHERE value = ?)", d.ArrayContains("tags", 1))
}

func TestSQLiteDurationMillis(t *testing.T) {
	d := SQLiteDialect{}
	assert.Equal(t, "(end_time - start_time) / 1000", d.DurationMillis("start_time", "end_time"))
}

func TestSQLiteOrderByWithNulls(t *testing.T) {
	d := SQLiteDialect{}
	assert.Equal(t,
		"CASE WHEN timestamp IS NULL THEN 1 ELSE 0 END, timestamp DESC",
		d.OrderByWithNulls("timestamp", true, true),
	)
	assert.Equal(t,
		"CASE WHEN name IS NULL THEN 0 ELSE 1 END, name ASC",
		d.OrderByWithNulls("name", false, false),
	)
}

func TestPostgresPlaceholder(t *testing.T) {
	d := PostgresDialect{}
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$3", d.Placeholder(3))
	assert.Equal(t, "$2 = ANY(tags)", d.ArrayContains("tags", 2))
}

func TestClickHouseArrayFlatten(t *testing.T) {
	d := ClickHouseDialect{}
	assert.Equal(t, "arrayJoin(tags)", d.ArrayFlatten("tags"))
	assert.Equal(t, "has(tags, ?)", d.ArrayContains("tags", 1))
}

func TestByNameAllFourBackends(t *testing.T) {
	for _, name := range []string{"sqlite", "postgres", "duckdb", "clickhouse"} {
		d, err := ByName(name)
		assert.NoError(t, err)
		assert.Equal(t, name, d.Name())
	}
	_, err := ByName("mssql")
	assert.Error(t, err)
}

// TestAllDialectsOrderConsistently asserts the testable property from
// spec.md §8: for equivalent logical queries, every dialect produces an
// ORDER BY fragment anchored on the same column and direction.
func TestAllDialectsOrderConsistently(t *testing.T) {
	dialects := []Dialect{SQLiteDialect{}, PostgresDialect{}, DuckDBDialect{}, ClickHouseDialect{}}
	for _, d := range dialects {
		frag := d.OrderByWithNulls("start_us", true, true)
		assert.Contains(t, frag, "start_us")
		assert.Contains(t, frag, "DESC")
	}
}
