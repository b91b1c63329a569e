package dialect

import "fmt"

// ByName resolves a Dialect from its configuration name.
func ByName(name string) (Dialect, error) {
	switch name {
	case "sqlite":
		return SQLiteDialect{}, nil
	case "postgres", "postgresql":
		return PostgresDialect{}, nil
	case "duckdb":
		return DuckDBDialect{}, nil
	case "clickhouse":
		return ClickHouseDialect{}, nil
	default:
		return nil, fmt.Errorf("unknown sql dialect %q", name)
	}
}
