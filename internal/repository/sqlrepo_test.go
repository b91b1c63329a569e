package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/account"
	"manifold/internal/dialect"
	"manifold/internal/otelspan"
)

func newMockRepo(t *testing.T, d dialect.Dialect) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLRepository{db: db, d: d}, mock
}

func TestGetSpanUsesPostgresPlaceholders(t *testing.T) {
	r, mock := newMockRepo(t, dialect.PostgresDialect{})

	rows := sqlmock.NewRows([]string{
		"trace_id", "span_id", "parent_span_id", "project_id", "session_id", "name",
		"start_us", "end_us", "status", "observation", "category", "framework", "provider", "model",
		"tokens_input", "tokens_output", "tokens_total", "tokens_cached", "tokens_reasoning",
		"cost_micros", "exception_type", "exception_message", "exception_stacktrace",
		"messages_json", "tool_defs_json", "tool_names_json", "tags_json",
		"input_preview", "output_preview", "ingested_at",
	}).AddRow(
		"trace1", "span1", "", "proj1", "", "call",
		100, 200, "ok", "llm_call", "", "", "", "",
		1, 2, 3, 0, 0,
		"0.0012", "", "", "",
		"[]", "[]", "[]", "{}",
		"", "", time.Now().UnixMicro(),
	)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE trace_id = $1 AND span_id = $2`)).
		WithArgs("trace1", "span1").
		WillReturnRows(rows)

	s, err := r.GetSpan(context.Background(), "trace1", "span1")
	require.NoError(t, err)
	assert.Equal(t, "trace1", s.TraceID)
	assert.Equal(t, int64(3), s.Tokens.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSpanNotFound(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE trace_id = ? AND span_id = ?`)).
		WithArgs("t", "s").
		WillReturnError(sql.ErrNoRows)

	_, err := r.GetSpan(context.Background(), "t", "s")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTracesFiltersByProjectAndObservationExcludingChildSpans(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(
		`WHERE project_id = ? AND observation = ? AND parent_span_id = '' ORDER BY`,
	)).WithArgs("proj1", "llm_call").WillReturnRows(sqlmock.NewRows([]string{
		"trace_id", "span_id", "parent_span_id", "project_id", "session_id", "name",
		"start_us", "end_us", "status", "observation", "category", "framework", "provider", "model",
		"tokens_input", "tokens_output", "tokens_total", "tokens_cached", "tokens_reasoning",
		"cost_micros", "exception_type", "exception_message", "exception_stacktrace",
		"messages_json", "tool_defs_json", "tool_names_json", "tags_json",
		"input_preview", "output_preview", "ingested_at",
	}))

	_, err := r.ListTraces(context.Background(), SpanFilter{
		ProjectID:   "proj1",
		Observation: otelspan.ObservationType("llm_call"),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSpansFiltersWithoutExcludingChildSpans(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE project_id = ? ORDER BY`)).
		WithArgs("proj1").WillReturnRows(sqlmock.NewRows([]string{
		"trace_id", "span_id", "parent_span_id", "project_id", "session_id", "name",
		"start_us", "end_us", "status", "observation", "category", "framework", "provider", "model",
		"tokens_input", "tokens_output", "tokens_total", "tokens_cached", "tokens_reasoning",
		"cost_micros", "exception_type", "exception_message", "exception_stacktrace",
		"messages_json", "tool_defs_json", "tool_names_json", "tags_json",
		"input_preview", "output_preview", "ingested_at",
	}))

	_, err := r.ListSpans(context.Background(), SpanFilter{ProjectID: "proj1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertMetricsOneStatementPerRow(t *testing.T) {
	r, mock := newMockRepo(t, dialect.PostgresDialect{})

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO metrics`)).
		WithArgs("proj1", "tokens.total", "sum", 42.0, `{"unit":"token"}`, int64(1000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := r.InsertMetrics(context.Background(), []NormalizedMetric{{
		ProjectID:   "proj1",
		MetricName:  "tokens.total",
		Kind:        "sum",
		Value:       42,
		Attributes:  map[string]string{"unit": "token"},
		TimestampUs: 1000,
	}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementRefReportsWasLastWhenCountReachesZero(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(`FROM files WHERE project_id = ? AND content_hash = ?`)).
		WithArgs("proj1", "hash1").
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "content_hash", "media_type", "size_bytes", "storage_path", "ref_count", "created_at",
		}).AddRow("proj1", "hash1", "image/png", 10, "/blobs/ha/sh1", 1, time.Now().UnixMicro()))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE files SET ref_count = ?`)).
		WithArgs(0, "proj1", "hash1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := r.DecrementRef(context.Background(), "proj1", "hash1")
	require.NoError(t, err)
	assert.True(t, result.WasLast)
	assert.Equal(t, 0, result.Row.RefCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetApiKeyByPrefixParsesScopeAndNullableTimestamps(t *testing.T) {
	r, mock := newMockRepo(t, dialect.PostgresDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(`FROM api_keys WHERE prefix = $1`)).
		WithArgs("sk-abc123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "prefix", "secret_hash", "scope", "name", "created_at", "last_used_at", "revoked_at",
		}).AddRow("key1", "proj1", "sk-abc123", "hash", "write", "ci", time.Now().UnixMicro(), nil, nil))

	k, err := r.GetApiKeyByPrefix(context.Background(), "sk-abc123")
	require.NoError(t, err)
	assert.Equal(t, account.ScopeWrite, k.Scope)
	assert.Nil(t, k.LastUsedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgRoleReturnsFalseWhenNoMembership(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE user_id = ? AND organization_id = ?`)).
		WithArgs("u1", "org1").
		WillReturnError(sql.ErrNoRows)

	_, ok, err := r.OrgRole(context.Background(), "u1", "org1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTraceReturnsRowsAffected(t *testing.T) {
	r, mock := newMockRepo(t, dialect.SQLiteDialect{})

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM spans WHERE project_id = ? AND trace_id = ?`)).
		WithArgs("proj1", "trace1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := r.DeleteTrace(context.Background(), "proj1", "trace1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTraceReturnsZeroWhenNoRowsMatch(t *testing.T) {
	r, mock := newMockRepo(t, dialect.PostgresDialect{})

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM spans WHERE project_id = $1 AND trace_id = $2`)).
		WithArgs("proj1", "trace1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := r.DeleteTrace(context.Background(), "proj1", "trace1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
