package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"manifold/internal/account"
	"manifold/internal/apierr"
	"manifold/internal/dialect"
	"manifold/internal/otelspan"
)

// SQLRepository implements SpanRepository, FileRepository,
// MetricRepository, and AccountRepository against a single
// database/sql.DB, generating every placeholder, cast, and ordering
// clause through a dialect.Dialect so no backend-specific SQL literal
// appears in the method bodies (spec.md §4.1 wiring requirement).
type SQLRepository struct {
	db *sql.DB
	d  dialect.Dialect
}

// Open wires up a SQLRepository against an already-open *sql.DB and
// ensures the schema exists. Callers choose the driver (pgx's stdlib
// driver, clickhouse-go, modernc.org/sqlite, or a registered "duckdb"
// driver) and pass the matching dialect.Dialect.
func Open(ctx context.Context, db *sql.DB, d dialect.Dialect) (*SQLRepository, error) {
	if _, err := db.ExecContext(ctx, schema(d.Name())); err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, fmt.Errorf("create schema: %w", err))
	}
	return &SQLRepository{db: db, d: d}, nil
}

// placeholders returns a dialect-rendered `$1, $2, ...` (or `?, ?, ...`)
// list for n consecutive parameters starting at startIdx (1-based).
func (r *SQLRepository) placeholders(startIdx, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = r.d.Placeholder(startIdx + i)
	}
	return strings.Join(parts, ", ")
}

func jsonOf(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// --- SpanRepository ---

var _ SpanRepository = (*SQLRepository)(nil)

func (r *SQLRepository) InsertSpans(ctx context.Context, spans []otelspan.Span) error {
	if len(spans) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	cols := 30
	stmt := fmt.Sprintf(`
INSERT INTO spans (
  trace_id, span_id, parent_span_id, project_id, session_id, name,
  start_us, end_us, status, observation, category, framework, provider, model,
  tokens_input, tokens_output, tokens_total, tokens_cached, tokens_reasoning,
  cost_micros, exception_type, exception_message, exception_stacktrace,
  messages_json, tool_defs_json, tool_names_json, tags_json,
  input_preview, output_preview, ingested_at
) VALUES (%s)`, r.placeholders(1, cols))

	for _, s := range spans {
		if err := s.Validate(); err != nil {
			return apierr.Validation("INVALID_SPAN", err.Error())
		}
		_, err := tx.ExecContext(ctx, stmt,
			s.TraceID, s.SpanID, s.ParentSpanID, s.ProjectID, s.SessionID, s.Name,
			s.StartUs, s.EndUs, string(s.Status), string(s.Observation), string(s.Category), s.Framework, s.Provider, s.Model,
			s.Tokens.Input, s.Tokens.Output, s.Tokens.Total, s.Tokens.Cached, s.Tokens.Reasoning,
			s.CostMicros.String(), s.Exception.Type, s.Exception.Message, s.Exception.Stacktrace,
			jsonOf(s.Messages), jsonOf(s.ToolDefs), jsonOf(s.ToolNames), jsonOf(s.Tags),
			s.InputPreview, s.OutputPreview, s.IngestedAt.UnixMicro(),
		)
		if err != nil {
			return apierr.Backend(apierr.OriginDatabase, fmt.Errorf("insert span %s/%s: %w", s.TraceID, s.SpanID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	return nil
}

const spanColumns = `trace_id, span_id, parent_span_id, project_id, session_id, name,
  start_us, end_us, status, observation, category, framework, provider, model,
  tokens_input, tokens_output, tokens_total, tokens_cached, tokens_reasoning,
  cost_micros, exception_type, exception_message, exception_stacktrace,
  messages_json, tool_defs_json, tool_names_json, tags_json,
  input_preview, output_preview, ingested_at`

func scanSpan(row interface{ Scan(...any) error }) (otelspan.Span, error) {
	var s otelspan.Span
	var status, observation, category string
	var costMicros string
	var messagesJSON, toolDefsJSON, toolNamesJSON, tagsJSON string
	var ingestedAtMicros int64

	err := row.Scan(
		&s.TraceID, &s.SpanID, &s.ParentSpanID, &s.ProjectID, &s.SessionID, &s.Name,
		&s.StartUs, &s.EndUs, &status, &observation, &category, &s.Framework, &s.Provider, &s.Model,
		&s.Tokens.Input, &s.Tokens.Output, &s.Tokens.Total, &s.Tokens.Cached, &s.Tokens.Reasoning,
		&costMicros, &s.Exception.Type, &s.Exception.Message, &s.Exception.Stacktrace,
		&messagesJSON, &toolDefsJSON, &toolNamesJSON, &tagsJSON,
		&s.InputPreview, &s.OutputPreview, &ingestedAtMicros,
	)
	if err != nil {
		return otelspan.Span{}, err
	}

	s.Status = otelspan.SpanStatus(status)
	s.Observation = otelspan.ObservationType(observation)
	s.Category = otelspan.SpanCategory(category)
	s.CostMicros, _ = decimal.NewFromString(costMicros)
	s.IngestedAt = time.UnixMicro(ingestedAtMicros).UTC()
	_ = json.Unmarshal([]byte(messagesJSON), &s.Messages)
	_ = json.Unmarshal([]byte(toolDefsJSON), &s.ToolDefs)
	_ = json.Unmarshal([]byte(toolNamesJSON), &s.ToolNames)
	_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
	return s, nil
}

func (r *SQLRepository) GetSpan(ctx context.Context, traceID, spanID string) (otelspan.Span, error) {
	q := fmt.Sprintf(`SELECT %s FROM spans WHERE trace_id = %s AND span_id = %s`,
		spanColumns, r.d.Placeholder(1), r.d.Placeholder(2))
	row := r.db.QueryRowContext(ctx, q, traceID, spanID)
	s, err := scanSpan(row)
	if err == sql.ErrNoRows {
		return otelspan.Span{}, ErrNotFound
	}
	if err != nil {
		return otelspan.Span{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return s, nil
}

func (r *SQLRepository) ListSpansByTrace(ctx context.Context, projectID, traceID string) ([]otelspan.Span, error) {
	q := fmt.Sprintf(`SELECT %s FROM spans WHERE project_id = %s AND trace_id = %s ORDER BY start_us ASC`,
		spanColumns, r.d.Placeholder(1), r.d.Placeholder(2))
	rows, err := r.db.QueryContext(ctx, q, projectID, traceID)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	defer rows.Close()

	var out []otelspan.Span
	for rows.Next() {
		s, err := scanSpan(rows)
		if err != nil {
			return nil, apierr.Backend(apierr.OriginDatabase, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// spanFilterConds builds the WHERE conditions and bound args shared by
// ListTraces and ListSpans; rootOnly appends the parent_span_id = ''
// condition that makes ListTraces return one row per trace.
func (r *SQLRepository) spanFilterConds(filter SpanFilter, rootOnly bool) ([]string, []any) {
	var conds []string
	var args []any
	idx := 1

	add := func(cond string, val any) {
		conds = append(conds, fmt.Sprintf(cond, r.d.Placeholder(idx)))
		args = append(args, val)
		idx++
	}

	if filter.ProjectID != "" {
		add("project_id = %s", filter.ProjectID)
	}
	if filter.SessionID != "" {
		add("session_id = %s", filter.SessionID)
	}
	if filter.TraceID != "" {
		add("trace_id = %s", filter.TraceID)
	}
	if filter.Observation != "" {
		add("observation = %s", string(filter.Observation))
	}
	if filter.Status != "" {
		add("status = %s", string(filter.Status))
	}
	if filter.StartAfter > 0 {
		add("start_us >= %s", filter.StartAfter)
	}
	if filter.StartBefore > 0 {
		add("start_us <= %s", filter.StartBefore)
	}
	if rootOnly {
		conds = append(conds, "parent_span_id = ''")
	}
	return conds, args
}

func (r *SQLRepository) queryFilteredSpans(ctx context.Context, filter SpanFilter, rootOnly bool) ([]otelspan.Span, error) {
	conds, args := r.spanFilterConds(filter, rootOnly)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	q := fmt.Sprintf(`SELECT %s FROM spans WHERE %s ORDER BY %s %s`,
		spanColumns, strings.Join(conds, " AND "),
		r.d.OrderByWithNulls("start_us", true, true),
		r.d.LimitOffset(limit, filter.Offset))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	defer rows.Close()

	var out []otelspan.Span
	for rows.Next() {
		s, err := scanSpan(rows)
		if err != nil {
			return nil, apierr.Backend(apierr.OriginDatabase, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListTraces(ctx context.Context, filter SpanFilter) ([]otelspan.Span, error) {
	return r.queryFilteredSpans(ctx, filter, true)
}

// ListSpans returns every span matching filter regardless of whether it is
// a trace root, for the flat /spans view and the project-wide feed.
func (r *SQLRepository) ListSpans(ctx context.Context, filter SpanFilter) ([]otelspan.Span, error) {
	return r.queryFilteredSpans(ctx, filter, false)
}

func (r *SQLRepository) EvictOldestSpans(ctx context.Context, projectID string, maxSpans int) (int64, error) {
	countQ := fmt.Sprintf(`SELECT COUNT(*) FROM spans WHERE project_id = %s`, r.d.Placeholder(1))
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, projectID).Scan(&total); err != nil {
		return 0, apierr.Backend(apierr.OriginDatabase, err)
	}
	if total <= maxSpans {
		return 0, nil
	}
	excess := total - maxSpans

	delQ := fmt.Sprintf(`DELETE FROM spans WHERE (trace_id, span_id) IN (
  SELECT trace_id, span_id FROM spans WHERE project_id = %s ORDER BY ingested_at ASC %s
)`, r.d.Placeholder(1), r.d.LimitOffset(excess, 0))

	res, err := r.db.ExecContext(ctx, delQ, projectID)
	if err != nil {
		return 0, apierr.Backend(apierr.OriginDatabase, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteTrace removes every span belonging to one trace in one project.
func (r *SQLRepository) DeleteTrace(ctx context.Context, projectID, traceID string) (int64, error) {
	delQ := fmt.Sprintf(`DELETE FROM spans WHERE project_id = %s AND trace_id = %s`,
		r.d.Placeholder(1), r.d.Placeholder(2))
	res, err := r.db.ExecContext(ctx, delQ, projectID, traceID)
	if err != nil {
		return 0, apierr.Backend(apierr.OriginDatabase, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- MetricRepository ---

var _ MetricRepository = (*SQLRepository)(nil)

func (r *SQLRepository) InsertMetrics(ctx context.Context, metrics []NormalizedMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`INSERT INTO metrics (project_id, metric_name, kind, value, attributes_json, timestamp_us) VALUES (%s)`,
		r.placeholders(1, 6))
	for _, m := range metrics {
		_, err := r.db.ExecContext(ctx, stmt, m.ProjectID, m.MetricName, m.Kind, m.Value, jsonOf(m.Attributes), m.TimestampUs)
		if err != nil {
			return apierr.Backend(apierr.OriginDatabase, err)
		}
	}
	return nil
}

// --- FileRepository ---

var _ FileRepository = (*SQLRepository)(nil)

func (r *SQLRepository) UpsertFile(ctx context.Context, row FileRow) error {
	existing, err := r.GetFile(ctx, row.ProjectID, row.ContentHash)
	if err == ErrNotFound {
		stmt := fmt.Sprintf(`INSERT INTO files (project_id, content_hash, media_type, size_bytes, storage_path, ref_count, created_at) VALUES (%s)`,
			r.placeholders(1, 7))
		_, err := r.db.ExecContext(ctx, stmt, row.ProjectID, row.ContentHash, row.MediaType, row.SizeBytes, row.StoragePath, 1, time.Now().UnixMicro())
		if err != nil {
			return apierr.Backend(apierr.OriginFiles, err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf(`UPDATE files SET ref_count = %s WHERE project_id = %s AND content_hash = %s`,
		r.d.Placeholder(1), r.d.Placeholder(2), r.d.Placeholder(3))
	_, err = r.db.ExecContext(ctx, stmt, existing.RefCount+1, row.ProjectID, row.ContentHash)
	if err != nil {
		return apierr.Backend(apierr.OriginFiles, err)
	}
	return nil
}

func (r *SQLRepository) DecrementRef(ctx context.Context, projectID, contentHash string) (LastOwnerResult, error) {
	existing, err := r.GetFile(ctx, projectID, contentHash)
	if err != nil {
		return LastOwnerResult{}, err
	}

	newCount := existing.RefCount - 1
	if newCount < 0 {
		newCount = 0
	}
	stmt := fmt.Sprintf(`UPDATE files SET ref_count = %s WHERE project_id = %s AND content_hash = %s`,
		r.d.Placeholder(1), r.d.Placeholder(2), r.d.Placeholder(3))
	if _, err := r.db.ExecContext(ctx, stmt, newCount, projectID, contentHash); err != nil {
		return LastOwnerResult{}, apierr.Backend(apierr.OriginFiles, err)
	}

	existing.RefCount = newCount
	return LastOwnerResult{Row: existing, WasLast: newCount == 0}, nil
}

func (r *SQLRepository) GetFile(ctx context.Context, projectID, contentHash string) (FileRow, error) {
	q := fmt.Sprintf(`SELECT project_id, content_hash, media_type, size_bytes, storage_path, ref_count, created_at
FROM files WHERE project_id = %s AND content_hash = %s`, r.d.Placeholder(1), r.d.Placeholder(2))
	var row FileRow
	var createdAtMicros int64
	err := r.db.QueryRowContext(ctx, q, projectID, contentHash).Scan(
		&row.ProjectID, &row.ContentHash, &row.MediaType, &row.SizeBytes, &row.StoragePath, &row.RefCount, &createdAtMicros)
	if err == sql.ErrNoRows {
		return FileRow{}, ErrNotFound
	}
	if err != nil {
		return FileRow{}, apierr.Backend(apierr.OriginFiles, err)
	}
	row.CreatedAt = time.UnixMicro(createdAtMicros).UTC()
	return row, nil
}

// --- AccountRepository ---

var _ AccountRepository = (*SQLRepository)(nil)

func (r *SQLRepository) CreateUser(ctx context.Context, u account.User) (account.User, error) {
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	stmt := fmt.Sprintf(`INSERT INTO users (id, email, name, password_hash, auth_method, created_at, updated_at) VALUES (%s)`,
		r.placeholders(1, 7))
	_, err := r.db.ExecContext(ctx, stmt, u.ID, u.Email, u.Name, u.PasswordHash, string(u.AuthMethod), now.UnixMicro(), now.UnixMicro())
	if err != nil {
		return account.User{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return u, nil
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (account.User, error) {
	q := fmt.Sprintf(`SELECT id, email, name, password_hash, auth_method, created_at, updated_at FROM users WHERE email = %s`, r.d.Placeholder(1))
	return r.scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id string) (account.User, error) {
	q := fmt.Sprintf(`SELECT id, email, name, password_hash, auth_method, created_at, updated_at FROM users WHERE id = %s`, r.d.Placeholder(1))
	return r.scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *SQLRepository) scanUser(row *sql.Row) (account.User, error) {
	var u account.User
	var authMethod string
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &authMethod, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return account.User{}, ErrNotFound
	}
	if err != nil {
		return account.User{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	u.AuthMethod = account.AuthMethod(authMethod)
	u.CreatedAt = time.UnixMicro(createdAt).UTC()
	u.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	return u, nil
}

func (r *SQLRepository) CreateOrganization(ctx context.Context, org account.Organization) (account.Organization, error) {
	org.CreatedAt = time.Now()
	stmt := fmt.Sprintf(`INSERT INTO organizations (id, name, slug, created_at) VALUES (%s)`, r.placeholders(1, 4))
	_, err := r.db.ExecContext(ctx, stmt, org.ID, org.Name, org.Slug, org.CreatedAt.UnixMicro())
	if err != nil {
		return account.Organization{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return org, nil
}

func (r *SQLRepository) CreateProject(ctx context.Context, p account.Project) (account.Project, error) {
	if !otelspan.ValidProjectID(p.ID) {
		return account.Project{}, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	p.CreatedAt = time.Now()
	stmt := fmt.Sprintf(`INSERT INTO projects (id, organization_id, name, created_at) VALUES (%s)`, r.placeholders(1, 4))
	_, err := r.db.ExecContext(ctx, stmt, p.ID, p.OrganizationID, p.Name, p.CreatedAt.UnixMicro())
	if err != nil {
		return account.Project{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return p, nil
}

func (r *SQLRepository) UpsertMembership(ctx context.Context, m account.Membership) error {
	m.CreatedAt = time.Now()
	stmt := fmt.Sprintf(`INSERT INTO memberships (id, user_id, organization_id, project_id, role, created_at) VALUES (%s)`,
		r.placeholders(1, 6))
	_, err := r.db.ExecContext(ctx, stmt, m.ID, m.UserID, m.OrganizationID, m.ProjectID, m.Role.String(), m.CreatedAt.UnixMicro())
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	return nil
}

func (r *SQLRepository) RemoveMembership(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM memberships WHERE id = %s`, r.d.Placeholder(1))
	_, err := r.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	return nil
}

func (r *SQLRepository) CreateApiKey(ctx context.Context, k account.ApiKey) (account.ApiKey, error) {
	k.CreatedAt = time.Now()
	stmt := fmt.Sprintf(`INSERT INTO api_keys (id, project_id, prefix, secret_hash, scope, name, created_at) VALUES (%s)`,
		r.placeholders(1, 7))
	_, err := r.db.ExecContext(ctx, stmt, k.ID, k.ProjectID, k.Prefix, k.SecretHash, k.Scope.String(), k.Name, k.CreatedAt.UnixMicro())
	if err != nil {
		return account.ApiKey{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	return k, nil
}

func (r *SQLRepository) GetApiKeyByPrefix(ctx context.Context, prefix string) (account.ApiKey, error) {
	q := fmt.Sprintf(`SELECT id, project_id, prefix, secret_hash, scope, name, created_at, last_used_at, revoked_at
FROM api_keys WHERE prefix = %s`, r.d.Placeholder(1))
	var k account.ApiKey
	var scope string
	var createdAt int64
	var lastUsed, revoked sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, prefix).Scan(&k.ID, &k.ProjectID, &k.Prefix, &k.SecretHash, &scope, &k.Name, &createdAt, &lastUsed, &revoked)
	if err == sql.ErrNoRows {
		return account.ApiKey{}, ErrNotFound
	}
	if err != nil {
		return account.ApiKey{}, apierr.Backend(apierr.OriginDatabase, err)
	}
	k.Scope, _ = account.ParseScope(scope)
	k.CreatedAt = time.UnixMicro(createdAt).UTC()
	if lastUsed.Valid {
		t := time.UnixMicro(lastUsed.Int64).UTC()
		k.LastUsedAt = &t
	}
	if revoked.Valid {
		t := time.UnixMicro(revoked.Int64).UTC()
		k.RevokedAt = &t
	}
	return k, nil
}

func (r *SQLRepository) AddFavorite(ctx context.Context, f account.Favorite) error {
	f.CreatedAt = time.Now()
	stmt := fmt.Sprintf(`INSERT INTO favorites (id, user_id, project_id, resource_id, kind, created_at) VALUES (%s)`,
		r.placeholders(1, 6))
	_, err := r.db.ExecContext(ctx, stmt, f.ID, f.UserID, f.ProjectID, f.ResourceID, f.Kind, f.CreatedAt.UnixMicro())
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	return nil
}

func (r *SQLRepository) RemoveFavorite(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM favorites WHERE id = %s`, r.d.Placeholder(1))
	_, err := r.db.ExecContext(ctx, stmt, id)
	if err != nil {
		return apierr.Backend(apierr.OriginDatabase, err)
	}
	return nil
}

func (r *SQLRepository) ListFavorites(ctx context.Context, userID, projectID string) ([]account.Favorite, error) {
	q := fmt.Sprintf(`SELECT id, user_id, project_id, resource_id, kind, created_at FROM favorites
WHERE user_id = %s AND project_id = %s ORDER BY created_at DESC`, r.d.Placeholder(1), r.d.Placeholder(2))
	rows, err := r.db.QueryContext(ctx, q, userID, projectID)
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	defer rows.Close()

	var out []account.Favorite
	for rows.Next() {
		var f account.Favorite
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.UserID, &f.ProjectID, &f.ResourceID, &f.Kind, &createdAt); err != nil {
			return nil, apierr.Backend(apierr.OriginDatabase, err)
		}
		f.CreatedAt = time.UnixMicro(createdAt).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *SQLRepository) OrgRole(ctx context.Context, userID, orgID string) (account.Role, bool, error) {
	return r.lookupRole(ctx, userID, "organization_id", orgID)
}

func (r *SQLRepository) ProjectRole(ctx context.Context, userID, projectID string) (account.Role, bool, error) {
	return r.lookupRole(ctx, userID, "project_id", projectID)
}

func (r *SQLRepository) lookupRole(ctx context.Context, userID, column, resourceID string) (account.Role, bool, error) {
	q := fmt.Sprintf(`SELECT role FROM memberships WHERE user_id = %s AND %s = %s`,
		r.d.Placeholder(1), column, r.d.Placeholder(2))
	var roleStr string
	err := r.db.QueryRowContext(ctx, q, userID, resourceID).Scan(&roleStr)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apierr.Backend(apierr.OriginDatabase, err)
	}
	role, ok := account.ParseRole(roleStr)
	return role, ok, nil
}
