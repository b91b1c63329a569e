// Package repository persists and queries otelspan.Span rows and
// transactional account entities against whichever backend
// internal/dialect targets, building every query through the Dialect
// interface so no backend-specific SQL literal appears here (spec.md §4.1,
// "Wiring" in SPEC_FULL.md §4.1).
package repository

import (
	"context"
	"errors"
	"time"

	"manifold/internal/account"
	"manifold/internal/otelspan"
)

// ErrNotFound is returned when a lookup by id finds nothing.
var ErrNotFound = errors.New("repository: not found")

// SpanFilter narrows ListSpans / Stats queries. Zero values mean
// "unconstrained" for that field.
type SpanFilter struct {
	ProjectID   string
	SessionID   string
	TraceID     string
	Observation otelspan.ObservationType
	Status      otelspan.SpanStatus
	StartAfter  int64 // microseconds
	StartBefore int64
	Limit       int
	Offset      int
}

// SpanRepository persists and queries the analytics span rows.
type SpanRepository interface {
	// InsertSpans batch-inserts spans, matching original_source's
	// batch-with-retry insert contract (internal/tracepipeline owns the
	// retry loop; this is the single-attempt write).
	InsertSpans(ctx context.Context, spans []otelspan.Span) error

	// GetSpan returns one span by (trace_id, span_id), its identifying key.
	GetSpan(ctx context.Context, traceID, spanID string) (otelspan.Span, error)

	// ListSpansByTrace returns every span of a trace, for feed.Timeline
	// and the spans-view API.
	ListSpansByTrace(ctx context.Context, projectID, traceID string) ([]otelspan.Span, error)

	// ListTraces returns one representative (root) span per trace matching
	// filter, newest first, for the trace list API.
	ListTraces(ctx context.Context, filter SpanFilter) ([]otelspan.Span, error)

	// ListSpans returns every span (root or not) matching filter, newest
	// first, for the flat spans view and the project-wide feed.
	ListSpans(ctx context.Context, filter SpanFilter) ([]otelspan.Span, error)

	// EvictOldestSpans deletes the oldest spans in project beyond
	// maxSpans, implementing the retention lifecycle (spec.md §3
	// "Lifecycles").
	EvictOldestSpans(ctx context.Context, projectID string, maxSpans int) (int64, error)

	// DeleteTrace removes every span of one trace, for the operator-driven
	// bulk delete API ("DELETE /projects/{pid}/traces/{tid}").
	DeleteTrace(ctx context.Context, projectID, traceID string) (int64, error)
}

// NormalizedMetric is one flattened metrics-pipeline output row.
type NormalizedMetric struct {
	ProjectID   string
	MetricName  string
	Kind        string // gauge, sum, histogram, exponential_histogram, summary
	Value       float64
	Attributes  map[string]string
	TimestampUs int64
}

// MetricRepository persists flattened metric rows from internal/metricspipeline.
type MetricRepository interface {
	InsertMetrics(ctx context.Context, metrics []NormalizedMetric) error
}

// FileRow is a persisted file record (spec.md §3 "File record").
type FileRow struct {
	ProjectID   string
	ContentHash string
	MediaType   string
	SizeBytes   int64
	StoragePath string
	RefCount    int
	CreatedAt   time.Time
}

// LastOwnerResult reports whether decrementing a file's ref count made it
// the last reference, i.e. whether the physical blob should now be swept —
// kept as a named return shape per original_source's transactional.rs
// (SPEC_FULL.md §3).
type LastOwnerResult struct {
	Row     FileRow
	WasLast bool
}

// FileRepository tracks per-project file-record ref counts in the
// transactional database. internal/fileblob's Sweep does not consult it;
// it judges liveness by in-process counts only.
type FileRepository interface {
	// UpsertFile creates a file record or increments its ref count if one
	// already exists for (project_id, content_hash).
	UpsertFile(ctx context.Context, row FileRow) error

	// DecrementRef decrements ref_count for (project_id, content_hash) and
	// reports whether it reached zero.
	DecrementRef(ctx context.Context, projectID, contentHash string) (LastOwnerResult, error)

	// GetFile returns a file record by (project_id, content_hash).
	GetFile(ctx context.Context, projectID, contentHash string) (FileRow, error)
}

// AccountRepository is the transactional CRUD surface for
// internal/account entities, and implements authctx.MembershipLookup.
type AccountRepository interface {
	CreateUser(ctx context.Context, u account.User) (account.User, error)
	GetUserByEmail(ctx context.Context, email string) (account.User, error)
	GetUserByID(ctx context.Context, id string) (account.User, error)

	CreateOrganization(ctx context.Context, org account.Organization) (account.Organization, error)
	CreateProject(ctx context.Context, p account.Project) (account.Project, error)

	UpsertMembership(ctx context.Context, m account.Membership) error
	RemoveMembership(ctx context.Context, id string) error

	CreateApiKey(ctx context.Context, k account.ApiKey) (account.ApiKey, error)
	GetApiKeyByPrefix(ctx context.Context, prefix string) (account.ApiKey, error)

	AddFavorite(ctx context.Context, f account.Favorite) error
	RemoveFavorite(ctx context.Context, id string) error
	ListFavorites(ctx context.Context, userID, projectID string) ([]account.Favorite, error)

	// OrgRole and ProjectRole satisfy authctx.MembershipLookup directly.
	OrgRole(ctx context.Context, userID, orgID string) (account.Role, bool, error)
	ProjectRole(ctx context.Context, userID, projectID string) (account.Role, bool, error)
}
