package apiserver

import (
	"context"
	"sort"

	"manifold/internal/apierr"
	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// SessionSummary is one row of "GET /projects/{pid}/sessions": the
// traces sharing a session id, rolled up to their span/trace counts and
// time bounds, newest activity first.
type SessionSummary struct {
	SessionID  string
	TraceCount int64
	SpanCount  int64
	FirstUs    int64
	LastUs     int64
}

// ListSessions groups every span in a project by session id (spans
// without a session id are omitted, matching spec.md's session model
// where sessions are an opt-in grouping, not a mandatory attribute).
func (q *Queries) ListSessions(ctx context.Context, projectID string) ([]SessionSummary, error) {
	if !otelspan.ValidProjectID(projectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListSpans(ctx, repository.SpanFilter{ProjectID: projectID})
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}

	byID := map[string]*SessionSummary{}
	traceSeen := map[string]map[string]bool{}
	var order []string
	for _, s := range spans {
		if s.SessionID == "" {
			continue
		}
		sum, ok := byID[s.SessionID]
		if !ok {
			sum = &SessionSummary{SessionID: s.SessionID, FirstUs: s.StartUs, LastUs: s.EndUs}
			byID[s.SessionID] = sum
			traceSeen[s.SessionID] = map[string]bool{}
			order = append(order, s.SessionID)
		}
		sum.SpanCount++
		if !traceSeen[s.SessionID][s.TraceID] {
			traceSeen[s.SessionID][s.TraceID] = true
			sum.TraceCount++
		}
		if s.StartUs < sum.FirstUs {
			sum.FirstUs = s.StartUs
		}
		if s.EndUs > sum.LastUs {
			sum.LastUs = s.EndUs
		}
	}

	out := make([]SessionSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUs > out[j].LastUs })
	return out, nil
}

// GetSession returns every root span (one per trace) belonging to a
// session, newest first (spec.md "GET /projects/{pid}/sessions/{sid}").
func (q *Queries) GetSession(ctx context.Context, projectID, sessionID string) ([]otelspan.Span, error) {
	if !otelspan.ValidProjectID(projectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListTraces(ctx, repository.SpanFilter{ProjectID: projectID, SessionID: sessionID})
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	if len(spans) == 0 {
		return nil, apierr.NotFound("SESSION_NOT_FOUND", "session does not exist")
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].StartUs > spans[j].StartUs })
	return spans, nil
}

// SessionMessages runs the feed timeline once over every span in a
// session, producing one linear conversation that is deduplicated across
// traces and ordered by message birth time
// (spec.md "GET /projects/{pid}/sessions/{sid}/messages").
func (q *Queries) SessionMessages(ctx context.Context, projectID, sessionID string) ([]otelspan.ChatMessage, error) {
	if !otelspan.ValidProjectID(projectID) {
		return nil, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListSpans(ctx, repository.SpanFilter{ProjectID: projectID, SessionID: sessionID})
	if err != nil {
		return nil, apierr.Backend(apierr.OriginDatabase, err)
	}
	if len(spans) == 0 {
		return nil, apierr.NotFound("SESSION_NOT_FOUND", "session does not exist")
	}
	return feedTimelineAcrossSpans(spans), nil
}

// FilterOptions is the distinct-value set "GET /projects/{pid}/spans/filter-options"
// returns to populate filter UI controls.
type FilterOptions struct {
	Observations []otelspan.ObservationType
	Statuses     []otelspan.SpanStatus
	Providers    []string
	Models       []string
	Frameworks   []string
}

// FilterOptions scans up to maxStatsSpans of a project's spans for the
// distinct values their filterable columns take on.
func (q *Queries) FilterOptions(ctx context.Context, projectID string) (FilterOptions, error) {
	if !otelspan.ValidProjectID(projectID) {
		return FilterOptions{}, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	spans, err := q.Spans.ListSpans(ctx, repository.SpanFilter{ProjectID: projectID, Limit: maxStatsSpans})
	if err != nil {
		return FilterOptions{}, apierr.Backend(apierr.OriginDatabase, err)
	}

	obs := map[otelspan.ObservationType]bool{}
	statuses := map[otelspan.SpanStatus]bool{}
	providers := map[string]bool{}
	models := map[string]bool{}
	frameworks := map[string]bool{}
	for _, s := range spans {
		obs[s.Observation] = true
		statuses[s.Status] = true
		if s.Provider != "" {
			providers[s.Provider] = true
		}
		if s.Model != "" {
			models[s.Model] = true
		}
		if s.Framework != "" {
			frameworks[s.Framework] = true
		}
	}

	out := FilterOptions{}
	for v := range obs {
		out.Observations = append(out.Observations, v)
	}
	for v := range statuses {
		out.Statuses = append(out.Statuses, v)
	}
	for v := range providers {
		out.Providers = append(out.Providers, v)
	}
	for v := range models {
		out.Models = append(out.Models, v)
	}
	for v := range frameworks {
		out.Frameworks = append(out.Frameworks, v)
	}
	sort.Slice(out.Observations, func(i, j int) bool { return out.Observations[i] < out.Observations[j] })
	sort.Slice(out.Statuses, func(i, j int) bool { return out.Statuses[i] < out.Statuses[j] })
	sort.Strings(out.Providers)
	sort.Strings(out.Models)
	sort.Strings(out.Frameworks)
	return out, nil
}
