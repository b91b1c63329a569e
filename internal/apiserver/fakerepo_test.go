package apiserver

import (
	"context"

	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// fakeSpanRepository is an in-memory repository.SpanRepository double,
// filtering ListSpans/ListTraces the way sqlrepo.go's spanFilterConds
// does, for tests that don't need a real database.
type fakeSpanRepository struct {
	spans []otelspan.Span
}

func (f *fakeSpanRepository) InsertSpans(context.Context, []otelspan.Span) error { return nil }

func (f *fakeSpanRepository) GetSpan(_ context.Context, traceID, spanID string) (otelspan.Span, error) {
	for _, s := range f.spans {
		if s.TraceID == traceID && s.SpanID == spanID {
			return s, nil
		}
	}
	return otelspan.Span{}, repository.ErrNotFound
}

func (f *fakeSpanRepository) ListSpansByTrace(_ context.Context, projectID, traceID string) ([]otelspan.Span, error) {
	var out []otelspan.Span
	for _, s := range f.spans {
		if s.ProjectID == projectID && s.TraceID == traceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSpanRepository) ListTraces(_ context.Context, filter repository.SpanFilter) ([]otelspan.Span, error) {
	var out []otelspan.Span
	for _, s := range f.spans {
		if s.ParentSpanID != "" {
			continue
		}
		if matchesFilter(s, filter) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSpanRepository) ListSpans(_ context.Context, filter repository.SpanFilter) ([]otelspan.Span, error) {
	var out []otelspan.Span
	for _, s := range f.spans {
		if matchesFilter(s, filter) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSpanRepository) EvictOldestSpans(context.Context, string, int) (int64, error) {
	return 0, nil
}

func (f *fakeSpanRepository) DeleteTrace(_ context.Context, projectID, traceID string) (int64, error) {
	var kept []otelspan.Span
	var deleted int64
	for _, s := range f.spans {
		if s.ProjectID == projectID && s.TraceID == traceID {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	f.spans = kept
	return deleted, nil
}

func matchesFilter(s otelspan.Span, filter repository.SpanFilter) bool {
	if filter.ProjectID != "" && s.ProjectID != filter.ProjectID {
		return false
	}
	if filter.StartAfter > 0 && s.StartUs < filter.StartAfter {
		return false
	}
	if filter.StartBefore > 0 && s.StartUs > filter.StartBefore {
		return false
	}
	return true
}
