package apiserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/otelspan"
)

func sessionSpan(projectID, sessionID, traceID, spanID, parentID string, startUs, endUs int64) otelspan.Span {
	s := span(projectID, traceID, spanID, parentID, startUs, endUs, nil)
	s.SessionID = sessionID
	return s
}

func TestListSessionsGroupsByRollsUpCounts(t *testing.T) {
	repo := &fakeSpanRepository{spans: []otelspan.Span{
		sessionSpan("proj1", "sess1", "t1", "root1", "", 1_000, 4_000),
		sessionSpan("proj1", "sess1", "t1", "child1", "root1", 1_500, 2_000),
		sessionSpan("proj1", "sess1", "t2", "root2", "", 5_000, 6_000),
		sessionSpan("proj1", "", "t3", "root3", "", 9_000, 9_500),
	}}
	q := NewQueries(repo)

	got, err := q.ListSessions(context.Background(), "proj1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "sess1", got[0].SessionID)
	assert.EqualValues(t, 2, got[0].TraceCount)
	assert.EqualValues(t, 3, got[0].SpanCount)
	assert.EqualValues(t, 1_000, got[0].FirstUs)
	assert.EqualValues(t, 6_000, got[0].LastUs)
}

func TestGetSessionNotFoundWhenUnknown(t *testing.T) {
	q := NewQueries(&fakeSpanRepository{})
	_, err := q.GetSession(context.Background(), "proj1", "missing")
	require.Error(t, err)
}

func TestFilterOptionsCollectsDistinctValues(t *testing.T) {
	s1 := span("proj1", "t1", "s1", "", 1_000, 2_000, nil)
	s1.Provider, s1.Model, s1.Framework = "openai", "gpt-4o", "langchain"
	s2 := span("proj1", "t2", "s2", "", 3_000, 4_000, nil)
	s2.Provider, s2.Model, s2.Framework = "anthropic", "claude-3", "langchain"

	repo := &fakeSpanRepository{spans: []otelspan.Span{s1, s2}}
	q := NewQueries(repo)

	opts, err := q.FilterOptions(context.Background(), "proj1")
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "openai"}, opts.Providers)
	assert.Equal(t, []string{"claude-3", "gpt-4o"}, opts.Models)
	assert.Equal(t, []string{"langchain"}, opts.Frameworks)
}
