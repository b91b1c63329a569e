package apiserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/otelspan"
)

func TestFeedSpansPaginatesNewestFirst(t *testing.T) {
	repo := &fakeSpanRepository{spans: []otelspan.Span{
		span("proj1", "t1", "s1", "", 1_000, 2_000, nil),
		span("proj1", "t2", "s2", "", 2_000, 3_000, nil),
		span("proj1", "t3", "s3", "", 3_000, 4_000, nil),
	}}
	q := NewQueries(repo)

	page1, err := q.FeedSpans(context.Background(), "proj1", "", 2)
	require.NoError(t, err)
	require.Len(t, page1.Spans, 2)
	assert.Equal(t, "s3", page1.Spans[0].SpanID)
	assert.Equal(t, "s2", page1.Spans[1].SpanID)
	require.NotEmpty(t, page1.NextCursor)

	page2, err := q.FeedSpans(context.Background(), "proj1", page1.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Spans, 1)
	assert.Equal(t, "s1", page2.Spans[0].SpanID)
	assert.Empty(t, page2.NextCursor)
}

func TestFeedMessagesFlattensPerTraceTimelines(t *testing.T) {
	msg := otelspan.ChatMessage{Role: otelspan.RoleUser, Blocks: []otelspan.ContentBlock{{Kind: otelspan.BlockText, Text: "hi"}}}
	repo := &fakeSpanRepository{spans: []otelspan.Span{
		span("proj1", "t1", "s1", "", 1_000, 2_000, []otelspan.ChatMessage{msg}),
	}}
	q := NewQueries(repo)

	page, err := q.FeedMessages(context.Background(), "proj1", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "t1", page.Messages[0].TraceID)
}
