package apiserver

import (
	"context"
	"sort"

	"manifold/internal/apierr"
	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// DefaultFeedPageSize bounds a feed page when the caller doesn't specify one.
const DefaultFeedPageSize = 50

// FeedSpansPage is one page of "GET /projects/{pid}/feed/spans".
type FeedSpansPage struct {
	Spans      []otelspan.Span
	NextCursor string // empty when this is the last page
}

// FeedSpans returns the most recent spans in a project strictly before
// cursor (empty cursor starts from now), newest first.
func (q *Queries) FeedSpans(ctx context.Context, projectID, cursor string, limit int) (FeedSpansPage, error) {
	if !otelspan.ValidProjectID(projectID) {
		return FeedSpansPage{}, apierr.Validation("INVALID_PROJECT_ID", "project id must match [A-Za-z0-9_-]{1,64}")
	}
	after, err := decodeCursor(cursor)
	if err != nil {
		return FeedSpansPage{}, err
	}
	if limit <= 0 {
		limit = DefaultFeedPageSize
	}

	// Over-fetch by one so NextCursor can be set without a second
	// existence query, and over-fetch the whole window up through the
	// cursor since ListSpans has no native (timestamp, tiebreak) seek.
	spans, err := q.Spans.ListSpans(ctx, repository.SpanFilter{
		ProjectID:   projectID,
		StartBefore: after.TimestampUs,
		Limit:       limit * feedOverfetchFactor,
	})
	if err != nil {
		return FeedSpansPage{}, apierr.Backend(apierr.OriginDatabase, err)
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].StartUs != spans[j].StartUs {
			return spans[i].StartUs > spans[j].StartUs
		}
		return spans[i].SpanID > spans[j].SpanID
	})

	var page []otelspan.Span
	for _, s := range spans {
		if cursor != "" && !after.after(s.StartUs, s.SpanID) {
			continue
		}
		page = append(page, s)
		if len(page) == limit+1 {
			break
		}
	}

	out := FeedSpansPage{}
	if len(page) > limit {
		out.NextCursor = encodeCursor(feedCursor{TimestampUs: page[limit-1].StartUs, TiebreakID: page[limit-1].SpanID})
		page = page[:limit]
	}
	out.Spans = page
	return out, nil
}

// feedOverfetchFactor widens the underlying query so the cursor seek
// (done in memory, since SpanFilter has no native tiebreak predicate) has
// enough rows to find limit+1 matches past the cursor.
const feedOverfetchFactor = 4

// feedMessageItem is one row of "GET /projects/{pid}/feed/messages": a
// single deduped ChatMessage plus the span it was attributed to, so the UI
// can link back to the originating trace.
type feedMessageItem struct {
	TraceID   string
	SpanID    string
	Timestamp int64
	Message   otelspan.ChatMessage
}

// FeedMessagesPage is one page of "GET /projects/{pid}/feed/messages".
type FeedMessagesPage struct {
	Messages   []feedMessageItem
	NextCursor string
}

// FeedMessages flattens the feed-processed timeline of every trace with
// activity in the requested window into a single project-wide, newest-first,
// cursor-paginated message stream.
func (q *Queries) FeedMessages(ctx context.Context, projectID, cursor string, limit int) (FeedMessagesPage, error) {
	spansPage, err := q.FeedSpans(ctx, projectID, cursor, limit)
	if err != nil {
		return FeedMessagesPage{}, err
	}

	byTrace := map[string][]otelspan.Span{}
	for _, s := range spansPage.Spans {
		byTrace[s.TraceID] = append(byTrace[s.TraceID], s)
	}

	var items []feedMessageItem
	for traceID, spans := range byTrace {
		timeline := feedTimelineAcrossSpans(spans)
		last := spans[0]
		for _, s := range spans {
			if s.StartUs > last.StartUs {
				last = s
			}
		}
		for _, m := range timeline {
			items = append(items, feedMessageItem{
				TraceID: traceID, SpanID: last.SpanID, Timestamp: last.StartUs, Message: m,
			})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp > items[j].Timestamp })

	return FeedMessagesPage{Messages: items, NextCursor: spansPage.NextCursor}, nil
}
