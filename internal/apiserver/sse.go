package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"manifold/internal/otelspan"
	"manifold/internal/topic"
)

// SSE streams newly persisted spans for one project over Server-Sent
// Events (spec.md §6 "GET /projects/{pid}/sse"), following the
// Content-Type/Cache-Control/Flush idiom the teacher's own cmd/agentd
// entrypoint uses for its streaming responses.
type SSE struct {
	Spans *topic.BroadcastTopic[otelspan.Span]
}

// ServeHTTP writes one "event: span\ndata: <json>\n\n" frame per span
// broadcast for projectID, until the client disconnects or ctx is done.
func (s *SSE) ServeHTTP(ctx context.Context, w http.ResponseWriter, projectID string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("sse: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.Spans.Subscribe()
	for {
		span, err := sub.Recv(ctx)
		if err != nil {
			if _, lagged := err.(*topic.LaggedError); lagged {
				log.Warn().Err(err).Msg("apiserver_sse_lagged")
				continue
			}
			return nil
		}
		if span.ProjectID != projectID {
			continue
		}
		b, err := json.Marshal(span)
		if err != nil {
			log.Error().Err(err).Msg("apiserver_sse_encode")
			continue
		}
		if _, err := fmt.Fprintf(w, "event: span\ndata: %s\n\n", b); err != nil {
			return nil
		}
		flusher.Flush()
	}
}
