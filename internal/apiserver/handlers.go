package apiserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"manifold/internal/apierr"
	"manifold/internal/authctx"
	"manifold/internal/observability"
	"manifold/internal/otelspan"
	"manifold/internal/repository"
)

// Server wires the query API and OTLP ingestion endpoints (spec.md §6)
// over a gorilla/mux router. It holds no business logic of its own —
// every handler below is a thin adapter from an *http.Request onto the
// Queries/Ingest/SSE functions that do the real work.
type Server struct {
	Queries *Queries
	Ingest  *Ingest
	SSE     *SSE
	MCP     *MCP
	Auth    *authctx.Checker
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	otlp := r.PathPrefix("/otel/{pid}/v1").Subrouter()
	otlp.HandleFunc("/traces", s.handleIngest(SignalTraces)).Methods(http.MethodPost)
	otlp.HandleFunc("/metrics", s.handleIngest(SignalMetrics)).Methods(http.MethodPost)
	otlp.HandleFunc("/logs", s.handleIngest(SignalLogs)).Methods(http.MethodPost)

	api := r.PathPrefix("/api/v1/projects/{pid}").Subrouter()
	api.HandleFunc("/traces", s.handleListTraces).Methods(http.MethodGet)
	api.HandleFunc("/traces/{tid}", s.handleGetTrace).Methods(http.MethodGet)
	api.HandleFunc("/traces/{tid}", s.handleDeleteTrace).Methods(http.MethodDelete)
	api.HandleFunc("/traces/{tid}/messages", s.handleTraceMessages).Methods(http.MethodGet)
	api.HandleFunc("/traces/{tid}/spans", s.handleTraceSpans).Methods(http.MethodGet)
	api.HandleFunc("/traces/{tid}/spans/{sid}", s.handleGetSpan).Methods(http.MethodGet)
	api.HandleFunc("/traces/{tid}/spans/{sid}/messages", s.handleSpanMessages).Methods(http.MethodGet)
	api.HandleFunc("/spans", s.handleListSpans).Methods(http.MethodGet)
	api.HandleFunc("/spans/filter-options", s.handleFilterOptions).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sid}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sid}/messages", s.handleSessionMessages).Methods(http.MethodGet)
	api.HandleFunc("/feed/messages", s.handleFeedMessages).Methods(http.MethodGet)
	api.HandleFunc("/feed/spans", s.handleFeedSpans).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)
	api.PathPrefix("/mcp").HandlerFunc(s.handleMCP)

	return r
}

func (s *Server) handleIngest(signal Signal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := mux.Vars(r)["pid"]
		if err := authorizeIngest(r.Context(), s.Auth, projectID); err != nil {
			apierr.WriteHTTP(w, err)
			return
		}
		contentType := r.Header.Get("Content-Type")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			apierr.WriteHTTP(w, apierr.Serialization(true, err))
			return
		}
		respBody, respContentType, err := s.Ingest.IngestOTLP(r.Context(), signal, projectID, contentType, body)
		if err != nil {
			observability.LoggerWithTrace(r.Context()).Error().Err(err).
				Str("project_id", projectID).Str("signal", string(signal)).
				Msg("otlp_ingest_failed")
			apierr.WriteHTTP(w, err)
			return
		}
		w.Header().Set("Content-Type", respContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(respBody)
	}
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	q := r.URL.Query()
	filter := repository.SpanFilter{
		ProjectID:   projectID,
		SessionID:   q.Get("session_id"),
		Observation: otelspan.ObservationType(q.Get("observation")),
		Status:      otelspan.SpanStatus(q.Get("status")),
		StartAfter:  parseInt64(q.Get("start_after")),
		StartBefore: parseInt64(q.Get("start_before")),
		Limit:       parseInt(q.Get("limit")),
		Offset:      parseInt(q.Get("offset")),
	}
	spans, err := s.Queries.ListTraces(r.Context(), filter)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, spans)
}

func (s *Server) handleListSpans(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	q := r.URL.Query()
	filter := repository.SpanFilter{
		ProjectID:   projectID,
		SessionID:   q.Get("session_id"),
		TraceID:     q.Get("trace_id"),
		Observation: otelspan.ObservationType(q.Get("observation")),
		Status:      otelspan.SpanStatus(q.Get("status")),
		StartAfter:  parseInt64(q.Get("start_after")),
		StartBefore: parseInt64(q.Get("start_before")),
		Limit:       parseInt(q.Get("limit")),
		Offset:      parseInt(q.Get("offset")),
	}
	spans, err := s.Queries.ListSpans(r.Context(), filter)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, spans)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	span, err := s.Queries.GetTrace(r.Context(), projectID, v["tid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeETag(w, span.TraceID, span.IngestedAt.UnixNano())
	writeJSON(w, span)
}

// handleDeleteTrace requires ingest-level access rather than read-level:
// deleting a trace is a write against the project, and authorizeIngest
// already enforces account.RoleMember / ScopeIngest for exactly that
// (spec.md §4.9 has no separate "delete" scope).
func (s *Server) handleDeleteTrace(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeIngest(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	if err := s.Queries.DeleteTrace(r.Context(), projectID, v["tid"]); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTraceSpans(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	spans, err := s.Queries.TraceSpans(r.Context(), projectID, v["tid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, spans)
}

func (s *Server) handleGetSpan(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := authorizeProjectRead(r.Context(), s.Auth, v["pid"]); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	span, err := s.Queries.GetSpan(r.Context(), v["tid"], v["sid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeETag(w, span.SpanID, span.IngestedAt.UnixNano())
	writeJSON(w, span)
}

func (s *Server) handleTraceMessages(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	messages, err := s.Queries.TraceMessages(r.Context(), projectID, v["tid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, messages)
}

func (s *Server) handleSpanMessages(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := authorizeProjectRead(r.Context(), s.Auth, v["pid"]); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	messages, err := s.Queries.SpanMessages(r.Context(), v["tid"], v["sid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, messages)
}

func (s *Server) handleFeedMessages(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	q := r.URL.Query()
	page, err := s.Queries.FeedMessages(r.Context(), projectID, q.Get("cursor"), parseInt(q.Get("limit")))
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, page)
}

func (s *Server) handleFeedSpans(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	q := r.URL.Query()
	page, err := s.Queries.FeedSpans(r.Context(), projectID, q.Get("cursor"), parseInt(q.Get("limit")))
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, page)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	q := r.URL.Query()
	stats, err := s.Queries.Stats(r.Context(), StatsParams{
		ProjectID: projectID,
		From:      parseInt64(q.Get("from")),
		To:        parseInt64(q.Get("to")),
		Timezone:  q.Get("timezone"),
	})
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	sessions, err := s.Queries.ListSessions(r.Context(), projectID)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	spans, err := s.Queries.GetSession(r.Context(), projectID, v["sid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, spans)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	projectID := v["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	messages, err := s.Queries.SessionMessages(r.Context(), projectID, v["sid"])
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, messages)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	opts, err := s.Queries.FilterOptions(r.Context(), projectID)
	if err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=30")
	writeJSON(w, opts)
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	_ = s.SSE.ServeHTTP(r.Context(), w, projectID)
}

func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["pid"]
	if err := authorizeProjectRead(r.Context(), s.Auth, projectID); err != nil {
		apierr.WriteHTTP(w, err)
		return
	}
	s.MCP.Handler(projectID).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeETag sets a weak ETag derived from an identifier and a revision
// timestamp, per spec.md §6 "Detail endpoints: computed ETag".
func writeETag(w http.ResponseWriter, id string, rev int64) {
	w.Header().Set("ETag", `W/"`+id+"-"+strconv.FormatInt(rev, 10)+`"`)
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
