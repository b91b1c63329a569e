package apiserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"manifold/internal/repository"
)

// MCP exposes Queries/Stats as an MCP tool-call surface (spec.md glossary:
// "MCP: structured tool-call surface over the same query operations"),
// reusing the official SDK rather than the teacher's stdio-only
// github.com/metoro-io/mcp-golang (RunMCP in the top-level mcp.go): that
// library's only transport in this codebase is stdio, but spec.md mounts
// MCP as an HTTP endpoint per project, which only the SDK's
// StreamableHTTPHandler serves directly.
type MCP struct {
	Queries *Queries
}

type listTracesArgs struct {
	ProjectID string `json:"project_id" jsonschema:"required,description=Project id to list traces for"`
	Limit     int    `json:"limit,omitempty" jsonschema:"description=Max traces to return"`
}

type getTraceArgs struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
	TraceID   string `json:"trace_id" jsonschema:"required"`
}

type getStatsArgs struct {
	ProjectID string `json:"project_id" jsonschema:"required"`
	From      int64  `json:"from,omitempty" jsonschema:"description=Start of window, microseconds since epoch"`
	To        int64  `json:"to,omitempty" jsonschema:"description=End of window, microseconds since epoch"`
}

// Handler builds the MCP server for one project mount and wraps it in an
// HTTP handler; sessionRequest's URL path segment conveys which project
// every tool call in that session is scoped to (mux strips the prefix
// before this handler runs, so projectID is passed in directly rather
// than re-parsed from the request).
func (m *MCP) Handler(projectID string) http.Handler {
	server := mcp.NewServer(&mcp.Implementation{Name: "sideseat", Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_traces",
		Description: "List the most recent traces in this project, newest first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listTracesArgs) (*mcp.CallToolResult, any, error) {
		filter := repository.SpanFilter{ProjectID: projectID, Limit: spanFilterFromArgsLimit(args.Limit)}
		spans, err := m.Queries.ListTraces(ctx, filter)
		if err != nil {
			return nil, nil, err
		}
		return textResult(spans), spans, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_trace",
		Description: "Fetch one trace's root span by id.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getTraceArgs) (*mcp.CallToolResult, any, error) {
		span, err := m.Queries.GetTrace(ctx, projectID, args.TraceID)
		if err != nil {
			return nil, nil, err
		}
		return textResult(span), span, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Roll up trace/span/cost/token counts over a time window.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getStatsArgs) (*mcp.CallToolResult, any, error) {
		stats, err := m.Queries.Stats(ctx, StatsParams{ProjectID: projectID, From: args.From, To: args.To})
		if err != nil {
			return nil, nil, err
		}
		return textResult(stats), stats, nil
	})

	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
}

func spanFilterFromArgsLimit(limit int) int {
	if limit <= 0 {
		return DefaultFeedPageSize
	}
	return limit
}

// textResult renders v as the tool call's human-readable content,
// alongside the structured result the SDK attaches separately (the any
// return value of each handler above).
func textResult(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}, IsError: true}
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}
}
