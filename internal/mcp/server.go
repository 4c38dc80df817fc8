package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDHeader carries the user for MCP sessions over HTTP.
const UserIDHeader = "X-User-Id"

// UserIDFromContext extracts the user ID injected by the transport layer.
// Tools fall back to it when no user_id argument is given.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("healthexport", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("healthexport server. Query daily health series (heart rate, energy, steps, distance, sleep, workouts, vitals) with moving averages and trend lines, and per-upload record counts. Every tool is scoped to a user_id."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetDailySeries, Handler: h.getDailySeries},
		server.ServerTool{Tool: toolGetDatasetSummary, Handler: h.getDatasetSummary},
		server.ServerTool{Tool: toolGetRangeStats, Handler: h.getRangeStats},
		server.ServerTool{Tool: toolGetVitals, Handler: h.getVitals},
	)

	s.AddResources(
		server.ServerResource{Resource: resMetricCatalog, Handler: h.metricCatalog},
	)

	return s
}

// HTTPHandler serves s over streamable HTTP. The user is taken from the
// X-User-Id header.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id := r.Header.Get(UserIDHeader); id != "" {
				return WithUserID(ctx, id)
			}
			return ctx
		}),
	)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resMetricCatalog = mcp.NewResource(
	"healthexport://metric_catalog",
	"Metric Catalog",
	mcp.WithResourceDescription("Metrics accepted by get_daily_series with their units and daily aggregation"),
	mcp.WithMIMEType("application/json"),
)
