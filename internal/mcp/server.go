// Package mcp exposes run history to MCP clients so assistants can query
// training data directly.
package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/claude/stride/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(store storage.Store, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Stride", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Stride run tracking server. Query completed runs, per-run GPS paths, and aggregate training stats."),
	)

	h := &handlers{store: store, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListRuns, Handler: h.listRuns},
		server.ServerTool{Tool: toolGetRun, Handler: h.getRun},
		server.ServerTool{Tool: toolRunStats, Handler: h.runStats},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentRuns, Handler: h.recentRuns},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	store storage.Store
	log   *slog.Logger
}

// --- Resource definitions ---

var resRecentRuns = mcp.NewResource(
	"stride://recent_runs",
	"Recent Runs",
	mcp.WithResourceDescription("Completed runs from the last 14 days, without GPS paths"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) recentRuns(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cutoff := time.Now().AddDate(0, 0, -14)
	runs, err := h.runsInRange(ctx, cutoff, time.Now())
	if err != nil {
		h.log.Error("mcp recent_runs", "error", err)
		return nil, err
	}
	for i := range runs {
		runs[i].Path = nil
	}
	return jsonResource(req.Params.URI, runs)
}
