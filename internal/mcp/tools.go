package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/stride/internal/models"
	"github.com/claude/stride/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// runsInRange loads history and keeps runs whose start time falls in
// [start, end]. History is small enough to filter in memory.
func (h *handlers) runsInRange(ctx context.Context, start, end time.Time) ([]models.RunSession, error) {
	all, err := h.store.LoadHistory(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]models.RunSession, 0, len(all))
	for _, r := range all {
		at := time.UnixMilli(r.StartTime)
		if at.Before(start) || at.After(end) {
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// --- Tool definitions ---

var toolListRuns = mcp.NewTool("list_runs",
	mcp.WithDescription("List completed runs, most recent first. Returns run summaries (type, start time, duration, distance, calories, average pace) without GPS paths."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return. Defaults to 50.")),
)

var toolGetRun = mcp.NewTool("get_run",
	mcp.WithDescription("Retrieve one run by ID, including its full GPS path with per-point pace zones."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
)

var toolRunStats = mcp.NewTool("run_stats",
	mcp.WithDescription("Aggregate training stats over a time range: run count, total distance, total duration, total calories, and overall average pace."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

// --- Tool handlers ---

func (h *handlers) listRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	limit := req.GetInt("limit", 50)

	runs, err := h.runsInRange(ctx, start, end)
	if err != nil {
		h.log.Error("mcp list_runs", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	for i := range runs {
		runs[i].Path = nil
	}

	result, err := mcp.NewToolResultJSON(runs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return mcp.NewToolResultError("run not found: " + id), nil
		}
		h.log.Error("mcp get_run", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(run)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) runStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	runs, err := h.runsInRange(ctx, start, end)
	if err != nil {
		h.log.Error("mcp run_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	var distance float64
	var duration, calories int
	for _, r := range runs {
		distance += r.Distance
		duration += r.Duration
		calories += r.Calories
	}
	avgPace := ""
	if distance > 0 {
		secPerKm := float64(duration) / distance
		avgPace = fmt.Sprintf("%d:%02d", int(secPerKm)/60, int(secPerKm)%60)
	}

	stats := map[string]any{
		"start":          start.Format(time.RFC3339),
		"end":            end.Format(time.RFC3339),
		"run_count":      len(runs),
		"total_distance": distance,
		"total_duration": duration,
		"total_calories": calories,
		"avg_pace":       avgPace,
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
