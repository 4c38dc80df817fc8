package mcp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/claude/healthexport/internal/aggregate"
	"github.com/claude/healthexport/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var userIDParam = mcp.WithString("user_id", mcp.Description("User whose data to read. Defaults to the session user."))

var toolGetDailySeries = mcp.NewTool("get_daily_series",
	mcp.WithDescription("Per-day values of one metric with a trailing moving average and a least-squares trend line. Heart rate and vitals are daily means; energy, steps and distance are daily sums; sleep is hours asleep; workouts are counts."),
	userIDParam,
	mcp.WithString("metric", mcp.Required(), mcp.Description("Metric name"), mcp.Enum(aggregate.SeriesMetrics...)),
	mcp.WithNumber("window", mcp.Description("Moving-average window in days. Defaults to 7.")),
	mcp.WithString("start", mcp.Description("First day to include (ISO 8601 or YYYY-MM-DD). Defaults to the first day with data.")),
	mcp.WithString("end", mcp.Description("Last day to include (ISO 8601 or YYYY-MM-DD). Defaults to the last day with data.")),
)

var toolGetDatasetSummary = mcp.NewTool("get_dataset_summary",
	mcp.WithDescription("Record counts per metric and the time of the latest upload."),
	userIDParam,
)

var toolGetRangeStats = mcp.NewTool("get_range_stats",
	mcp.WithDescription("Minimum, maximum, average and total of heart rate and energy readings, and workout counts per workout type, over an optional date range."),
	userIDParam,
	mcp.WithString("start", mcp.Description("First day to include (ISO 8601 or YYYY-MM-DD). Open when omitted.")),
	mcp.WithString("end", mcp.Description("Last day to include (ISO 8601 or YYYY-MM-DD). Open when omitted.")),
)

var toolGetVitals = mcp.NewTool("get_vitals",
	mcp.WithDescription("Latest reading and reading count of each vital sign (weight in kg, resting heart rate, respiratory rate, oxygen saturation, blood pressure)."),
	userIDParam,
)

// --- Tool handlers ---

func userFromRequest(ctx context.Context, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	userID := req.GetString("user_id", UserIDFromContext(ctx))
	if userID == "" {
		return "", mcp.NewToolResultError("user_id parameter is required")
	}
	return userID, nil
}

func (h *handlers) getDailySeries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := userFromRequest(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	metric, err := req.RequireString("metric")
	if err != nil {
		return mcp.NewToolResultError("metric parameter is required"), nil
	}
	from, to, err := aggregate.DayRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	window := req.GetInt("window", aggregate.DefaultWindow)
	if window <= 0 {
		return mcp.NewToolResultError("window must be positive"), nil
	}

	ds, err := h.ds.Load(ctx, userID)
	if err != nil {
		h.log.Error("mcp get_daily_series", "user_id", userID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if ds == nil {
		ds = models.NewDataset()
	}

	series, err := aggregate.DailySeries(ds, metric, window)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	aggregate.Restrict(series, from, to, window)

	result, err := mcp.NewToolResultJSON(series)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDatasetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := userFromRequest(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	summary, err := h.ds.Summary(ctx, userID)
	if err != nil {
		h.log.Error("mcp get_dataset_summary", "user_id", userID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if summary == nil {
		return mcp.NewToolResultText(fmt.Sprintf("no health data uploaded for user %s", userID)), nil
	}
	// The vitals themselves are served by get_vitals.
	summary.VitalsSummary = nil

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getRangeStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := userFromRequest(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	from, to, err := aggregate.DayRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	ds, err := h.ds.Load(ctx, userID)
	if err != nil {
		h.log.Error("mcp get_range_stats", "user_id", userID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if ds == nil {
		ds = models.NewDataset()
	}

	result, err := mcp.NewToolResultJSON(aggregate.StatsInRange(ds, from, to))
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

type vitalStatus struct {
	Vital  string               `json:"vital"`
	Count  int                  `json:"count"`
	Latest *models.VitalReading `json:"latest,omitempty"`
}

func (h *handlers) getVitals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := userFromRequest(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	ds, err := h.ds.Load(ctx, userID)
	if err != nil {
		h.log.Error("mcp get_vitals", "user_id", userID, "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := []vitalStatus{}
	if ds != nil {
		names := make([]string, 0, len(ds.Vitals))
		for name := range ds.Vitals {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, vitalStatus{Vital: name, Count: len(ds.Vitals[name]), Latest: latestReading(ds.Vitals[name])})
		}
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// latestReading returns the reading with the latest parseable date, or the
// last one when none parse.
func latestReading(rs []models.VitalReading) *models.VitalReading {
	if len(rs) == 0 {
		return nil
	}
	best := len(rs) - 1
	var bestTime time.Time
	for i, r := range rs {
		t, ok := models.ParseDate(r.Date)
		if ok && t.After(bestTime) {
			best, bestTime = i, t
		}
	}
	r := rs[best]
	return &r
}
