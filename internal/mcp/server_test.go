package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/claude/healthexport/internal/aggregate"
	"github.com/claude/healthexport/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// fakeSource serves a fixed dataset for one user.
type fakeSource struct {
	userID  string
	ds      *models.Dataset
	summary *models.DatasetSummary
}

func (f *fakeSource) Load(_ context.Context, userID string) (*models.Dataset, error) {
	if userID != f.userID {
		return nil, nil
	}
	return f.ds, nil
}

func (f *fakeSource) Summary(_ context.Context, userID string) (*models.DatasetSummary, error) {
	if userID != f.userID {
		return nil, nil
	}
	return f.summary, nil
}

func newTestHandlers() *handlers {
	ds := models.NewDataset()
	ds.Steps = []models.Steps{
		{Steps: 1000, Date: "2024-01-01T08:00:00Z"},
		{Steps: 2000, Date: "2024-01-02T08:00:00Z"},
		{Steps: 3000, Date: "2024-01-03T08:00:00Z"},
	}
	ds.HeartRates = []models.HeartRate{
		{HeartRate: "60", Date: "2024-01-01T08:00:00Z"},
		{HeartRate: "90", Date: "2024-01-02T08:00:00Z"},
		{HeartRate: "120", Date: "2024-01-03T08:00:00Z"},
	}
	ds.Workouts = []models.Workout{
		{WorkoutType: "Running", Date: "2024-01-01T07:00:00Z"},
		{WorkoutType: "Cycling", Date: "2024-01-02T07:00:00Z"},
		{WorkoutType: "Running", Date: "2024-01-03T07:00:00Z"},
	}
	ds.Vitals[models.VitalWeight] = []models.VitalReading{
		{Value: 71, Unit: "kg", Date: "2024-01-03T07:00:00Z"},
		{Value: 70, Unit: "kg", Date: "2024-01-01T07:00:00Z"},
	}
	summary := &models.DatasetSummary{Counts: ds.Counts(), VitalsSummary: ds.Vitals, LastUpdated: "2024-01-04T00:00:00Z"}
	return &handlers{
		ds:  &fakeSource{userID: "u1", ds: ds, summary: summary},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

// TestUserIDFromContextDefault verifies the empty default when no value is
// set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	if id := UserIDFromContext(context.Background()); id != "" {
		t.Errorf("UserIDFromContext(empty) = %q, want empty", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), "u42")
	if id := UserIDFromContext(ctx); id != "u42" {
		t.Errorf("UserIDFromContext = %q, want u42", id)
	}
}

// TestGetDailySeries verifies the tool returns the series restricted to the
// requested days.
func TestGetDailySeries(t *testing.T) {
	h := newTestHandlers()
	res, err := h.getDailySeries(context.Background(), callRequest(map[string]any{
		"user_id": "u1",
		"metric":  "steps",
		"start":   "2024-01-02",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var series aggregate.Series
	if err := json.Unmarshal([]byte(resultText(t, res)), &series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(series.Daily) != 2 {
		t.Fatalf("days = %d, want 2", len(series.Daily))
	}
	if series.Daily[0].Value != 2000 || series.Daily[1].Value != 3000 {
		t.Errorf("daily = %+v", series.Daily)
	}
	if series.Trend.Slope != 1000 {
		t.Errorf("slope = %v, want 1000", series.Trend.Slope)
	}
}

// TestGetDailySeriesErrors verifies argument validation is reported as tool
// errors rather than protocol errors.
func TestGetDailySeriesErrors(t *testing.T) {
	h := newTestHandlers()
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing user", map[string]any{"metric": "steps"}},
		{"missing metric", map[string]any{"user_id": "u1"}},
		{"unknown metric", map[string]any{"user_id": "u1", "metric": "mood"}},
		{"bad date", map[string]any{"user_id": "u1", "metric": "steps", "end": "tomorrow"}},
		{"bad window", map[string]any{"user_id": "u1", "metric": "steps", "window": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.getDailySeries(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !res.IsError {
				t.Error("expected a tool error result")
			}
		})
	}
}

// TestGetDailySeriesContextUser verifies the session user is used when no
// user_id argument is given.
func TestGetDailySeriesContextUser(t *testing.T) {
	h := newTestHandlers()
	ctx := WithUserID(context.Background(), "u1")
	res, err := h.getDailySeries(ctx, callRequest(map[string]any{"metric": "weight"}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
}

// TestGetRangeStats verifies heart rate stats and workout types are limited
// to the requested days.
func TestGetRangeStats(t *testing.T) {
	h := newTestHandlers()
	res, err := h.getRangeStats(context.Background(), callRequest(map[string]any{
		"user_id": "u1",
		"start":   "2024-01-02",
		"end":     "2024-01-03T23:00:00Z",
	}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
	var got aggregate.RangeStats
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.From != "2024-01-02" || got.To != "2024-01-03" {
		t.Errorf("range = %q..%q", got.From, got.To)
	}
	want := aggregate.Summary{Count: 2, Min: 90, Max: 120, Average: 105, Total: 210}
	if got.HeartRate != want {
		t.Errorf("heartRate = %+v, want %+v", got.HeartRate, want)
	}
	if len(got.WorkoutTypes) != 2 || got.WorkoutTypes[0].Count != 1 {
		t.Errorf("workoutTypes = %+v", got.WorkoutTypes)
	}

	res, err = h.getRangeStats(context.Background(), callRequest(map[string]any{"user_id": "u1", "start": "soon"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Error("expected a tool error for an invalid start")
	}
}

// TestGetDatasetSummary verifies counts are returned and vitals stripped.
func TestGetDatasetSummary(t *testing.T) {
	h := newTestHandlers()
	res, err := h.getDatasetSummary(context.Background(), callRequest(map[string]any{"user_id": "u1"}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["stepsCount"] != float64(3) {
		t.Errorf("stepsCount = %v, want 3", got["stepsCount"])
	}
	if _, ok := got["vitalsSummary"]; ok {
		t.Error("vitalsSummary should be omitted")
	}

	res, err = h.getDatasetSummary(context.Background(), callRequest(map[string]any{"user_id": "nobody"}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
}

// TestGetVitals verifies the latest reading is chosen by date, not position.
func TestGetVitals(t *testing.T) {
	h := newTestHandlers()
	res, err := h.getVitals(context.Background(), callRequest(map[string]any{"user_id": "u1"}))
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure: %v", err)
	}
	var got []vitalStatus
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Vital != models.VitalWeight || got[0].Count != 2 {
		t.Fatalf("vitals = %+v", got)
	}
	if got[0].Latest == nil || got[0].Latest.Value != 71 {
		t.Errorf("latest = %+v, want 71 kg", got[0].Latest)
	}
}

// TestNew verifies the server builds with its tools registered.
func TestNew(t *testing.T) {
	s := New(newTestHandlers().ds, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s == nil {
		t.Fatal("New returned nil")
	}
	if HTTPHandler(s) == nil {
		t.Fatal("HTTPHandler returned nil")
	}
}
