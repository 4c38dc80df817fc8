package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/healthexport/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

type catalogEntry struct {
	Metric      string `json:"metric"`
	Unit        string `json:"unit,omitempty"`
	Aggregation string `json:"aggregation"`
}

var metricCatalog = []catalogEntry{
	{models.MetricHeartRates, "count/min", "mean"},
	{models.MetricEnergy, "kcal", "sum"},
	{models.MetricSteps, "count", "sum"},
	{models.MetricDistances, "most common unit in the data", "sum"},
	{models.MetricSleep, "hr", "sum of time asleep"},
	{models.MetricWorkouts, "count", "count"},
	{models.VitalWeight, "kg", "mean"},
	{models.VitalRestingHeartRate, "count/min", "mean"},
	{models.VitalRespiratoryRate, "count/min", "mean"},
	{models.VitalOxygenSaturation, "%", "mean"},
	{models.VitalSystolicBP, "mmHg", "mean"},
	{models.VitalDiastolicBP, "mmHg", "mean"},
}

func (h *handlers) metricCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(metricCatalog)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
