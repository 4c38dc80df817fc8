package mcp

import (
	"context"

	"github.com/claude/healthexport/internal/dataset"
	"github.com/claude/healthexport/internal/models"
)

// DataSource abstracts the data layer for MCP tools. Both *dataset.Reader
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Load(ctx context.Context, userID string) (*models.Dataset, error)
	Summary(ctx context.Context, userID string) (*models.DatasetSummary, error)
}

// Compile-time check: *dataset.Reader satisfies DataSource.
var _ DataSource = (*dataset.Reader)(nil)
