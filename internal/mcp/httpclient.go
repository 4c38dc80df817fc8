package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/claude/healthexport/internal/models"
	"github.com/go-resty/resty/v2"
)

// HTTPClient implements DataSource by calling the healthexport REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	client *resty.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(30 * time.Second),
	}
}

// get fetches path for userID into out. It reports false on 404.
func (c *HTTPClient) get(ctx context.Context, path, userID string, out any) (bool, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("userId", userID).
		Get(path)
	if err != nil {
		return false, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return false, fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return true, nil
}

func (c *HTTPClient) Load(ctx context.Context, userID string) (*models.Dataset, error) {
	var ds *models.Dataset
	if _, err := c.get(ctx, "/api/health/dataset", userID, &ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (c *HTTPClient) Summary(ctx context.Context, userID string) (*models.DatasetSummary, error) {
	var s models.DatasetSummary
	found, err := c.get(ctx, "/api/health/summary", userID, &s)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}
