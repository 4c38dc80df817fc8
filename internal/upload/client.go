package upload

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/claude/healthexport/internal/ingest"
)

// uploadPath is the server's multipart upload endpoint.
const uploadPath = "/api/health/upload"

// Client sends export files to the healthexport server over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient creates a new HTTP client for the healthexport server.
// Transport errors and 5xx responses are retried; 4xx responses are not.
func NewClient(serverURL string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(serverURL, "/")).
		SetTimeout(10*time.Minute).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(8*time.Second).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Client{http: c}
}

// ServerError is a non-201 response from the upload endpoint.
type ServerError struct {
	Status  int
	Message string
	Details string
}

func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("upload failed (status %d): %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("upload failed (status %d): %s", e.Status, e.Message)
}

// Retryable reports whether sending the same file again could succeed.
func (e *ServerError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError
}

// UploadFile posts one export file for userID and returns the server's
// ingest result.
func (c *Client) UploadFile(ctx context.Context, path, userID string) (*ingest.Result, error) {
	var result ingest.Result
	var failure struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"userId": userID}).
		SetFile("file", path).
		SetResult(&result).
		SetError(&failure).
		Post(uploadPath)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
	}

	if resp.StatusCode() != http.StatusCreated {
		msg := failure.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return nil, &ServerError{Status: resp.StatusCode(), Message: msg, Details: failure.Details}
	}
	return &result, nil
}
