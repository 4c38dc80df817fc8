package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claude/healthexport/internal/models"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestLoad verifies the client passes userId and decodes the dataset.
func TestLoad(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/health/dataset": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("userId"); got != "u1" {
				t.Errorf("userId = %q, want u1", got)
			}
			ds := models.NewDataset()
			ds.Steps = append(ds.Steps, models.Steps{Steps: 1200, Date: "2024-01-01T08:00:00Z"})
			writeTestJSON(t, w, ds)
		},
	})
	defer ts.Close()

	ds, err := NewHTTPClient(ts.URL+"/").Load(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if ds == nil || len(ds.Steps) != 1 || ds.Steps[0].Steps != 1200 {
		t.Errorf("dataset = %+v", ds)
	}
}

// TestLoadNull verifies a JSON null (user without data) decodes to nil.
func TestLoadNull(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/health/dataset": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, nil)
		},
	})
	defer ts.Close()

	ds, err := NewHTTPClient(ts.URL).Load(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if ds != nil {
		t.Errorf("dataset = %+v, want nil", ds)
	}
}

// TestSummary verifies the summary is decoded, including embedded counts.
func TestSummary(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/health/summary": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, models.DatasetSummary{
				Counts:      models.Counts{Steps: 4, HeartRates: 2},
				UploadID:    "up-1",
				LastUpdated: "2024-01-02T00:00:00Z",
			})
		},
	})
	defer ts.Close()

	s, err := NewHTTPClient(ts.URL).Summary(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("summary is nil")
	}
	if s.Steps != 4 || s.HeartRates != 2 || s.UploadID != "up-1" {
		t.Errorf("summary = %+v", s)
	}
}

// TestSummaryNotFound verifies a 404 is reported as no data, not an error.
func TestSummaryNotFound(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/health/summary": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})
	defer ts.Close()

	s, err := NewHTTPClient(ts.URL).Summary(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("summary = %+v, want nil", s)
	}
}

// TestHTTPClientServerError verifies that non-200 responses are returned
// as errors.
func TestHTTPClientServerError(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/health/dataset": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL).Load(context.Background(), "u1"); err == nil {
		t.Error("expected error for 500 response")
	}
}
