package upload

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/healthexport/internal/dataset"
	"github.com/claude/healthexport/internal/ingest/export"
	"github.com/claude/healthexport/internal/server"
	"github.com/claude/healthexport/internal/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

const goodExport = `<HealthData>
 <Record type="HKQuantityTypeIdentifierStepCount" unit="count" startDate="2024-01-01T09:00:00Z" value="1000"/>
 <Record type="HKQuantityTypeIdentifierHeartRate" unit="count/min" startDate="2024-01-01T09:00:00Z" value="61"/>
</HealthData>`

// newBackend runs the real HTTP server on a memory store.
func newBackend(t *testing.T) (*httptest.Server, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	w := dataset.NewWriter(store, nil, dataset.WriterConfig{}, discard)
	srv := server.New(store, export.NewProvider(w, discard), dataset.NewReader(store, nil, 0, discard),
		server.Options{TempDir: t.TempDir()}, discard)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, store
}

func writeExport(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestClientUploadFile(t *testing.T) {
	ts, store := newBackend(t)
	path := writeExport(t, t.TempDir(), "export.xml", goodExport)

	res, err := NewClient(ts.URL+"/").UploadFile(context.Background(), path, "user-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.UploadID)
	assert.Equal(t, 1, res.Steps)
	assert.Equal(t, 1, res.HeartRates)
	assert.NotZero(t, store.Len())
}

func TestClientRejectedUpload(t *testing.T) {
	ts, _ := newBackend(t)
	path := writeExport(t, t.TempDir(), "export.xml", `<HealthData><Record type="x">`)

	_, err := NewClient(ts.URL).UploadFile(context.Background(), path, "user-1")
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Status)
	assert.Equal(t, "Failed to parse health export", serr.Message)
	assert.False(t, serr.Retryable())
}

func TestClientRetriesServerErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, `{"error":"busy"}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"success":true,"insertedCount":2,"uploadId":"u-1","stepsCount":1}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL)
	c.http.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	path := writeExport(t, t.TempDir(), "export.xml", goodExport)

	res, err := c.UploadFile(context.Background(), path, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "u-1", res.UploadID)
}

func TestStateDB(t *testing.T) {
	ctx := context.Background()
	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	ok, err := state.IsUploaded(ctx, "user-1", "a/export.xml", 10, "h1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.MarkUploaded(ctx, "user-1", "a/export.xml", 10, "h1", "up-1"))
	ok, err = state.IsUploaded(ctx, "user-1", "a/export.xml", 10, "h1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Another user or a changed file is not covered.
	ok, err = state.IsUploaded(ctx, "user-2", "a/export.xml", 10, "h1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = state.IsUploaded(ctx, "user-1", "a/export.xml", 10, "h2")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := state.LastUploadID(ctx, "user-1", "a/export.xml")
	require.NoError(t, err)
	assert.Equal(t, "up-1", id)
	id, err = state.LastUploadID(ctx, "user-1", "missing.xml")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestUploaderRun(t *testing.T) {
	ctx := context.Background()
	ts, _ := newBackend(t)
	dir := t.TempDir()
	writeExport(t, dir, "2024-01/export.xml", goodExport)
	writeExport(t, dir, "2024-02/export.xml", `<HealthData><Record type="x">`)
	writeExport(t, dir, "2024-03/export_cda.xml", "<ClinicalDocument/>")

	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	stats, err := New(NewClient(ts.URL), state, "user-1", false, discard).Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 1, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesErrored)
	assert.Equal(t, 2, stats.RecordsSent)
	assert.Positive(t, stats.BytesSent)

	// A second run only retries the rejected file.
	stats, err = New(NewClient(ts.URL), state, "user-1", false, discard).Run(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Equal(t, 0, stats.FilesUploaded)
	assert.Equal(t, 1, stats.FilesErrored)
}

func TestUploaderDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "export.xml", goodExport)

	state, err := OpenStateDB(t.TempDir())
	require.NoError(t, err)
	defer state.Close()

	stats, err := New(nil, state, "user-1", true, discard).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesTotal)
	assert.Equal(t, 0, stats.FilesUploaded)

	ok, err := state.IsUploaded(context.Background(), "user-1", "export.xml", int64(len(goodExport)), mustHash(t, path))
	require.NoError(t, err)
	assert.False(t, ok)
}

func mustHash(t *testing.T, path string) string {
	t.Helper()
	h, err := HashFile(path)
	require.NoError(t, err)
	return h
}
