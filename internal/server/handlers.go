package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claude/healthexport/internal/aggregate"
	"github.com/claude/healthexport/internal/ingest"
	"github.com/claude/healthexport/internal/ingest/export"
	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// maxFieldSize bounds non-file multipart fields.
const maxFieldSize = 1 << 10

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Expected a multipart upload", err.Error())
		return
	}

	userID := r.URL.Query().Get("userId")
	var tmpPath string
	var size int64
	defer func() {
		if tmpPath == "" {
			return
		}
		if err := os.Remove(tmpPath); err != nil {
			s.log.Warn("removing upload temp file", "path", tmpPath, "error", err)
		}
	}()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeUploadReadError(w, err)
			return
		}
		switch part.FormName() {
		case "userId":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				part.Close()
				s.writeUploadReadError(w, err)
				return
			}
			userID = strings.TrimSpace(string(b))
		case "file":
			if tmpPath != "" {
				break
			}
			tmpPath, size, err = s.saveUpload(part)
			if err != nil {
				part.Close()
				s.writeUploadReadError(w, err)
				return
			}
		}
		part.Close()
	}

	if tmpPath == "" {
		writeError(w, http.StatusBadRequest, "No file uploaded", "")
		return
	}
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required", "")
		return
	}

	s.log.Info("upload received", "user_id", userID, "size", humanize.Bytes(uint64(size)))
	result, err := s.provider.IngestFile(r.Context(), tmpPath, userID)
	if err != nil {
		var perr *export.ParseError
		switch {
		case errors.As(err, &perr):
			s.log.Warn("upload rejected", "user_id", userID, "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Failed to parse health export",
				"details": perr.Error(),
				"excerpt": perr.Excerpt,
			})
		case errors.Is(err, ingest.ErrNoRecords):
			writeError(w, http.StatusBadRequest, "No health records found in upload", "")
		default:
			s.log.Error("upload failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process health data", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// saveUpload copies the uploaded file to a temp file. The returned path is
// set whenever the file was created, even on error, so it can be removed.
func (s *Server) saveUpload(src io.Reader) (string, int64, error) {
	f, err := os.CreateTemp(s.opts.TempDir, "healthexport-upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("creating temp file: %w", err)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return f.Name(), n, err
}

func (s *Server) writeUploadReadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large",
			"limit is "+humanize.Bytes(uint64(tooLarge.Limit)))
		return
	}
	writeError(w, http.StatusBadRequest, "Failed to read upload", err.Error())
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	f := storage.Filter{UserID: userID, Metric: r.URL.Query().Get("metric")}
	docs, err := s.store.Find(r.Context(), f, storage.NewestFirst)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleLatestRecord(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	f := storage.Filter{UserID: userID, Metric: r.URL.Query().Get("metric")}
	doc, err := s.store.FindOneSorted(r.Context(), f, storage.NewestFirst)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No health data found"})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

type createRecordRequest struct {
	UserID string          `json:"userId"`
	Metric string          `json:"metric"`
	Value  json.RawMessage `json:"value"`
	Date   string          `json:"date,omitempty"`
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	value := bytes.TrimSpace(req.Value)
	if req.UserID == "" || req.Metric == "" || len(value) == 0 || bytes.Equal(value, []byte("null")) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId, metric and value are required"})
		return
	}

	now := time.Now().UTC()
	date := now
	if req.Date != "" {
		t, ok := models.ParseDate(req.Date)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date: " + req.Date})
			return
		}
		date = t
	}

	doc := models.Document{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Metric:    req.Metric,
		Value:     value,
		Date:      date,
		CreatedAt: now,
	}
	if _, err := s.store.BulkInsert(r.Context(), []models.Document{doc}); err != nil {
		if errors.Is(err, storage.ErrDocumentTooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if err := s.reader.Invalidate(r.Context(), req.UserID); err != nil {
		s.log.Warn("invalidating dataset cache", "user_id", req.UserID, "error", err)
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ds, err := s.reader.Load(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summary, err := s.reader.Summary(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if summary == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No health data found"})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "metric parameter required"})
		return
	}
	window := aggregate.DefaultWindow
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "window must be a positive integer"})
			return
		}
		window = n
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	ds, err := s.reader.Load(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ds == nil {
		ds = models.NewDataset()
	}
	series, err := aggregate.DailySeries(ds, metric, window)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	aggregate.Restrict(series, from, to, window)
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	from, to, ok := requireRange(w, r)
	if !ok {
		return
	}

	ds, err := s.reader.Load(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ds == nil {
		ds = models.NewDataset()
	}
	writeJSON(w, http.StatusOK, aggregate.StatsInRange(ds, from, to))
}

// requireRange reads the optional start and end query parameters as
// inclusive days.
func requireRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from, to, err := aggregate.DayRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format: " + err.Error()})
		return "", "", false
	}
	return from, to, true
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId parameter required"})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the {error, details} body used by the upload endpoint.
func writeError(w http.ResponseWriter, status int, msg, details string) {
	body := map[string]string{"error": msg}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}
