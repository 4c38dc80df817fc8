package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/healthexport/internal/cache"
	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/observability"
	"github.com/claude/healthexport/internal/storage"
)

// DefaultCacheTTL is how long a reconstructed dataset stays cached.
const DefaultCacheTTL = 10 * time.Minute

// Reader is the read path of the persistence adapter.
type Reader struct {
	store storage.Store
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

// NewReader creates a Reader. c may be nil.
func NewReader(store storage.Store, c cache.Cache, ttl time.Duration, log *slog.Logger) *Reader {
	if c == nil {
		c = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Reader{store: store, cache: c, ttl: ttl, log: log}
}

// Load returns the user's most recent dataset, reassembled from its chunks,
// or nil if the user has none.
//
// The cache key carries the upload id of the newest dataset document, so a
// read racing a new upload can only ever cache under the superseded key.
func (r *Reader) Load(ctx context.Context, userID string) (*models.Dataset, error) {
	head, err := r.head(ctx, userID)
	if err != nil {
		return nil, err
	}
	if head == nil {
		observability.RecordLoad("none")
		return nil, nil
	}

	key := cache.DatasetKey(userID, headVersion(head))
	b, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var ds models.Dataset
		if err := json.Unmarshal(b, &ds); err == nil {
			observability.RecordLoad("cache")
			return &ds, nil
		}
		r.log.Warn("discarding undecodable cached dataset", "user_id", userID)
	case !errors.Is(err, cache.ErrMiss):
		r.log.Warn("reading dataset cache", "user_id", userID, "error", err)
	}

	ds, err := r.assemble(ctx, userID, head)
	if err != nil {
		return nil, err
	}
	observability.RecordLoad("store")

	if b, err := json.Marshal(ds); err == nil {
		if err := r.cache.Set(ctx, key, b, r.ttl); err != nil {
			r.log.Warn("caching dataset", "user_id", userID, "error", err)
		}
	}
	return ds, nil
}

// Summary returns the counts of the user's most recent dataset without
// reassembling chunks, or nil if there is none.
func (r *Reader) Summary(ctx context.Context, userID string) (*models.DatasetSummary, error) {
	head, err := r.head(ctx, userID)
	if err != nil || head == nil {
		return nil, err
	}
	if full, ok := decodeFullDataset(head.Value); ok {
		return &models.DatasetSummary{
			Counts:        full.Counts(),
			VitalsSummary: full.Vitals,
			LastUpdated:   head.Date.UTC().Format(time.RFC3339),
		}, nil
	}
	var summary models.DatasetSummary
	if err := json.Unmarshal(head.Value, &summary); err != nil {
		return nil, fmt.Errorf("decoding dataset summary: %w", err)
	}
	return &summary, nil
}

// Invalidate drops the cached copy of userID's current dataset. A new upload
// needs no invalidation; this covers documents added outside an upload.
func (r *Reader) Invalidate(ctx context.Context, userID string) error {
	head, err := r.head(ctx, userID)
	if err != nil || head == nil {
		return err
	}
	return r.cache.Delete(ctx, cache.DatasetKey(userID, headVersion(head)))
}

// headVersion identifies the upload a dataset document belongs to, falling
// back to the document id for documents written without one.
func headVersion(head *models.Document) string {
	var meta struct {
		UploadID string `json:"uploadId"`
	}
	if err := json.Unmarshal(head.Value, &meta); err == nil && meta.UploadID != "" {
		return meta.UploadID
	}
	if head.UploadID != "" {
		return head.UploadID
	}
	return head.ID
}

func (r *Reader) head(ctx context.Context, userID string) (*models.Document, error) {
	head, err := r.store.FindOneSorted(ctx, storage.Filter{UserID: userID, Metric: models.MetricDataset}, storage.NewestFirst)
	if err != nil {
		return nil, fmt.Errorf("finding dataset document: %w", err)
	}
	return head, nil
}

func (r *Reader) assemble(ctx context.Context, userID string, head *models.Document) (*models.Dataset, error) {
	// A dataset document holding concrete arrays was written whole.
	if full, ok := decodeFullDataset(head.Value); ok {
		return full, nil
	}

	var summary models.DatasetSummary
	if err := json.Unmarshal(head.Value, &summary); err != nil {
		return nil, fmt.Errorf("decoding dataset summary: %w", err)
	}
	uploadID := summary.UploadID
	if uploadID == "" {
		uploadID = head.UploadID
	}

	// Without an upload id every chunk of the user is used.
	docs, err := r.store.Find(ctx, storage.Filter{UserID: userID, UploadID: uploadID}, storage.OldestFirst)
	if err != nil {
		return nil, fmt.Errorf("finding chunk documents: %w", err)
	}
	byMetric := map[string][]models.Document{}
	for _, d := range docs {
		byMetric[d.Metric] = append(byMetric[d.Metric], d)
	}

	ds := models.NewDataset()
	ds.LastUpdated = summary.LastUpdated
	for _, metric := range models.ArrayMetrics {
		chunks := byMetric[metric]
		sortChunks(chunks)
		for _, gap := range findGaps(chunks) {
			r.log.Warn("incomplete chunk set", "user_id", userID, "metric", metric,
				"upload_id", gap.uploadID, "have", gap.have, "want", gap.want)
		}
		for _, c := range chunks {
			if err := appendChunk(ds, metric, c.Value); err != nil {
				r.log.Warn("skipping undecodable chunk", "user_id", userID, "metric", metric, "id", c.ID, "error", err)
			}
		}
	}

	if vitals := byMetric[models.MetricVitals]; len(vitals) > 0 {
		latest := vitals[len(vitals)-1]
		if err := json.Unmarshal(latest.Value, &ds.Vitals); err != nil {
			r.log.Warn("skipping undecodable vitals", "user_id", userID, "id", latest.ID, "error", err)
		}
	} else if len(summary.VitalsSummary) > 0 {
		ds.Vitals = summary.VitalsSummary
	}
	if ds.Vitals == nil {
		ds.Vitals = models.Vitals{}
	}
	return ds, nil
}

var concreteKeys = []string{models.MetricHeartRates, models.MetricEnergy, models.MetricSteps}

// decodeFullDataset returns the dataset held by raw when at least one of its
// heartRates, energyData or steps members is an array.
func decodeFullDataset(raw json.RawMessage) (*models.Dataset, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	concrete := false
	for _, k := range concreteKeys {
		if v := bytes.TrimSpace(fields[k]); len(v) > 0 && v[0] == '[' {
			concrete = true
			break
		}
	}
	if !concrete {
		return nil, false
	}
	ds := models.NewDataset()
	if err := json.Unmarshal(raw, ds); err != nil {
		return nil, false
	}
	return ds, true
}

func appendChunk(ds *models.Dataset, metric string, raw json.RawMessage) error {
	switch metric {
	case models.MetricHeartRates:
		return appendJSON(&ds.HeartRates, raw)
	case models.MetricEnergy:
		return appendJSON(&ds.EnergyData, raw)
	case models.MetricWorkouts:
		return appendJSON(&ds.Workouts, raw)
	case models.MetricSleep:
		return appendJSON(&ds.Sleep, raw)
	case models.MetricSteps:
		return appendJSON(&ds.Steps, raw)
	case models.MetricDistances:
		return appendJSON(&ds.Distances, raw)
	}
	return fmt.Errorf("unknown metric %q", metric)
}

func appendJSON[T any](dst *[]T, raw json.RawMessage) error {
	var part []T
	if err := json.Unmarshal(raw, &part); err != nil {
		return err
	}
	*dst = append(*dst, part...)
	return nil
}
