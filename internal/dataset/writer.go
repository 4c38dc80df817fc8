package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/healthexport/internal/events"
	"github.com/claude/healthexport/internal/ingest"
	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/observability"
	"github.com/claude/healthexport/internal/storage"
	"github.com/google/uuid"
)

const (
	// DefaultChunkSize is the number of records per chunk document.
	DefaultChunkSize = 5000

	// DefaultMaxDocumentSize keeps chunk documents under the store ceiling
	// with room for the envelope fields.
	DefaultMaxDocumentSize = 15 << 20
)

// WriterConfig tunes chunking. Zero values select the defaults.
type WriterConfig struct {
	ChunkSize       int
	MaxDocumentSize int
}

// WriteResult reports what one Write stored.
type WriteResult struct {
	UploadID  string
	Inserted  int
	Documents int
	Counts    models.Counts
}

// Writer is the write path of the persistence adapter.
type Writer struct {
	store     storage.Store
	publisher events.Publisher
	log       *slog.Logger

	chunkSize       int
	maxDocumentSize int
	now             func() time.Time
}

// NewWriter creates a Writer. pub may be nil.
func NewWriter(store storage.Store, pub events.Publisher, cfg WriterConfig, log *slog.Logger) *Writer {
	if pub == nil {
		pub = events.Noop{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = DefaultMaxDocumentSize
	}
	return &Writer{
		store:           store,
		publisher:       pub,
		log:             log,
		chunkSize:       cfg.ChunkSize,
		maxDocumentSize: cfg.MaxDocumentSize,
		now:             time.Now,
	}
}

// Write stores ds for userID as one upload. An empty dataset returns
// ingest.ErrNoRecords without writing. Individual document failures are
// logged; Write fails only if no document could be stored.
func (w *Writer) Write(ctx context.Context, userID string, ds *models.Dataset) (*WriteResult, error) {
	if ds == nil || ds.Empty() {
		return nil, ingest.ErrNoRecords
	}

	uploadID := uuid.NewString()
	now := w.now().UTC()
	docs, err := w.buildDocuments(userID, uploadID, now, ds)
	if err != nil {
		return nil, err
	}

	w.log.Info("inserting documents", "user_id", userID, "upload_id", uploadID, "documents", len(docs))
	inserted, err := w.store.BulkInsert(ctx, docs)
	var bulk *storage.BulkError
	switch {
	case errors.As(err, &bulk):
		observability.RecordDocuments(inserted, len(bulk.Failures))
		if inserted == 0 {
			return nil, fmt.Errorf("storing dataset: %w", err)
		}
		w.log.Warn("partial bulk insert", "user_id", userID, "upload_id", uploadID,
			"inserted", inserted, "failed", len(bulk.Failures), "error", err)
	case err != nil:
		return nil, fmt.Errorf("storing dataset: %w", err)
	default:
		observability.RecordDocuments(inserted, 0)
	}

	counts := ds.Counts()
	if err := w.writeSummary(ctx, userID, uploadID, now, ds, counts); err != nil {
		w.log.Warn("failed to save dataset summary", "user_id", userID, "upload_id", uploadID, "error", err)
	}

	ev := events.DatasetIngested{
		Type:       events.TypeDatasetIngested,
		UserID:     userID,
		UploadID:   uploadID,
		Inserted:   inserted,
		Counts:     counts,
		OccurredAt: now,
	}
	if err := w.publisher.Publish(ctx, ev); err != nil {
		w.log.Warn("publishing ingest event", "user_id", userID, "upload_id", uploadID, "error", err)
	}

	return &WriteResult{UploadID: uploadID, Inserted: inserted, Documents: len(docs), Counts: counts}, nil
}

// buildDocuments produces the chunk documents of every array metric, in
// write order, followed by the vitals document.
func (w *Writer) buildDocuments(userID, uploadID string, now time.Time, ds *models.Dataset) ([]models.Document, error) {
	var docs []models.Document
	for _, metric := range models.ArrayMetrics {
		parts, err := w.encodeMetric(metric, ds)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", metric, err)
		}
		for i, part := range parts {
			docs = append(docs, models.Document{
				ID:        uuid.NewString(),
				UserID:    userID,
				Metric:    metric,
				Value:     part,
				Meta:      &models.ChunkMeta{ChunkIndex: i, ChunkCount: len(parts)},
				UploadID:  uploadID,
				Date:      now,
				CreatedAt: now,
			})
		}
	}

	if len(ds.Vitals) > 0 {
		value, err := json.Marshal(ds.Vitals)
		if err != nil {
			return nil, fmt.Errorf("encoding vitals: %w", err)
		}
		docs = append(docs, models.Document{
			ID:        uuid.NewString(),
			UserID:    userID,
			Metric:    models.MetricVitals,
			Value:     value,
			UploadID:  uploadID,
			Date:      now,
			CreatedAt: now,
		})
	}
	return docs, nil
}

func (w *Writer) encodeMetric(metric string, ds *models.Dataset) ([]json.RawMessage, error) {
	switch metric {
	case models.MetricHeartRates:
		return encodeChunks(ds.HeartRates, w.chunkSize, w.maxDocumentSize)
	case models.MetricEnergy:
		return encodeChunks(ds.EnergyData, w.chunkSize, w.maxDocumentSize)
	case models.MetricWorkouts:
		return encodeChunks(ds.Workouts, w.chunkSize, w.maxDocumentSize)
	case models.MetricSleep:
		return encodeChunks(ds.Sleep, w.chunkSize, w.maxDocumentSize)
	case models.MetricSteps:
		return encodeChunks(ds.Steps, w.chunkSize, w.maxDocumentSize)
	case models.MetricDistances:
		return encodeChunks(ds.Distances, w.chunkSize, w.maxDocumentSize)
	}
	return nil, fmt.Errorf("unknown metric %q", metric)
}

func (w *Writer) writeSummary(ctx context.Context, userID, uploadID string, now time.Time, ds *models.Dataset, counts models.Counts) error {
	summary := models.DatasetSummary{
		Counts:        counts,
		VitalsSummary: ds.Vitals,
		UploadID:      uploadID,
		LastUpdated:   now.Format(time.RFC3339),
	}
	value, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	_, err = w.store.BulkInsert(ctx, []models.Document{{
		ID:        uuid.NewString(),
		UserID:    userID,
		Metric:    models.MetricDataset,
		Value:     value,
		UploadID:  uploadID,
		Date:      now,
		CreatedAt: now,
	}})
	return err
}
