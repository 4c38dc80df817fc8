package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/healthexport/internal/dataset"
	"github.com/claude/healthexport/internal/ingest"
	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/observability"
)

// Provider processes health export XML uploads.
type Provider struct {
	writer *dataset.Writer
	log    *slog.Logger
}

// NewProvider creates a new export ingest provider.
func NewProvider(w *dataset.Writer, log *slog.Logger) *Provider {
	return &Provider{writer: w, log: log}
}

// Ingest parses an export and stores it as a new upload for userID. A parse
// failure or an export without records stores nothing.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID string) (*ingest.Result, error) {
	parser := NewParser(p.log)
	start := time.Now()
	ds, err := parser.Parse(r)
	observability.ObserveParse(time.Since(start))
	stats := parser.Stats()
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			observability.RecordUpload(observability.OutcomeParseError)
		} else {
			observability.RecordUpload(observability.OutcomeError)
		}
		return nil, err
	}

	counts := ds.Counts()
	p.log.Info("export parsed",
		"user_id", userID,
		"elements", stats.Elements,
		"records", counts.Total(),
		"skipped", stats.Skipped,
		"unrecognized", stats.UnrecognizedTotal(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	recordParsed(counts)

	res, err := p.writer.Write(ctx, userID, ds)
	if err != nil {
		if errors.Is(err, ingest.ErrNoRecords) {
			observability.RecordUpload(observability.OutcomeNoRecords)
		} else {
			observability.RecordUpload(observability.OutcomeError)
		}
		return nil, err
	}
	observability.RecordUpload(observability.OutcomeSuccess)

	return &ingest.Result{
		Success:       true,
		InsertedCount: res.Inserted,
		UploadID:      res.UploadID,
		Counts:        res.Counts,
		Skipped:       stats.Skipped,
		Unrecognized:  stats.UnrecognizedTotal(),
	}, nil
}

// IngestFile ingests an export.xml or an export zip archive from disk.
func (p *Provider) IngestFile(ctx context.Context, path, userID string) (*ingest.Result, error) {
	rc, err := OpenExport(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			p.log.Warn("closing export", "path", path, "error", err)
		}
	}()
	return p.Ingest(ctx, rc, userID)
}

func recordParsed(c models.Counts) {
	observability.RecordParsed(models.MetricHeartRates, c.HeartRates)
	observability.RecordParsed(models.MetricEnergy, c.EnergyData)
	observability.RecordParsed(models.MetricWorkouts, c.Workouts)
	observability.RecordParsed(models.MetricSleep, c.Sleep)
	observability.RecordParsed(models.MetricSteps, c.Steps)
	observability.RecordParsed(models.MetricDistances, c.Distances)
	observability.RecordParsed(models.MetricVitals, c.Vitals)
}
