package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/healthexport/internal/ingest"
	"github.com/claude/healthexport/internal/ingest/export"
	"github.com/claude/healthexport/internal/models"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	RecordsInserted int
	DocumentsStored int
	Skipped         int
	Unrecognized    int
	models.Counts

	// UploadIDs lists the upload each processed file became, in file order.
	UploadIDs []string
}

// Importer loads local export files into the store for one user.
type Importer struct {
	provider *export.Provider
	log      *slog.Logger
	dryRun   bool
	stats    Stats
}

// New creates a new Importer. In dry-run mode files are parsed and counted
// and provider may be nil.
func New(provider *export.Provider, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{provider: provider, log: log, dryRun: dryRun}
}

// Import processes every export file under path for userID. Each file becomes
// its own upload, so with several files the last one processed is the user's
// current dataset. A file that fails to parse is counted and skipped; a
// storage failure stops the import.
func (imp *Importer) Import(ctx context.Context, path, userID string) (*Stats, error) {
	files, err := export.FindExports(path)
	if err != nil {
		return &imp.stats, fmt.Errorf("finding exports: %w", err)
	}
	if len(files) == 0 {
		return &imp.stats, fmt.Errorf("no export files under %s", path)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if imp.dryRun {
			imp.parseOnly(f)
			continue
		}

		res, err := imp.provider.IngestFile(ctx, f, userID)
		var perr *export.ParseError
		switch {
		case errors.As(err, &perr):
			imp.log.Warn("parse failed", "file", f, "error", err, "excerpt", perr.Excerpt)
			imp.stats.FilesErrored++
			continue
		case errors.Is(err, ingest.ErrNoRecords):
			imp.log.Info("no records", "file", f)
			imp.stats.FilesSkipped++
			continue
		case err != nil:
			return &imp.stats, fmt.Errorf("importing %s: %w", f, err)
		}

		imp.stats.FilesProcessed++
		imp.stats.RecordsInserted += res.Counts.Total()
		imp.stats.DocumentsStored += res.InsertedCount
		imp.add(res.Counts, res.Skipped, res.Unrecognized)
		imp.stats.UploadIDs = append(imp.stats.UploadIDs, res.UploadID)
		imp.log.Info("imported export", "file", f, "upload_id", res.UploadID, "records", res.Counts.Total())
	}

	return &imp.stats, nil
}

func (imp *Importer) parseOnly(f string) {
	rc, err := export.OpenExport(f)
	if err != nil {
		imp.log.Warn("open failed", "file", f, "error", err)
		imp.stats.FilesErrored++
		return
	}
	defer rc.Close()

	parser := export.NewParser(imp.log)
	ds, err := parser.Parse(rc)
	if err != nil {
		imp.log.Warn("parse failed", "file", f, "error", err)
		imp.stats.FilesErrored++
		return
	}
	counts := ds.Counts()
	if counts.Total() == 0 {
		imp.stats.FilesSkipped++
		return
	}

	stats := parser.Stats()
	imp.stats.FilesProcessed++
	imp.stats.RecordsInserted += counts.Total()
	imp.add(counts, stats.Skipped, stats.UnrecognizedTotal())
	imp.log.Info("dry-run: would import", "file", f, "records", counts.Total())
}

func (imp *Importer) add(c models.Counts, skipped, unrecognized int) {
	imp.stats.HeartRates += c.HeartRates
	imp.stats.EnergyData += c.EnergyData
	imp.stats.Workouts += c.Workouts
	imp.stats.Sleep += c.Sleep
	imp.stats.Steps += c.Steps
	imp.stats.Distances += c.Distances
	imp.stats.Vitals += c.Vitals
	imp.stats.Skipped += skipped
	imp.stats.Unrecognized += unrecognized
}
