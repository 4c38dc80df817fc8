package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/claude/healthexport/internal/ingest/export"
)

// Stats tracks upload progress.
type Stats struct {
	FilesTotal    int
	FilesUploaded int
	FilesSkipped  int
	FilesErrored  int

	RecordsSent int
	BytesSent   int64
}

// Uploader walks a directory of export files and sends each new or changed
// one to the server.
type Uploader struct {
	client *Client
	state  *StateDB
	userID string
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, userID string, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		userID: userID,
		dryRun: dryRun,
		log:    log,
	}
}

// Run uploads the exports found at root in path order. Every upload
// supersedes the previous one on the server, so the last file sent becomes
// the user's current dataset.
//
// A file the server rejects (4xx) is counted and skipped. Any other failure
// stops the run; files already sent stay recorded in the state database.
func (u *Uploader) Run(ctx context.Context, root string) (*Stats, error) {
	files, err := export.FindExports(root)
	if err != nil {
		return &u.stats, fmt.Errorf("finding exports: %w", err)
	}

	base := root
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		base = filepath.Dir(root)
	}

	for _, f := range files {
		u.stats.FilesTotal++
		if err := u.uploadOne(ctx, base, f); err != nil {
			return &u.stats, err
		}
	}
	return &u.stats, nil
}

func (u *Uploader) uploadOne(ctx context.Context, base, f string) error {
	relPath, err := filepath.Rel(base, f)
	if err != nil {
		relPath = f
	}
	info, err := os.Stat(f)
	if err != nil {
		u.log.Warn("stat failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return nil
	}
	hash, err := HashFile(f)
	if err != nil {
		u.log.Warn("hash failed", "file", f, "error", err)
		u.stats.FilesErrored++
		return nil
	}

	uploaded, err := u.state.IsUploaded(ctx, u.userID, relPath, info.Size(), hash)
	if err != nil {
		return fmt.Errorf("checking state for %s: %w", relPath, err)
	}
	if uploaded {
		u.stats.FilesSkipped++
		return nil
	}

	if u.dryRun {
		u.log.Info("dry-run: would upload", "file", relPath, "size", humanize.Bytes(uint64(info.Size())))
		return nil
	}

	prev, err := u.state.LastUploadID(ctx, u.userID, relPath)
	if err != nil {
		return fmt.Errorf("checking state for %s: %w", relPath, err)
	}

	res, err := u.client.UploadFile(ctx, f, u.userID)
	var serr *ServerError
	if errors.As(err, &serr) && !serr.Retryable() {
		u.log.Warn("server rejected export", "file", relPath, "status", serr.Status, "error", serr.Message, "details", serr.Details)
		u.stats.FilesErrored++
		return nil
	}
	if err != nil {
		return fmt.Errorf("sending %s: %w", relPath, err)
	}

	if err := u.state.MarkUploaded(ctx, u.userID, relPath, info.Size(), hash, res.UploadID); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}
	u.stats.FilesUploaded++
	u.stats.RecordsSent += res.Counts.Total()
	u.stats.BytesSent += info.Size()

	u.log.Info("uploaded export",
		"file", relPath,
		"upload_id", res.UploadID,
		"previous_upload_id", prev,
		"records", res.Counts.Total(),
		"documents", res.InsertedCount,
		"size", humanize.Bytes(uint64(info.Size())),
	)
	return nil
}
