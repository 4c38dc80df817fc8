package ingest

import (
	"errors"

	"github.com/claude/healthexport/internal/models"
)

// ErrNoRecords is returned when an export parsed cleanly but contained no
// record of any recognized kind. Nothing is written in that case.
var ErrNoRecords = errors.New("no health records found in upload")

// Result holds the outcome of an ingest operation.
type Result struct {
	Success       bool   `json:"success"`
	InsertedCount int    `json:"insertedCount"`
	UploadID      string `json:"uploadId,omitempty"`
	models.Counts

	Skipped      int `json:"skipped,omitempty"`
	Unrecognized int `json:"unrecognized,omitempty"`
}
