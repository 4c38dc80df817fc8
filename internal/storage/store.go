package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/claude/healthexport/internal/models"
)

// MaxDocumentSize is the per-document ceiling enforced by every store. It
// mirrors the 16MB limit of document databases.
const MaxDocumentSize = 16 << 20

// ErrDocumentTooLarge is reported for a document whose encoding exceeds the
// store's size ceiling.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

// Filter selects documents of one user. Empty Metric or UploadID match any.
type Filter struct {
	UserID   string
	Metric   string
	UploadID string
}

func (f Filter) matches(d *models.Document) bool {
	if d.UserID != f.UserID {
		return false
	}
	if f.Metric != "" && d.Metric != f.Metric {
		return false
	}
	if f.UploadID != "" && d.UploadID != f.UploadID {
		return false
	}
	return true
}

// SortOrder orders documents by date, then creation time.
type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

// Store is the document store behind the persistence adapter.
type Store interface {
	// BulkInsert writes docs without stopping at the first failure. It
	// returns how many were inserted; if any failed the error is a
	// *BulkError.
	BulkInsert(ctx context.Context, docs []models.Document) (int, error)
	// Find returns every document matching f.
	Find(ctx context.Context, f Filter, order SortOrder) ([]models.Document, error)
	// FindOneSorted returns the first document matching f in order, or nil.
	FindOneSorted(ctx context.Context, f Filter, order SortOrder) (*models.Document, error)
	Close() error
}

// DocumentFailure is one rejected document of a bulk insert.
type DocumentFailure struct {
	Index int
	ID    string
	Err   error
}

// BulkError lists the documents a bulk insert could not write. The other
// documents of the same call were committed.
type BulkError struct {
	Failures []DocumentFailure
}

func (e *BulkError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("document %d (%s): %v", f.Index, f.ID, f.Err))
	}
	return fmt.Sprintf("%d documents failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *BulkError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// checkSize rejects documents larger than limit.
func checkSize(d *models.Document, limit int) error {
	n, err := d.Size()
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if n > limit {
		return fmt.Errorf("%w: %d bytes > %d", ErrDocumentTooLarge, n, limit)
	}
	return nil
}

func bulkResult(inserted int, failures []DocumentFailure) (int, error) {
	if len(failures) > 0 {
		return inserted, &BulkError{Failures: failures}
	}
	return inserted, nil
}

func sortDocuments(docs []models.Document, order SortOrder) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if order == OldestFirst {
			a, b = b, a
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
}
