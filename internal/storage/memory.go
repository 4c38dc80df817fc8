package storage

import (
	"context"
	"sync"

	"github.com/claude/healthexport/internal/models"
)

// Memory is an in-process Store used by tests and for dry runs.
type Memory struct {
	mu   sync.RWMutex
	docs []models.Document
	ids  map[string]bool

	// MaxDocumentSize overrides the size ceiling when positive.
	MaxDocumentSize int
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{ids: map[string]bool{}}
}

func (m *Memory) limit() int {
	if m.MaxDocumentSize > 0 {
		return m.MaxDocumentSize
	}
	return MaxDocumentSize
}

func (m *Memory) BulkInsert(ctx context.Context, docs []models.Document) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	var failures []DocumentFailure
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		d := docs[i]
		if err := checkSize(&d, m.limit()); err != nil {
			failures = append(failures, DocumentFailure{Index: i, ID: d.ID, Err: err})
			continue
		}
		// Like ON CONFLICT DO NOTHING: an existing id is not an error.
		if m.ids[d.ID] {
			continue
		}
		d.Value = append([]byte(nil), d.Value...)
		m.docs = append(m.docs, d)
		m.ids[d.ID] = true
		inserted++
	}
	return bulkResult(inserted, failures)
}

func (m *Memory) Find(ctx context.Context, f Filter, order SortOrder) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Document
	for i := range m.docs {
		if f.matches(&m.docs[i]) {
			out = append(out, m.docs[i])
		}
	}
	sortDocuments(out, order)
	return out, nil
}

func (m *Memory) FindOneSorted(ctx context.Context, f Filter, order SortOrder) (*models.Document, error) {
	docs, err := m.Find(ctx, f, order)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return &docs[0], nil
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Close() error { return nil }
