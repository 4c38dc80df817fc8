package models

import (
	"encoding/json"
	"time"
)

// Document is the unit of persistence. Value holds a JSON array of records for
// chunk documents, a Vitals object for the vitals document, or a
// DatasetSummary (or a full Dataset) for the dataset document.
type Document struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Metric    string          `json:"metric"`
	Value     json.RawMessage `json:"value"`
	Meta      *ChunkMeta      `json:"meta,omitempty"`
	UploadID  string          `json:"uploadId,omitempty"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ChunkMeta positions a chunk among its siblings. ChunkIndex is 0-based and
// ChunkCount is the same for every chunk of one (user, metric, upload).
type ChunkMeta struct {
	ChunkIndex int `json:"chunkIndex"`
	ChunkCount int `json:"chunkCount"`
}

// Size returns the encoded size of the document in bytes.
func (d *Document) Size() (int, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// DatasetSummary is the lightweight marker stored next to the chunks of an
// upload. It is readable without reassembling any chunk.
type DatasetSummary struct {
	Counts
	VitalsSummary Vitals `json:"vitalsSummary,omitempty"`
	UploadID      string `json:"uploadId,omitempty"`
	LastUpdated   string `json:"lastUpdated"`
}

// DailyAggregate is a per-day value derived on read. It is never persisted.
type DailyAggregate struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}
