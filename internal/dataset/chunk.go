// Package dataset persists parsed datasets as size-bounded chunk documents
// and reassembles them on read.
package dataset

import (
	"encoding/json"
	"sort"

	"github.com/claude/healthexport/internal/models"
)

// Split divides records into consecutive chunks of at most size elements.
// An empty input yields no chunks.
func Split[T any](records []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// Concat joins chunks back into one slice.
func Concat[T any](chunks [][]T) []T {
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]T, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// encodeChunks splits records by count, then halves any chunk whose encoding
// is still larger than limit. Chunk order follows record order.
func encodeChunks[T any](records []T, size, limit int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for _, chunk := range Split(records, size) {
		parts, err := encodeBounded(chunk, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

func encodeBounded[T any](chunk []T, limit int) ([]json.RawMessage, error) {
	b, err := json.Marshal(chunk)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || len(b) <= limit || len(chunk) <= 1 {
		return []json.RawMessage{b}, nil
	}
	mid := len(chunk) / 2
	left, err := encodeBounded(chunk[:mid], limit)
	if err != nil {
		return nil, err
	}
	right, err := encodeBounded(chunk[mid:], limit)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// sortChunks orders chunk documents by date, then chunk index, then
// creation time.
func sortChunks(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if ai, bi := chunkIndex(a), chunkIndex(b); ai != bi {
			return ai < bi
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func chunkIndex(d models.Document) int {
	if d.Meta == nil {
		return 0
	}
	return d.Meta.ChunkIndex
}

// chunkGap describes an incomplete chunk set.
type chunkGap struct {
	uploadID string
	have     int
	want     int
}

// findGaps checks that every (upload, date) group of sorted chunk documents
// holds indexes 0..chunkCount-1.
func findGaps(docs []models.Document) []chunkGap {
	type key struct {
		upload string
		date   int64
	}
	groups := map[key][]models.Document{}
	var order []key
	for _, d := range docs {
		k := key{d.UploadID, d.Date.UnixNano()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
	}

	var gaps []chunkGap
	for _, k := range order {
		group := groups[k]
		want := 1
		if group[0].Meta != nil {
			want = group[0].Meta.ChunkCount
		}
		contiguous := len(group) == want
		for i, d := range group {
			if chunkIndex(d) != i {
				contiguous = false
			}
		}
		if !contiguous {
			gaps = append(gaps, chunkGap{uploadID: k.upload, have: len(group), want: want})
		}
	}
	return gaps
}
