package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/healthexport/internal/models"
	_ "modernc.org/sqlite"
)

// sqliteTimeFormat is fixed-width so that text ordering matches time ordering.
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLite is a single-file Store for local use and tests.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS health_records (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		metric      TEXT NOT NULL,
		value       TEXT NOT NULL,
		chunk_index INTEGER,
		chunk_count INTEGER,
		upload_id   TEXT NOT NULL DEFAULT '',
		date        TEXT NOT NULL,
		created_at  TEXT NOT NULL
	)`)
	if err == nil {
		_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_health_records_user_date ON health_records (user_id, date, created_at)`)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating health_records table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) BulkInsert(ctx context.Context, docs []models.Document) (int, error) {
	inserted := 0
	var failures []DocumentFailure
	for i := range docs {
		d := &docs[i]
		if err := checkSize(d, MaxDocumentSize); err != nil {
			failures = append(failures, DocumentFailure{Index: i, ID: d.ID, Err: err})
			continue
		}
		var idx, cnt sql.NullInt64
		if d.Meta != nil {
			idx = sql.NullInt64{Int64: int64(d.Meta.ChunkIndex), Valid: true}
			cnt = sql.NullInt64{Int64: int64(d.Meta.ChunkCount), Valid: true}
		}
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO health_records (id, user_id, metric, value, chunk_index, chunk_count, upload_id, date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.UserID, d.Metric, string(d.Value), idx, cnt, d.UploadID,
			formatSQLiteTime(d.Date), formatSQLiteTime(d.CreatedAt))
		if err != nil {
			if ctx.Err() != nil {
				return inserted, fmt.Errorf("inserting health records: %w", ctx.Err())
			}
			failures = append(failures, DocumentFailure{Index: i, ID: d.ID, Err: err})
			continue
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return bulkResult(inserted, failures)
}

func (s *SQLite) Find(ctx context.Context, f Filter, order SortOrder) ([]models.Document, error) {
	query, args := sqliteSelect(f, order, 0)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying health records: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning health record: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLite) FindOneSorted(ctx context.Context, f Filter, order SortOrder) (*models.Document, error) {
	query, args := sqliteSelect(f, order, 1)
	d, err := scanSQLiteRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying health record: %w", err)
	}
	return &d, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func sqliteSelect(f Filter, order SortOrder, limit int) (string, []any) {
	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.Metric != "" {
		where = append(where, "metric = ?")
		args = append(args, f.Metric)
	}
	if f.UploadID != "" {
		where = append(where, "upload_id = ?")
		args = append(args, f.UploadID)
	}
	dir := "DESC"
	if order == OldestFirst {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT id, user_id, metric, value, chunk_index, chunk_count, upload_id, date, created_at
		FROM health_records WHERE %s ORDER BY date %s, created_at %s, rowid %s`,
		strings.Join(where, " AND "), dir, dir, flip(dir))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, args
}

// flip keeps insertion order among documents with identical timestamps.
func flip(dir string) string {
	if dir == "DESC" {
		return "ASC"
	}
	return "DESC"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row rowScanner) (models.Document, error) {
	var (
		d               models.Document
		value           string
		idx, cnt        sql.NullInt64
		date, createdAt string
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Metric, &value, &idx, &cnt, &d.UploadID, &date, &createdAt); err != nil {
		return d, err
	}
	d.Value = []byte(value)
	if idx.Valid && cnt.Valid {
		d.Meta = &models.ChunkMeta{ChunkIndex: int(idx.Int64), ChunkCount: int(cnt.Int64)}
	}
	var err error
	if d.Date, err = time.Parse(sqliteTimeFormat, date); err != nil {
		return d, fmt.Errorf("parsing date %q: %w", date, err)
	}
	if d.CreatedAt, err = time.Parse(sqliteTimeFormat, createdAt); err != nil {
		return d, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	return d, nil
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}
