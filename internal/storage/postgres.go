package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/healthexport/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores documents in the health_records table, with the payload
// in a JSONB column.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres creates a connection pool and checks connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *Postgres) Close() error {
	db.Pool.Close()
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const insertRecordSQL = `INSERT INTO health_records (id, user_id, metric, value, chunk_index, chunk_count, upload_id, date, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// BulkInsert executes one INSERT per document outside a transaction, so a
// rejected document does not roll back its siblings.
func (db *Postgres) BulkInsert(ctx context.Context, docs []models.Document) (int, error) {
	inserted := 0
	var failures []DocumentFailure
	for i := range docs {
		d := &docs[i]
		if err := checkSize(d, MaxDocumentSize); err != nil {
			failures = append(failures, DocumentFailure{Index: i, ID: d.ID, Err: err})
			continue
		}
		var idx, cnt *int
		if d.Meta != nil {
			idx, cnt = &d.Meta.ChunkIndex, &d.Meta.ChunkCount
		}
		tag, err := db.Pool.Exec(ctx, insertRecordSQL,
			d.ID, d.UserID, d.Metric, []byte(d.Value), idx, cnt, d.UploadID, d.Date, d.CreatedAt)
		if err != nil {
			if ctx.Err() != nil {
				return inserted, fmt.Errorf("inserting health records: %w", ctx.Err())
			}
			failures = append(failures, DocumentFailure{Index: i, ID: d.ID, Err: err})
			continue
		}
		inserted += int(tag.RowsAffected())
	}
	return bulkResult(inserted, failures)
}

func (db *Postgres) Find(ctx context.Context, f Filter, order SortOrder) ([]models.Document, error) {
	query, args := selectRecords(f, order, 0)
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying health records: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning health record: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *Postgres) FindOneSorted(ctx context.Context, f Filter, order SortOrder) (*models.Document, error) {
	query, args := selectRecords(f, order, 1)
	d, err := scanRecord(db.Pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying health record: %w", err)
	}
	return &d, nil
}

func selectRecords(f Filter, order SortOrder, limit int) (string, []any) {
	where := []string{"user_id = $1"}
	args := []any{f.UserID}
	if f.Metric != "" {
		args = append(args, f.Metric)
		where = append(where, fmt.Sprintf("metric = $%d", len(args)))
	}
	if f.UploadID != "" {
		args = append(args, f.UploadID)
		where = append(where, fmt.Sprintf("upload_id = $%d", len(args)))
	}
	dir := "DESC"
	if order == OldestFirst {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT id, user_id, metric, value, chunk_index, chunk_count, upload_id, date, created_at
FROM health_records
WHERE %s
ORDER BY date %s, created_at %s`, strings.Join(where, " AND "), dir, dir)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, args
}

func scanRecord(row pgx.Row) (models.Document, error) {
	var (
		d        models.Document
		value    []byte
		idx, cnt *int
	)
	if err := row.Scan(&d.ID, &d.UserID, &d.Metric, &value, &idx, &cnt, &d.UploadID, &d.Date, &d.CreatedAt); err != nil {
		return d, err
	}
	d.Value = value
	if idx != nil && cnt != nil {
		d.Meta = &models.ChunkMeta{ChunkIndex: *idx, ChunkCount: *cnt}
	}
	return d, nil
}
