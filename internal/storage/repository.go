package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dogedash/internal/core"
	applog "dogedash/internal/log"
	"dogedash/internal/source"

	_ "modernc.org/sqlite"
)

// ErrNotArchived is returned when a kind has never been saved.
var ErrNotArchived = errors.New("dataset not archived")

// Archive describes one saved dataset.
type Archive struct {
	Kind      core.Kind
	Records   int
	FetchedAt time.Time
}

// SQLiteRepository archives fetched datasets, one JSON body per record.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ source.Fetcher  = (*SQLiteRepository)(nil)
	_ source.Archiver = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Save implements source.Archiver. It replaces any earlier copy of kind.
func (r *SQLiteRepository) Save(ctx context.Context, kind core.Kind, records []core.Record) error {
	if !kind.Valid() {
		return core.ErrUnknownKind
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE kind = ?`, kind.String()); err != nil {
		return fmt.Errorf("clear %s records: %w", kind, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets (kind, record_count, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(kind) DO UPDATE SET record_count = excluded.record_count, fetched_at = excluded.fetched_at`,
		kind.String(), len(records), r.now().UTC()); err != nil {
		return fmt.Errorf("upsert %s dataset: %w", kind, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (kind, seq, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode %s record %d: %w", kind, i, err)
		}
		if _, err := stmt.ExecContext(ctx, kind.String(), i, string(body)); err != nil {
			return fmt.Errorf("insert %s record %d: %w", kind, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Dataset archived to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldKind, kind.String(),
		applog.FieldRecords, len(records))
	return nil
}

// Fetch implements source.Fetcher from the archive.
func (r *SQLiteRepository) Fetch(ctx context.Context, kind core.Kind) ([]core.Record, error) {
	if !kind.Valid() {
		return nil, core.ErrUnknownKind
	}
	if _, err := r.archive(ctx, kind); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrFetchFailure, err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT body FROM records WHERE kind = ? ORDER BY seq`, kind.String())
	if err != nil {
		return nil, fmt.Errorf("%w: query %s records: %v", source.ErrFetchFailure, kind, err)
	}
	defer rows.Close()

	records := []core.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", source.ErrFetchFailure, err)
		}
		var rec core.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("%w: %s record: %v", source.ErrMalformedData, kind, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrFetchFailure, err)
	}
	return records, nil
}

// List returns every archived dataset in canonical kind order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Archive, error) {
	var out []Archive
	for _, k := range core.Kinds {
		a, err := r.archive(ctx, k)
		if errors.Is(err, ErrNotArchived) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *SQLiteRepository) archive(ctx context.Context, kind core.Kind) (Archive, error) {
	a := Archive{Kind: kind}
	err := r.db.QueryRowContext(ctx,
		`SELECT record_count, fetched_at FROM datasets WHERE kind = ?`, kind.String()).
		Scan(&a.Records, &a.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("%s: %w", kind, ErrNotArchived)
	}
	if err != nil {
		return a, fmt.Errorf("read %s dataset: %w", kind, err)
	}
	return a, nil
}

// SaveStatistics replaces the stored rows of one statistics dimension.
func (r *SQLiteRepository) SaveStatistics(ctx context.Context, dimension string, rows []core.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM statistics WHERE dimension = ?`, dimension); err != nil {
		return fmt.Errorf("clear %s statistics: %w", dimension, err)
	}
	now := r.now().UTC()
	for i, row := range rows {
		body, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode %s row %d: %w", dimension, i, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO statistics (dimension, seq, body, fetched_at) VALUES (?, ?, ?, ?)`,
			dimension, i, string(body), now); err != nil {
			return fmt.Errorf("insert %s row %d: %w", dimension, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.InfoContext(ctx, "Statistics archived to SQLite",
		applog.FieldComponent, applog.ComponentStorage,
		"dimension", dimension,
		applog.FieldRecords, len(rows))
	return nil
}

// Statistics returns the stored rows of one dimension in saved order.
func (r *SQLiteRepository) Statistics(ctx context.Context, dimension string) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT body FROM statistics WHERE dimension = ? ORDER BY seq`, dimension)
	if err != nil {
		return nil, fmt.Errorf("query %s statistics: %w", dimension, err)
	}
	defer rows.Close()

	var out []core.Record
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var rec core.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", dimension, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
