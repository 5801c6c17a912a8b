package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// ExportDB stores which threads were exported at which revision.
type ExportDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite manifest file.
	dbPath string
}

// Options configures ExportDB behavior.
type Options struct {
	// CreateIfNotExists creates the manifest file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default manifest options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the export manifest at dbDir/quip-export.db.
func Open(dbDir string, opts Options) (*ExportDB, error) {
	dbPath := filepath.Join(dbDir, "quip-export.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check manifest path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	edb := &ExportDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := edb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return edb, nil
}

// Close closes the manifest connection.
func (edb *ExportDB) Close() error {
	return edb.db.Close()
}

// createTables creates the manifest schema if it doesn't exist.
func (edb *ExportDB) createTables() error {
	schema := `
	-- One row per exported thread, keyed by thread ID. The revision stamp
	-- (updated_usec) decides whether a later run may skip the thread.
	CREATE TABLE IF NOT EXISTS exports (
		thread_id TEXT PRIMARY KEY,
		updated_usec INTEGER NOT NULL,
		path TEXT NOT NULL,
		format TEXT NOT NULL,
		exported_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exports_exported_at ON exports(exported_at);
	`

	_, err := edb.db.ExecContext(context.Background(), schema)
	return err
}

// ExportRecord is one manifest row.
type ExportRecord struct {
	ThreadID    string
	UpdatedUsec int64
	Path        string
	Format      string
	ExportedAt  time.Time
}

// AlreadyExported reports whether the thread was exported before at a
// revision no older than updatedUsec. A zero updatedUsec never matches,
// since the crawl could not establish a revision for the thread.
func (edb *ExportDB) AlreadyExported(ctx context.Context, threadID string, updatedUsec int64) (bool, error) {
	if updatedUsec == 0 {
		return false, nil
	}

	query := `SELECT updated_usec FROM exports WHERE thread_id = ?`

	var stored int64
	err := edb.db.QueryRowContext(ctx, query, threadID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check export record: %w", err)
	}

	return stored >= updatedUsec, nil
}

// RecordExport inserts or updates the manifest row for a thread.
func (edb *ExportDB) RecordExport(ctx context.Context, record *ExportRecord) error {
	query := `
	INSERT INTO exports (thread_id, updated_usec, path, format)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(thread_id) DO UPDATE SET
		updated_usec = excluded.updated_usec,
		path = excluded.path,
		format = excluded.format,
		exported_at = CURRENT_TIMESTAMP
	`

	_, err := edb.db.ExecContext(ctx, query,
		record.ThreadID,
		record.UpdatedUsec,
		record.Path,
		record.Format,
	)
	if err != nil {
		return fmt.Errorf("failed to record export: %w", err)
	}

	return nil
}

// GetExportRecord retrieves the manifest row for a thread, or nil.
func (edb *ExportDB) GetExportRecord(ctx context.Context, threadID string) (*ExportRecord, error) {
	query := `
	SELECT thread_id, updated_usec, path, format, exported_at
	FROM exports
	WHERE thread_id = ?
	`

	var record ExportRecord
	var exportedAt string

	err := edb.db.QueryRowContext(ctx, query, threadID).Scan(
		&record.ThreadID,
		&record.UpdatedUsec,
		&record.Path,
		&record.Format,
		&exportedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get export record: %w", err)
	}

	record.ExportedAt = parseTimestamp(exportedAt)
	return &record, nil
}

// Count returns the number of manifest rows.
func (edb *ExportDB) Count(ctx context.Context) (int, error) {
	var count int
	if err := edb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exports`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count export records: %w", err)
	}
	return count, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
