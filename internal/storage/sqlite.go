// Package storage keeps the history of daily reports and critical scans, and
// doubles as a local metrics backend, in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	_ "modernc.org/sqlite"
)

// Compile-time interface checks
var (
	_ analyzer.ReportHistory   = (*Storage)(nil)
	_ analyzer.ScanHistory     = (*Storage)(nil)
	_ analyzer.MetricsRecorder = (*Storage)(nil)
	_ analyzer.MetricsSource   = (*Storage)(nil)
)

// Storage handles database operations
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// Database configuration constants
const (
	// busyTimeoutMs is how long SQLite waits when database is locked (5 seconds)
	busyTimeoutMs = 5000
	// maxOpenConns limits concurrent connections (SQLite works best with 1)
	maxOpenConns = 1
	// maxIdleConns is the number of idle connections to keep
	maxIdleConns = 1
	// connMaxLifetime is how long a connection can be reused
	connMaxLifetime = 30 * time.Minute
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dateLayout stores report days.
const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// New creates a new storage instance
func New(dbPath string) (*Storage, error) {
	// Owner-only directory
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", dbPath, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	storage := &Storage{db: db, now: time.Now}

	if err := storage.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Schema version constants
const (
	// currentSchemaVersion is the latest schema version
	// Increment this when adding new migrations
	currentSchemaVersion = 2
)

// initSchema creates the database schema if it doesn't exist
func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	version := s.getSchemaVersion()

	if err := s.migrateSchema(version); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version (0 if not set)
func (s *Storage) getSchemaVersion() int {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	if err != nil {
		return 0
	}
	return version
}

// setSchemaVersion updates the schema version
func (s *Storage) setSchemaVersion(version int) error {
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return err
	}
	return nil
}

// migrateSchema runs migrations from currentVersion to latest
func (s *Storage) migrateSchema(currentVersion int) error {
	if currentVersion >= currentSchemaVersion {
		return nil
	}

	log.Printf("storage: migrating schema from version %d to %d", currentVersion, currentSchemaVersion)

	// Migration 0 -> 1: report and scan history
	if currentVersion < 1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}

	// Migration 1 -> 2: local metric points
	if currentVersion < 2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}

	if err := s.setSchemaVersion(currentSchemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	log.Printf("storage: schema migration completed successfully (now at version %d)", currentSchemaVersion)
	return nil
}

// migrateV1 creates the report and scan history tables
func (s *Storage) migrateV1() error {
	log.Printf("storage: running migration v1 - create history tables")

	schema := `
	CREATE TABLE IF NOT EXISTS daily_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		report_date TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		objects INTEGER NOT NULL DEFAULT 0,
		skipped_objects INTEGER NOT NULL DEFAULT 0,
		total_lines INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		slow_query_count INTEGER NOT NULL DEFAULT 0,
		critical_count INTEGER NOT NULL DEFAULT 0,
		avg_query_ms REAL,
		max_query_ms REAL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON daily_reports(generated_at);
	CREATE INDEX IF NOT EXISTS idx_reports_date ON daily_reports(report_date);

	CREATE TABLE IF NOT EXISTS scan_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		scanned_at TEXT NOT NULL,
		object_key TEXT NOT NULL,
		total_lines INTEGER NOT NULL DEFAULT 0,
		issues TEXT NOT NULL DEFAULT '[]',
		notified INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scans_scanned_at ON scan_results(scanned_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 creates the metric_points table
func (s *Storage) migrateV2() error {
	log.Printf("storage: running migration v2 - create metric_points table")

	schema := `
	CREATE TABLE IF NOT EXISTS metric_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		dimensions TEXT NOT NULL DEFAULT '',
		value REAL NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_metric_lookup ON metric_points(namespace, name, dimensions, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CleanupOld deletes reports, scans and metric points older than days.
func (s *Storage) CleanupOld(ctx context.Context, days int) (int64, error) {
	cutoff := formatTime(s.now().AddDate(0, 0, -days))

	var total int64
	for _, q := range []string{
		`DELETE FROM daily_reports WHERE generated_at < ?`,
		`DELETE FROM scan_results WHERE scanned_at < ?`,
		`DELETE FROM metric_points WHERE timestamp < ?`,
	} {
		result, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("failed to cleanup old records: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += affected
	}

	return total, nil
}

// GetStatistics returns database statistics
func (s *Storage) GetStatistics(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := []struct {
		key   string
		query string
	}{
		{"total_reports", `SELECT COUNT(*) FROM daily_reports`},
		{"total_scans", `SELECT COUNT(*) FROM scan_results`},
		{"notified_scans", `SELECT COUNT(*) FROM scan_results WHERE notified = 1`},
		{"total_metric_points", `SELECT COUNT(*) FROM metric_points`},
	}
	for _, c := range counts {
		var n int
		if err := s.db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, err
		}
		stats[c.key] = n
	}

	var errorsTotal, criticalTotal int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(error_count), 0), COALESCE(SUM(critical_count), 0) FROM daily_reports`,
	).Scan(&errorsTotal, &criticalTotal)
	if err != nil {
		return nil, err
	}
	stats["reported_errors"] = errorsTotal
	stats["reported_critical"] = criticalTotal

	return stats, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("storage: failed to close database rows: %v", err)
	}
}
