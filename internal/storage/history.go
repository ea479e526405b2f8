package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
)

// SaveReport implements analyzer.ReportHistory.
func (s *Storage) SaveReport(ctx context.Context, rec *analyzer.ReportRecord) error {
	var avg, peak sql.NullFloat64
	if qt := rec.Summary.QueryTimes; qt.Available {
		avg = sql.NullFloat64{Float64: qt.AverageMs, Valid: true}
		peak = sql.NullFloat64{Float64: qt.MaxMs, Valid: true}
	}

	generatedAt := rec.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = s.now()
	}

	query := `
		INSERT INTO daily_reports (
			run_id, report_date, generated_at, objects, skipped_objects,
			total_lines, error_count, warning_count, slow_query_count, critical_count,
			avg_query_ms, max_query_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rec.RunID,
		rec.ReportDate.Format(dateLayout),
		formatTime(generatedAt),
		rec.Objects,
		rec.SkippedObjects,
		rec.Summary.TotalLines,
		rec.Summary.ErrorCount,
		rec.Summary.WarningCount,
		rec.Summary.SlowQueryCount,
		rec.Summary.CriticalCount,
		avg,
		peak,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// GetRecentReports retrieves reports generated in the last N days, newest first.
func (s *Storage) GetRecentReports(ctx context.Context, days int) ([]*analyzer.ReportRecord, error) {
	cutoff := formatTime(s.now().AddDate(0, 0, -days))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, report_date, generated_at, objects, skipped_objects,
		       total_lines, error_count, warning_count, slow_query_count, critical_count,
		       avg_query_ms, max_query_ms
		FROM daily_reports
		WHERE generated_at >= ?
		ORDER BY generated_at DESC, id DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer closeRows(rows)

	var reports []*analyzer.ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rec)
	}

	return reports, rows.Err()
}

func scanReport(rows *sql.Rows) (*analyzer.ReportRecord, error) {
	var (
		rec                     analyzer.ReportRecord
		reportDate, generatedAt string
		avg, peak               sql.NullFloat64
	)

	err := rows.Scan(
		&rec.ID, &rec.RunID, &reportDate, &generatedAt, &rec.Objects, &rec.SkippedObjects,
		&rec.Summary.TotalLines, &rec.Summary.ErrorCount, &rec.Summary.WarningCount,
		&rec.Summary.SlowQueryCount, &rec.Summary.CriticalCount,
		&avg, &peak,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if rec.ReportDate, err = time.Parse(dateLayout, reportDate); err != nil {
		return nil, fmt.Errorf("failed to parse report date: %w", err)
	}
	if rec.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	if avg.Valid && peak.Valid {
		rec.Summary.QueryTimes.AverageMs = avg.Float64
		rec.Summary.QueryTimes.MaxMs = peak.Float64
		rec.Summary.QueryTimes.Available = true
	}

	return &rec, nil
}

// SaveScan implements analyzer.ScanHistory.
func (s *Storage) SaveScan(ctx context.Context, rec *analyzer.ScanRecord) error {
	issues := rec.Issues
	if issues == nil {
		issues = []string{}
	}
	issuesJSON, err := json.Marshal(issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	scannedAt := rec.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = s.now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_results (run_id, scanned_at, object_key, total_lines, issues, notified)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, formatTime(scannedAt), rec.ObjectKey, rec.TotalLines, string(issuesJSON), rec.Notified)
	if err != nil {
		return fmt.Errorf("failed to insert scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// GetRecentScans retrieves scans from the last N days, newest first.
func (s *Storage) GetRecentScans(ctx context.Context, days int) ([]*analyzer.ScanRecord, error) {
	cutoff := formatTime(s.now().AddDate(0, 0, -days))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, scanned_at, object_key, total_lines, issues, notified
		FROM scan_results
		WHERE scanned_at >= ?
		ORDER BY scanned_at DESC, id DESC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer closeRows(rows)

	var scans []*analyzer.ScanRecord
	for rows.Next() {
		var (
			rec                   analyzer.ScanRecord
			scannedAt, issuesJSON string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &scannedAt, &rec.ObjectKey, &rec.TotalLines, &issuesJSON, &rec.Notified); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if rec.ScannedAt, err = parseTime(scannedAt); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		if err := json.Unmarshal([]byte(issuesJSON), &rec.Issues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
		}
		scans = append(scans, &rec)
	}

	return scans, rows.Err()
}
