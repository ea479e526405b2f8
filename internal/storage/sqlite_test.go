package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	"github.com/olegiv/logwatch-alerts-go/internal/logscan"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	storage, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

// assertSummaryEqual compares two DailySummary values and reports differences
func assertSummaryEqual(t *testing.T, got, want logscan.DailySummary) {
	t.Helper()
	if got.TotalLines != want.TotalLines {
		t.Errorf("TotalLines mismatch: got %d, want %d", got.TotalLines, want.TotalLines)
	}
	if got.ErrorCount != want.ErrorCount {
		t.Errorf("ErrorCount mismatch: got %d, want %d", got.ErrorCount, want.ErrorCount)
	}
	if got.WarningCount != want.WarningCount {
		t.Errorf("WarningCount mismatch: got %d, want %d", got.WarningCount, want.WarningCount)
	}
	if got.SlowQueryCount != want.SlowQueryCount {
		t.Errorf("SlowQueryCount mismatch: got %d, want %d", got.SlowQueryCount, want.SlowQueryCount)
	}
	if got.CriticalCount != want.CriticalCount {
		t.Errorf("CriticalCount mismatch: got %d, want %d", got.CriticalCount, want.CriticalCount)
	}
	if got.QueryTimes != want.QueryTimes {
		t.Errorf("QueryTimes mismatch: got %+v, want %+v", got.QueryTimes, want.QueryTimes)
	}
}

func TestNew(t *testing.T) {
	storage := newTestStorage(t)
	if storage.db == nil {
		t.Fatal("Expected database connection to be initialized")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	storage, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer func() { _ = storage.Close() }()
}

func TestInitSchema(t *testing.T) {
	storage := newTestStorage(t)

	for _, table := range []string{"schema_version", "daily_reports", "scan_results", "metric_points"} {
		var name string
		err := storage.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	if v := storage.getSchemaVersion(); v != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", v, currentSchemaVersion)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := New(dbPath)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := s1.SaveScan(ctx, &analyzer.ScanRecord{RunID: "r1", ObjectKey: "a.log"}); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}
	_ = s1.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s2.Close() }()

	scans, err := s2.GetRecentScans(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecentScans() error = %v", err)
	}
	if len(scans) != 1 {
		t.Errorf("expected 1 scan after reopen, got %d", len(scans))
	}
}

func TestSaveAndRetrieveReport(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	want := logscan.DailySummary{
		TotalLines: 120, ErrorCount: 3, WarningCount: 7, SlowQueryCount: 2, CriticalCount: 1,
		QueryTimes: logscan.QueryTimes{AverageMs: 42.5, MaxMs: 6001, Available: true},
	}
	rec := &analyzer.ReportRecord{
		RunID:          "run-1",
		ReportDate:     time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC),
		GeneratedAt:    time.Now(),
		Objects:        4,
		SkippedObjects: 1,
		Summary:        want,
	}
	if err := storage.SaveReport(ctx, rec); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if rec.ID == 0 {
		t.Error("Expected ID to be set after save")
	}

	reports, err := storage.GetRecentReports(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecentReports() error = %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}

	got := reports[0]
	if got.RunID != "run-1" || got.Objects != 4 || got.SkippedObjects != 1 {
		t.Errorf("report = %+v", got)
	}
	if got.ReportDate.Format(dateLayout) != "2026-10-18" {
		t.Errorf("ReportDate = %v", got.ReportDate)
	}
	assertSummaryEqual(t, got.Summary, want)
}

func TestReportWithoutQueryTimes(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	rec := &analyzer.ReportRecord{RunID: "r", ReportDate: time.Now(), Summary: logscan.DailySummary{TotalLines: 1}}
	if err := storage.SaveReport(ctx, rec); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	reports, _ := storage.GetRecentReports(ctx, 1)
	if len(reports) != 1 || reports[0].Summary.QueryTimes.Available {
		t.Errorf("query times should stay unavailable: %+v", reports)
	}
}

func TestGetRecentReports(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	for i, age := range []time.Duration{0, 2 * 24 * time.Hour, 10 * 24 * time.Hour} {
		rec := &analyzer.ReportRecord{
			RunID:       string(rune('a' + i)),
			ReportDate:  now.Add(-age),
			GeneratedAt: now.Add(-age),
		}
		if err := storage.SaveReport(ctx, rec); err != nil {
			t.Fatalf("SaveReport() error = %v", err)
		}
	}

	tests := []struct {
		days int
		want int
	}{
		{1, 1},
		{7, 2},
		{30, 3},
	}
	for _, tt := range tests {
		reports, err := storage.GetRecentReports(ctx, tt.days)
		if err != nil {
			t.Fatalf("GetRecentReports(%d) error = %v", tt.days, err)
		}
		if len(reports) != tt.want {
			t.Errorf("GetRecentReports(%d) returned %d, want %d", tt.days, len(reports), tt.want)
		}
	}

	reports, _ := storage.GetRecentReports(ctx, 30)
	if reports[0].RunID != "a" || reports[2].RunID != "c" {
		t.Error("reports should be ordered newest first")
	}
}

func TestSaveAndRetrieveScan(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	rec := &analyzer.ScanRecord{
		RunID:      "scan-1",
		ScannedAt:  time.Now(),
		ObjectKey:  "2026/10/18/app.log",
		TotalLines: 10,
		Issues:     []string{"ERROR one", "CRITICAL two"},
		Notified:   true,
	}
	if err := storage.SaveScan(ctx, rec); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}
	if err := storage.SaveScan(ctx, &analyzer.ScanRecord{RunID: "scan-2", ObjectKey: "b.log"}); err != nil {
		t.Fatalf("SaveScan() error = %v", err)
	}

	scans, err := storage.GetRecentScans(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecentScans() error = %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}

	var got *analyzer.ScanRecord
	for _, s := range scans {
		if s.RunID == "scan-1" {
			got = s
		}
	}
	if got == nil {
		t.Fatal("scan-1 not found")
	}
	if !reflect.DeepEqual(got.Issues, rec.Issues) || !got.Notified || got.TotalLines != 10 {
		t.Errorf("scan = %+v", got)
	}
}

func TestCleanupOld(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()
	old := now.AddDate(0, 0, -100)

	_ = storage.SaveReport(ctx, &analyzer.ReportRecord{RunID: "old", ReportDate: old, GeneratedAt: old})
	_ = storage.SaveReport(ctx, &analyzer.ReportRecord{RunID: "new", ReportDate: now, GeneratedAt: now})
	_ = storage.SaveScan(ctx, &analyzer.ScanRecord{RunID: "old", ScannedAt: old})
	_ = storage.PutMetric(ctx, analyzer.MetricDatum{Namespace: "n", Name: "m", Value: 1, Timestamp: old})
	_ = storage.PutMetric(ctx, analyzer.MetricDatum{Namespace: "n", Name: "m", Value: 1, Timestamp: now})

	deleted, err := storage.CleanupOld(ctx, 90)
	if err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	reports, _ := storage.GetRecentReports(ctx, 365)
	if len(reports) != 1 || reports[0].RunID != "new" {
		t.Errorf("remaining reports = %+v", reports)
	}
}

func TestCleanupOld_NoData(t *testing.T) {
	storage := newTestStorage(t)

	deleted, err := storage.CleanupOld(context.Background(), 90)
	if err != nil {
		t.Fatalf("CleanupOld() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted, got %d", deleted)
	}
}

func TestGetStatistics(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_ = storage.SaveReport(ctx, &analyzer.ReportRecord{RunID: "1", ReportDate: time.Now(), Summary: logscan.DailySummary{ErrorCount: 2, CriticalCount: 1}})
	_ = storage.SaveReport(ctx, &analyzer.ReportRecord{RunID: "2", ReportDate: time.Now(), Summary: logscan.DailySummary{ErrorCount: 3}})
	_ = storage.SaveScan(ctx, &analyzer.ScanRecord{RunID: "s1", Notified: true})
	_ = storage.SaveScan(ctx, &analyzer.ScanRecord{RunID: "s2"})

	stats, err := storage.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics() error = %v", err)
	}

	want := map[string]int{
		"total_reports":       2,
		"total_scans":         2,
		"notified_scans":      1,
		"total_metric_points": 0,
		"reported_errors":     5,
		"reported_critical":   1,
	}
	for k, v := range want {
		if stats[k] != v {
			t.Errorf("%s = %v, want %d", k, stats[k], v)
		}
	}
}

func TestClose(t *testing.T) {
	storage, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
