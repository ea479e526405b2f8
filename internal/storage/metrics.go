package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
)

// PutMetric implements analyzer.MetricsRecorder.
func (s *Storage) PutMetric(ctx context.Context, d analyzer.MetricDatum) error {
	if d.Namespace == "" || d.Name == "" {
		return fmt.Errorf("metric namespace and name are required")
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_points (namespace, name, dimensions, value, unit, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.Namespace, d.Name, dimensionKey(d.Dimensions), d.Value, string(d.Unit), formatTime(ts))
	if err != nil {
		return fmt.Errorf("failed to insert metric point: %w", err)
	}
	return nil
}

// Statistics implements analyzer.MetricsSource over [q.Start, q.End).
// Dimensions must match exactly, as in CloudWatch.
func (s *Storage) Statistics(ctx context.Context, q analyzer.StatisticsQuery) (analyzer.Statistics, error) {
	var (
		count     int64
		avg, peak float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(value), 0), COALESCE(MAX(value), 0)
		FROM metric_points
		WHERE namespace = ? AND name = ? AND dimensions = ? AND timestamp >= ? AND timestamp < ?
	`, q.Namespace, q.Name, dimensionKey(q.Dimensions), formatTime(q.Start), formatTime(q.End)).Scan(&count, &avg, &peak)
	if err != nil {
		return analyzer.Statistics{}, fmt.Errorf("failed to query metric statistics: %w", err)
	}

	if count == 0 {
		return analyzer.Statistics{}, nil
	}
	return analyzer.Statistics{
		Average:     avg,
		Maximum:     peak,
		SampleCount: float64(count),
		Available:   true,
	}, nil
}

// dimensionKey renders dimensions in a canonical, name-sorted form.
func dimensionKey(dims []analyzer.Dimension) string {
	if len(dims) == 0 {
		return ""
	}
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, d.Name+"="+d.Value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
