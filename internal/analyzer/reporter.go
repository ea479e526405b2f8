package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	internalerrors "github.com/olegiv/logwatch-alerts-go/internal/errors"
	"github.com/olegiv/logwatch-alerts-go/internal/logging"
	"github.com/olegiv/logwatch-alerts-go/internal/logscan"
)

// Metric names and dimensions shared by the instrument package and the report.
const (
	MetricQueryExecutionTime = "QueryExecutionTime"
	MetricErrorCount         = "ErrorCount"
	DimensionFunctionName    = "FunctionName"
	// AllFunctions is the FunctionName value every query time is also
	// recorded under, so one query covers the whole day.
	AllFunctions = "ALL"

	// DefaultNamespace is used when no metrics namespace is configured.
	DefaultNamespace = "XemplaWatch"

	// KeyDateLayout is the date prefix layout of log object keys.
	KeyDateLayout = "2006/01/02"

	reportPeriod = 24 * time.Hour
)

// ReportRecord is the persisted outcome of one daily report.
type ReportRecord struct {
	ID             int64
	RunID          string
	ReportDate     time.Time
	GeneratedAt    time.Time
	Objects        int
	SkippedObjects int
	Summary        logscan.DailySummary
}

// ReportHistory persists daily reports.
type ReportHistory interface {
	SaveReport(ctx context.Context, rec *ReportRecord) error
}

// ReporterConfig wires a Reporter. Metrics and History are optional.
type ReporterConfig struct {
	Store     ObjectStore
	Metrics   MetricsSource
	Notifier  Notifier
	History   ReportHistory
	Log       *logging.SecureLogger
	Namespace string
	Location  *time.Location
}

// Reporter builds and sends the daily summary.
type Reporter struct {
	store      ObjectStore
	metrics    MetricsSource
	notifier   Notifier
	history    ReportHistory
	log        *logging.SecureLogger
	namespace  string
	loc        *time.Location
	summarizer *logscan.Summarizer
	now        func() time.Time
}

// Report describes a finished daily report.
type Report struct {
	RunID          string
	Day            time.Time
	Objects        int
	SkippedObjects int
	Summary        logscan.DailySummary
	Message        logscan.Message
}

// NewReporter creates a reporter.
func NewReporter(cfg ReporterConfig) (*Reporter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("reporter requires an object store")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("reporter requires a notifier")
	}
	if cfg.Log == nil {
		cfg.Log = logging.Nop()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Reporter{
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		notifier:   cfg.Notifier,
		history:    cfg.History,
		log:        cfg.Log,
		namespace:  cfg.Namespace,
		loc:        cfg.Location,
		summarizer: logscan.NewSummarizer(nil),
		now:        time.Now,
	}, nil
}

// PreviousDay returns midnight of the day before now in loc.
func PreviousDay(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day()-1, 0, 0, 0, 0, loc)
}

// Yesterday returns midnight of yesterday in the reporter's location.
func (r *Reporter) Yesterday() time.Time {
	return PreviousDay(r.now(), r.loc)
}

// Run summarizes every log object stored under day's date prefix, adds the
// day's query time statistics and sends the report. Objects that cannot be
// read are skipped and counted; a failed listing aborts the run.
func (r *Reporter) Run(ctx context.Context, day time.Time) (*Report, error) {
	d := day.In(r.loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.loc)
	prefix := dayStart.Format(KeyDateLayout)

	report := &Report{RunID: uuid.NewString(), Day: dayStart}

	objects, err := r.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrObjectFetch, prefix, internalerrors.SanitizeError(err))
	}
	report.Objects = len(objects)

	var total int64
	for _, obj := range objects {
		content, err := r.store.Get(ctx, obj.Key)
		if err != nil {
			report.SkippedObjects++
			r.log.Warn().Err(err).Str("key", obj.Key).Msg("Skipping unreadable log object")
			continue
		}
		total += obj.Size
		report.Summary.Merge(r.summarizer.Summarize(logscan.SplitLines(content)))
	}

	r.log.Info().
		Str("run_id", report.RunID).
		Str("prefix", prefix).
		Int("objects", report.Objects).
		Int("skipped", report.SkippedObjects).
		Str("size", humanize.Bytes(uint64(total))).
		Str("lines", humanize.Comma(int64(report.Summary.TotalLines))).
		Msg("Log objects summarized")

	report.Summary.QueryTimes = r.queryTimes(ctx, dayStart)

	report.Message = logscan.DailyMessage(dayStart, report.Summary, report.SkippedObjects)
	if err := r.notifier.Send(ctx, report.Message.Subject, report.Message.Body); err != nil {
		return nil, dispatchError(err)
	}
	r.log.Info().Str("run_id", report.RunID).Msg("Daily summary sent")

	if r.history != nil {
		rec := &ReportRecord{
			RunID:          report.RunID,
			ReportDate:     dayStart,
			GeneratedAt:    r.now(),
			Objects:        report.Objects,
			SkippedObjects: report.SkippedObjects,
			Summary:        report.Summary,
		}
		if err := r.history.SaveReport(ctx, rec); err != nil {
			r.log.Warn().Err(err).Msg("Failed to save daily report")
		}
	}

	return report, nil
}

// queryTimes fetches the day's average and maximum query time. A failing
// metrics source leaves the times unavailable instead of failing the report.
func (r *Reporter) queryTimes(ctx context.Context, dayStart time.Time) logscan.QueryTimes {
	if r.metrics == nil {
		return logscan.QueryTimes{}
	}

	stats, err := r.metrics.Statistics(ctx, StatisticsQuery{
		Namespace:  r.namespace,
		Name:       MetricQueryExecutionTime,
		Dimensions: []Dimension{{Name: DimensionFunctionName, Value: AllFunctions}},
		Start:      dayStart,
		End:        dayStart.Add(reportPeriod),
		Period:     reportPeriod,
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to fetch query time statistics")
		return logscan.QueryTimes{}
	}

	return logscan.QueryTimes{
		AverageMs: stats.Average,
		MaxMs:     stats.Maximum,
		Available: stats.Available,
	}
}
