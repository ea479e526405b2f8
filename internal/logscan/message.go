package logscan

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CriticalSubject is the notification subject for critical scan alerts.
	CriticalSubject = "Critical Issues in Application Logs"

	criticalHeader = "Critical issues found in logs:\n\n"
	dateLayout     = "2006-01-02"
)

// Message is a composed notification.
type Message struct {
	Subject string
	Body    string
}

// CriticalMessage composes the alert for a list of critical lines.
// It returns false when there is nothing to notify.
func CriticalMessage(issues []string) (Message, bool) {
	if len(issues) == 0 {
		return Message{}, false
	}
	return Message{
		Subject: CriticalSubject,
		Body:    criticalHeader + strings.Join(issues, "\n"),
	}, true
}

// DailySubject returns the subject of the daily report for day.
func DailySubject(day time.Time) string {
	return "Daily Log Summary for " + day.Format(dateLayout)
}

// DailyMessage composes the daily report. skipped is the number of log
// objects that could not be read and is only shown when non-zero.
func DailyMessage(day time.Time, summary DailySummary, skipped int) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Summary for %s:\n\n", day.Format(dateLayout))
	fmt.Fprintf(&b, "Total logs: %d\n", summary.TotalLines)
	fmt.Fprintf(&b, "Error count: %d\n", summary.ErrorCount)
	fmt.Fprintf(&b, "Warning count: %d\n", summary.WarningCount)
	fmt.Fprintf(&b, "Slow queries: %d\n", summary.SlowQueryCount)
	fmt.Fprintf(&b, "Average query execution time: %s\n", formatMs(summary.QueryTimes.AverageMs, summary.QueryTimes.Available))
	fmt.Fprintf(&b, "Maximum query execution time: %s\n", formatMs(summary.QueryTimes.MaxMs, summary.QueryTimes.Available))
	if skipped > 0 {
		fmt.Fprintf(&b, "Skipped objects: %d\n", skipped)
	}
	return Message{Subject: DailySubject(day), Body: b.String()}
}

func formatMs(v float64, ok bool) string {
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf("%.2fms", v)
}
