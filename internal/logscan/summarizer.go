package logscan

import "strings"

// DailySummary holds line counts for one reporting period.
// The query time fields are filled by the caller from a metrics source.
type DailySummary struct {
	TotalLines     int
	ErrorCount     int
	WarningCount   int
	SlowQueryCount int
	CriticalCount  int

	QueryTimes QueryTimes
}

// QueryTimes carries the average and maximum query execution time for the
// period. Available is false when the metrics source had no datapoints.
type QueryTimes struct {
	AverageMs float64
	MaxMs     float64
	Available bool
}

// Merge adds the counts of other into s. Query times are left untouched.
func (s *DailySummary) Merge(other DailySummary) {
	s.TotalLines += other.TotalLines
	s.ErrorCount += other.ErrorCount
	s.WarningCount += other.WarningCount
	s.SlowQueryCount += other.SlowQueryCount
	s.CriticalCount += other.CriticalCount
}

// SplitLines splits raw log text on "\n". A trailing newline yields a final
// empty line, which is counted like any other.
func SplitLines(content string) []string {
	return strings.Split(content, "\n")
}

// Summarizer folds classified lines into counts or an alert list.
type Summarizer struct {
	classifier *Classifier
}

// NewSummarizer creates a summarizer. A nil classifier means the default one.
func NewSummarizer(classifier *Classifier) *Summarizer {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &Summarizer{classifier: classifier}
}

// Summarize counts lines by category in a single pass.
func (s *Summarizer) Summarize(lines []string) DailySummary {
	var summary DailySummary
	for _, line := range lines {
		summary.TotalLines++
		switch s.classifier.Classify(line) {
		case Error:
			summary.ErrorCount++
		case Critical:
			summary.CriticalCount++
		case Warning:
			summary.WarningCount++
		case SlowWarning:
			summary.WarningCount++
			summary.SlowQueryCount++
		}
	}
	return summary
}

// FindCritical returns the lines classified Error, Critical or SlowWarning,
// unmodified and in input order. The result is never nil.
func (s *Summarizer) FindCritical(lines []string) []string {
	issues := make([]string, 0)
	for _, line := range lines {
		if s.classifier.Classify(line).IsAlertable() {
			issues = append(issues, line)
		}
	}
	return issues
}

// NewCriticalFilter creates the summarizer used for real-time scans. Its
// FindCritical matches the package-level FindCritical.
func NewCriticalFilter() *Summarizer {
	return NewSummarizer(criticalFilterClassifier)
}

// Summarize counts lines with the default classifier.
func Summarize(lines []string) DailySummary {
	return NewSummarizer(nil).Summarize(lines)
}

// FindCritical filters lines for a real-time alert. A warning is only slow
// here when it contains SlowThresholdPhrase.
func FindCritical(lines []string) []string {
	return NewCriticalFilter().FindCritical(lines)
}
