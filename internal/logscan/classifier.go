// Package logscan classifies application log lines and folds them into
// daily counts or a list of lines worth alerting on.
package logscan

import "strings"

// Category is the classification of a single log line.
type Category int

// Line categories, from least to most severe.
const (
	Normal Category = iota
	Warning
	SlowWarning
	Error
	Critical
)

// Marker substrings looked up in a line.
const (
	ErrorMarker    = "ERROR"
	CriticalMarker = "CRITICAL"
	WarningMarker  = "WARNING"
)

// Slow-trigger phrases. The instrument package writes both into its slow
// operation warnings, so either one marks a warning line as slow.
const (
	SlowQueryPhrase     = "Slow query detected"
	SlowThresholdPhrase = "took more than 5 seconds"
)

// DefaultSlowPhrases is the phrase set used by Classify and Summarize.
var DefaultSlowPhrases = []string{SlowThresholdPhrase, SlowQueryPhrase}

// CriticalFilterPhrases is the phrase set used by FindCritical. Real-time
// scans only treat the threshold phrase as a slow marker.
var CriticalFilterPhrases = []string{SlowThresholdPhrase}

var (
	defaultClassifier        = NewClassifier()
	criticalFilterClassifier = NewClassifier(CriticalFilterPhrases...)
)

// String returns the name of the category.
func (c Category) String() string {
	switch c {
	case Warning:
		return "warning"
	case SlowWarning:
		return "slow_warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// IsWarning reports whether c is Warning or SlowWarning.
func (c Category) IsWarning() bool {
	return c == Warning || c == SlowWarning
}

// IsAlertable reports whether a line of this category belongs in a critical
// issue notification.
func (c Category) IsAlertable() bool {
	return c == Error || c == Critical || c == SlowWarning
}

// Classifier assigns a Category to log lines by substring matching.
// The zero value has no slow phrases and never yields SlowWarning.
type Classifier struct {
	slowPhrases []string
}

// NewClassifier creates a classifier. Without arguments it uses
// DefaultSlowPhrases.
func NewClassifier(slowPhrases ...string) *Classifier {
	if len(slowPhrases) == 0 {
		slowPhrases = DefaultSlowPhrases
	}
	phrases := make([]string, 0, len(slowPhrases))
	for _, p := range slowPhrases {
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Classifier{slowPhrases: phrases}
}

// Classify returns the category of line. Rules are checked in order and the
// first match wins: ERROR, CRITICAL, WARNING (slow or not), then Normal.
func (c *Classifier) Classify(line string) Category {
	switch {
	case strings.Contains(line, ErrorMarker):
		return Error
	case strings.Contains(line, CriticalMarker):
		return Critical
	case strings.Contains(line, WarningMarker):
		if c.isSlow(line) {
			return SlowWarning
		}
		return Warning
	default:
		return Normal
	}
}

func (c *Classifier) isSlow(line string) bool {
	for _, phrase := range c.slowPhrases {
		if strings.Contains(line, phrase) {
			return true
		}
	}
	return false
}

// Classify classifies line with the default phrase set.
func Classify(line string) Category {
	return defaultClassifier.Classify(line)
}
