// Package analyzer runs the critical scan and daily report jobs on top of
// narrow collaborator interfaces for object storage, notification and metrics.
package analyzer

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy. Wrapped errors are matched with errors.Is.
var (
	// ErrObjectFetch means a log object or listing could not be read.
	ErrObjectFetch = errors.New("object fetch failed")
	// ErrNotificationDispatch means a notifier did not accept a message.
	ErrNotificationDispatch = errors.New("notification dispatch failed")
)

// ObjectInfo describes a stored log object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore reads log objects.
type ObjectStore interface {
	// Get returns the text of the object stored under key.
	Get(ctx context.Context, key string) (string, error)

	// List returns the objects whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectWriter stores log objects.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Notifier delivers a message to one channel.
type Notifier interface {
	// Send delivers subject and body. Retries, if any, are the notifier's concern.
	Send(ctx context.Context, subject, body string) error

	// Name identifies the notifier in logs.
	Name() string
}

// Unit is a metric unit.
type Unit string

// Metric units.
const (
	UnitMilliseconds Unit = "Milliseconds"
	UnitCount        Unit = "Count"
)

// Dimension is a metric dimension.
type Dimension struct {
	Name  string
	Value string
}

// MetricDatum is one metric point.
type MetricDatum struct {
	Namespace  string
	Name       string
	Value      float64
	Unit       Unit
	Dimensions []Dimension
	Timestamp  time.Time
}

// MetricsRecorder accepts metric points.
type MetricsRecorder interface {
	PutMetric(ctx context.Context, datum MetricDatum) error
}

// StatisticsQuery selects a metric over a time window.
type StatisticsQuery struct {
	Namespace  string
	Name       string
	Dimensions []Dimension
	Start      time.Time
	End        time.Time
	Period     time.Duration
}

// Statistics is the aggregate of a metric over a window.
// Available is false when no datapoints fell in the window.
type Statistics struct {
	Average     float64
	Maximum     float64
	SampleCount float64
	Available   bool
}

// MetricsSource answers statistics queries.
type MetricsSource interface {
	Statistics(ctx context.Context, q StatisticsQuery) (Statistics, error)
}
