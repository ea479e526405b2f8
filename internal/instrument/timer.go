// Package instrument times operations, writes their outcome to the
// application log and publishes execution time and error metrics.
//
// The slow-operation line it writes contains both phrases the log scanner
// treats as slow-query markers, so slow operations surface in the critical
// scan and in the daily slow query count.
package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
	internalerrors "github.com/olegiv/logwatch-alerts-go/internal/errors"
	"github.com/olegiv/logwatch-alerts-go/internal/logscan"
	"github.com/olegiv/logwatch-alerts-go/pkg/applog"
)

// SlowThreshold is the duration above which an operation is reported as slow.
const SlowThreshold = 5 * time.Second

type kind int

const (
	kindQuery kind = iota
	kindFunction
)

// Timer wraps operations with timing, logging and metrics.
type Timer struct {
	recorder  analyzer.MetricsRecorder
	log       *applog.Logger
	namespace string
	now       func() time.Time
}

// New creates a Timer. A nil recorder disables metrics.
func New(recorder analyzer.MetricsRecorder, log *applog.Logger, namespace string) *Timer {
	if namespace == "" {
		namespace = analyzer.DefaultNamespace
	}
	return &Timer{
		recorder:  recorder,
		log:       log,
		namespace: namespace,
		now:       time.Now,
	}
}

// Query runs a database operation. On success it logs
// "Query <name> executed in <ms>ms" and publishes QueryExecutionTime under
// FunctionName=<name> and FunctionName=ALL.
func Query[T any](ctx context.Context, t *Timer, name string, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, t, kindQuery, name, fn)
}

// Trace runs a generic operation. On success it logs
// "Function <name> executed in <ms>ms" and publishes <name>_ExecutionTime.
func Trace[T any](ctx context.Context, t *Timer, name string, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, t, kindFunction, name, fn)
}

// Wrap returns fn traced under name.
func (t *Timer) Wrap(name string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := Trace(ctx, t, name, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		return err
	}
}

func run[T any](ctx context.Context, t *Timer, k kind, name string, fn func(context.Context) (T, error)) (result T, err error) {
	start := t.now()
	completed := false

	defer func() {
		if completed {
			return
		}
		if r := recover(); r != nil {
			t.failure(ctx, name, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = fn(ctx)
	completed = true

	if err != nil {
		t.failure(ctx, name, err)
		return result, err
	}

	t.success(ctx, k, name, t.now().Sub(start))
	return result, nil
}

func (t *Timer) success(ctx context.Context, k kind, name string, elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)

	switch k {
	case kindQuery:
		t.log.Info().Msgf("Query %s executed in %.2fms", name, ms)
		t.put(ctx, analyzer.MetricQueryExecutionTime, ms, analyzer.UnitMilliseconds, name)
		t.put(ctx, analyzer.MetricQueryExecutionTime, ms, analyzer.UnitMilliseconds, analyzer.AllFunctions)
	default:
		t.log.Info().Msgf("Function %s executed in %.2fms", name, ms)
		t.put(ctx, name+"_ExecutionTime", ms, analyzer.UnitMilliseconds, "")
	}

	if elapsed > SlowThreshold {
		t.log.Warning().Msg(SlowLine(name, ms))
	}
}

func (t *Timer) failure(ctx context.Context, name string, err error) {
	t.log.Error().Msgf("Error in %s: %v", name, internalerrors.SanitizeError(err))
	t.put(ctx, analyzer.MetricErrorCount, 1, analyzer.UnitCount, name)
}

// SlowLine is the message written for an operation slower than SlowThreshold.
func SlowLine(name string, ms float64) string {
	return fmt.Sprintf("%s: %s %s (%.2fms)", logscan.SlowQueryPhrase, name, logscan.SlowThresholdPhrase, ms)
}

// put publishes a metric. Failures are logged and never fail the operation.
func (t *Timer) put(ctx context.Context, metric string, value float64, unit analyzer.Unit, function string) {
	if t.recorder == nil {
		return
	}

	datum := analyzer.MetricDatum{
		Namespace: t.namespace,
		Name:      metric,
		Value:     value,
		Unit:      unit,
		Timestamp: t.now(),
	}
	if function != "" {
		datum.Dimensions = []analyzer.Dimension{{Name: analyzer.DimensionFunctionName, Value: function}}
	}

	if err := t.recorder.PutMetric(context.WithoutCancel(ctx), datum); err != nil {
		t.log.Warning().Msgf("Failed to publish metric %s: %v", metric, internalerrors.SanitizeError(err))
	}
}
