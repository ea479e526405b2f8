// Package metrics stores and queries operation timing metrics in CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/olegiv/logwatch-alerts-go/internal/analyzer"
)

var (
	_ analyzer.MetricsRecorder = (*CloudWatch)(nil)
	_ analyzer.MetricsSource   = (*CloudWatch)(nil)
)

type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// CloudWatch records metric points and answers statistics queries.
type CloudWatch struct {
	client cloudWatchAPI
	now    func() time.Time
}

// NewCloudWatch wraps a CloudWatch client.
func NewCloudWatch(client cloudWatchAPI) *CloudWatch {
	return &CloudWatch{client: client, now: time.Now}
}

// PutMetric publishes one datum.
func (c *CloudWatch) PutMetric(ctx context.Context, d analyzer.MetricDatum) error {
	if d.Namespace == "" || d.Name == "" {
		return fmt.Errorf("metric namespace and name are required")
	}
	ts := d.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(d.Namespace),
		MetricData: []types.MetricDatum{{
			MetricName: aws.String(d.Name),
			Dimensions: toDimensions(d.Dimensions),
			Timestamp:  aws.Time(ts),
			Unit:       toUnit(d.Unit),
			Value:      aws.Float64(d.Value),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to put metric %s/%s: %w", d.Namespace, d.Name, err)
	}
	return nil
}

// Statistics returns the average and maximum of the metric over the query
// window. Datapoints from several periods are combined, the average weighted
// by sample count.
func (c *CloudWatch) Statistics(ctx context.Context, q analyzer.StatisticsQuery) (analyzer.Statistics, error) {
	period := int32(q.Period / time.Second)
	if period <= 0 {
		period = int32(q.End.Sub(q.Start) / time.Second)
	}

	out, err := c.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  aws.String(q.Namespace),
		MetricName: aws.String(q.Name),
		Dimensions: toDimensions(q.Dimensions),
		StartTime:  aws.Time(q.Start),
		EndTime:    aws.Time(q.End),
		Period:     aws.Int32(period),
		Statistics: []types.Statistic{
			types.StatisticAverage,
			types.StatisticMaximum,
			types.StatisticSampleCount,
		},
	})
	if err != nil {
		return analyzer.Statistics{}, fmt.Errorf("failed to get statistics for %s/%s: %w", q.Namespace, q.Name, err)
	}

	return combine(out.Datapoints), nil
}

func combine(points []types.Datapoint) analyzer.Statistics {
	var stats analyzer.Statistics
	var weighted, plainSum float64
	for i, p := range points {
		avg := aws.ToFloat64(p.Average)
		peak := aws.ToFloat64(p.Maximum)
		n := aws.ToFloat64(p.SampleCount)

		if i == 0 || peak > stats.Maximum {
			stats.Maximum = peak
		}
		weighted += avg * n
		plainSum += avg
		stats.SampleCount += n
	}
	if len(points) == 0 {
		return stats
	}

	stats.Available = true
	if stats.SampleCount > 0 {
		stats.Average = weighted / stats.SampleCount
	} else {
		stats.Average = plainSum / float64(len(points))
	}
	return stats
}

func toDimensions(dims []analyzer.Dimension) []types.Dimension {
	if len(dims) == 0 {
		return nil
	}
	out := make([]types.Dimension, 0, len(dims))
	for _, d := range dims {
		out = append(out, types.Dimension{Name: aws.String(d.Name), Value: aws.String(d.Value)})
	}
	return out
}

func toUnit(u analyzer.Unit) types.StandardUnit {
	switch u {
	case analyzer.UnitMilliseconds:
		return types.StandardUnitMilliseconds
	case analyzer.UnitCount:
		return types.StandardUnitCount
	default:
		return types.StandardUnitNone
	}
}
