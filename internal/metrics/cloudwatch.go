package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// CloudWatchAPI is the narrow slice of the CloudWatch client this sink
// calls, scoped for mockability the way internal/accounts and
// internal/statestore narrow their AWS clients.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const cloudWatchNamespace = "FleetScheduler"

// CloudWatchSink is the production metrics sink: it pushes usage and
// schedule-hit counts as CloudWatch PutMetricData calls, grouped into
// batches of at most 1000 datums per call (the API's hard limit).
type CloudWatchSink struct {
	client CloudWatchAPI
	// usage accumulates across regions within one Run; PutUsageMetrics
	// flushes and resets it.
	usage model.UsageCounters
}

func NewCloudWatchSink(client CloudWatchAPI) *CloudWatchSink {
	return &CloudWatchSink{client: client, usage: model.UsageCounters{Started: map[string]int{}, Stopped: map[string]int{}, Resized: map[string]int{}}}
}

func (s *CloudWatchSink) AddUsage(usage model.UsageCounters) {
	for t, n := range usage.Started {
		s.usage.Started[t] += n
	}
	for t, n := range usage.Stopped {
		s.usage.Stopped[t] += n
	}
	for r, n := range usage.Resized {
		s.usage.Resized[r] += n
	}
}

func (s *CloudWatchSink) FlushScheduleMetrics(ctx context.Context, sm *ScheduleMetrics) error {
	var datums []types.MetricDatum
	for key, n := range sm.Hits {
		schedulePeriod := splitHitKey(key)
		datums = append(datums, types.MetricDatum{
			MetricName: aws.String("SchedulePeriodHits"),
			Value:      aws.Float64(float64(n)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(sm.CycleStart),
			Dimensions: []types.Dimension{
				{Name: aws.String("Schedule"), Value: aws.String(schedulePeriod[0])},
				{Name: aws.String("Period"), Value: aws.String(schedulePeriod[1])},
				{Name: aws.String("CorrelationId"), Value: aws.String(sm.CorrelationID)},
			},
		})
	}
	return s.putAll(ctx, datums)
}

// PutUsageMetrics flushes the usage accumulated across the cycle's calls
// to AddUsage (the region-scoped counts commitBatch folds in); the usage
// parameter itself is not consulted, matching PrometheusSink's contract
// that AddUsage is the only place real counts enter a sink.
func (s *CloudWatchSink) PutUsageMetrics(ctx context.Context, service string, _ model.UsageCounters) error {
	now := time.Now()
	var datums []types.MetricDatum
	add := func(metricName, dimValue string, n int) {
		datums = append(datums, types.MetricDatum{
			MetricName: aws.String(metricName),
			Value:      aws.Float64(float64(n)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
			Dimensions: []types.Dimension{
				{Name: aws.String("Service"), Value: aws.String(service)},
				{Name: aws.String("MachineType"), Value: aws.String(dimValue)},
			},
		})
	}
	for t, n := range s.usage.Started {
		add("InstancesStarted", t, n)
	}
	for t, n := range s.usage.Stopped {
		add("InstancesStopped", t, n)
	}
	for r, n := range s.usage.Resized {
		add("InstancesResized", r, n)
	}
	s.usage = model.UsageCounters{Started: map[string]int{}, Stopped: map[string]int{}, Resized: map[string]int{}}
	return s.putAll(ctx, datums)
}

// putAll chunks datums into CloudWatch's 1000-per-call limit.
func (s *CloudWatchSink) putAll(ctx context.Context, datums []types.MetricDatum) error {
	const maxPerCall = 1000
	for start := 0; start < len(datums); start += maxPerCall {
		end := min(start+maxPerCall, len(datums))
		_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(cloudWatchNamespace),
			MetricData: datums[start:end],
		})
		if err != nil {
			return fmt.Errorf("putting metric data: %w", err)
		}
	}
	return nil
}
