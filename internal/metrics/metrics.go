// Package metrics accumulates per-cycle counters by machine type, and
// per-schedule period hit counts, and pushes them to one or more sinks
// at the end of a run.
package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// Sink is the seam the engine pushes metrics through; cmd/scheduler
// wires a ZapSink and a CloudWatchSink together via Multi.
// PrometheusSink is a further implementation that cmd/scheduler does
// not wire.
type Sink interface {
	// AddUsage folds one region's UsageCounters into the sink's running
	// totals for this process lifetime (Prometheus) or this cycle
	// (CloudWatch).
	AddUsage(usage model.UsageCounters)

	// FlushScheduleMetrics pushes one cycle's schedule-hit counts.
	FlushScheduleMetrics(ctx context.Context, sm *ScheduleMetrics) error

	// PutUsageMetrics pushes the accumulated usage counters for service
	// at the end of a cycle.
	PutUsageMetrics(ctx context.Context, service string, usage model.UsageCounters) error
}

// ScheduleMetrics accumulates, for one cycle, how many instances landed
// in each (schedule, period) pair.
type ScheduleMetrics struct {
	CorrelationID string
	CycleStart    time.Time
	Hits          map[string]int // "schedule/period" -> count
}

// NewScheduleMetrics starts a fresh accumulator for a cycle beginning at
// now; CorrelationID is emitted as a CloudWatch dimension on this
// cycle's schedule-hit metrics (usage metrics do not carry it).
func NewScheduleMetrics(now time.Time) *ScheduleMetrics {
	return &ScheduleMetrics{
		CorrelationID: uuid.NewString(),
		CycleStart:    now,
		Hits:          map[string]int{},
	}
}

// Record increments the hit count for (scheduleName, periodName).
func (sm *ScheduleMetrics) Record(scheduleName, periodName string) {
	if periodName == "" {
		periodName = "none"
	}
	sm.Hits[scheduleName+"/"+periodName]++
}
