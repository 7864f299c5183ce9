package metrics

import (
	"context"

	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// ZapSink just logs every metric it's handed; useful for local runs and
// as the always-on sink underneath whichever push sink is configured.
// It accumulates usage across a cycle's AddUsage calls the same way
// CloudWatchSink does, since PutUsageMetrics is invoked with an empty
// model.UsageCounters once real counts have already been folded in via
// AddUsage.
type ZapSink struct {
	logger *zap.Logger
	usage  model.UsageCounters
}

func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger, usage: model.UsageCounters{Started: map[string]int{}, Stopped: map[string]int{}, Resized: map[string]int{}}}
}

func (s *ZapSink) AddUsage(usage model.UsageCounters) {
	for t, n := range usage.Started {
		s.usage.Started[t] += n
	}
	for t, n := range usage.Stopped {
		s.usage.Stopped[t] += n
	}
	for r, n := range usage.Resized {
		s.usage.Resized[r] += n
	}
	s.logger.Debug("metrics: usage accumulated",
		zap.Any("started", usage.Started), zap.Any("stopped", usage.Stopped), zap.Any("resized", usage.Resized))
}

func (s *ZapSink) FlushScheduleMetrics(_ context.Context, sm *ScheduleMetrics) error {
	s.logger.Info("metrics: schedule hits", zap.String("correlation_id", sm.CorrelationID), zap.Any("hits", sm.Hits))
	return nil
}

// PutUsageMetrics logs the totals accumulated across the cycle's calls
// to AddUsage and resets them; the usage parameter itself is not
// consulted, matching CloudWatchSink's and PrometheusSink's contract
// that AddUsage is the only place real counts enter a sink.
func (s *ZapSink) PutUsageMetrics(_ context.Context, service string, _ model.UsageCounters) error {
	s.logger.Info("metrics: usage totals",
		zap.String("service", service),
		zap.Any("started", s.usage.Started), zap.Any("stopped", s.usage.Stopped), zap.Any("resized", s.usage.Resized))
	s.usage = model.UsageCounters{Started: map[string]int{}, Stopped: map[string]int{}, Resized: map[string]int{}}
	return nil
}

// Multi fans every call out to each sink in order without stopping at
// a failure, and returns the first error any sink reported.
type Multi struct {
	Sinks []Sink
}

func (m Multi) AddUsage(usage model.UsageCounters) {
	for _, s := range m.Sinks {
		s.AddUsage(usage)
	}
}

func (m Multi) FlushScheduleMetrics(ctx context.Context, sm *ScheduleMetrics) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.FlushScheduleMetrics(ctx, sm); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) PutUsageMetrics(ctx context.Context, service string, usage model.UsageCounters) error {
	var firstErr error
	for _, s := range m.Sinks {
		if err := s.PutUsageMetrics(ctx, service, usage); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
