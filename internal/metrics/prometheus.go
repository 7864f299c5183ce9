package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

const namespace = "fleet_scheduler"

// PrometheusSink exposes running usage totals as counter vectors for
// in-process scraping; it never itself pushes anything, it only
// accumulates into the registry it was created with; this module
// serves no HTTP endpoint for it.
type PrometheusSink struct {
	registry *prometheus.Registry
	started  *prometheus.CounterVec
	stopped  *prometheus.CounterVec
	resized  *prometheus.CounterVec
	hits     *prometheus.CounterVec
}

// NewPrometheusSink registers the scheduler's counters on a fresh
// registry and returns both.
func NewPrometheusSink() (*PrometheusSink, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	s := &PrometheusSink{
		registry: reg,
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "instances_started_total", Help: "Instances started, by machine type.",
		}, []string{"machine_type"}),
		stopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "instances_stopped_total", Help: "Instances stopped, by machine type.",
		}, []string{"machine_type"}),
		resized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "instances_resized_total", Help: "Instances resized, by old-new machine type pair.",
		}, []string{"resize"}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "schedule_period_hits_total", Help: "Instances evaluated into a (schedule, period) pair.",
		}, []string{"schedule", "period"}),
	}
	reg.MustRegister(s.started, s.stopped, s.resized, s.hits)
	return s, reg
}

func (s *PrometheusSink) AddUsage(usage model.UsageCounters) {
	for t, n := range usage.Started {
		s.started.WithLabelValues(t).Add(float64(n))
	}
	for t, n := range usage.Stopped {
		s.stopped.WithLabelValues(t).Add(float64(n))
	}
	for r, n := range usage.Resized {
		s.resized.WithLabelValues(r).Add(float64(n))
	}
}

func (s *PrometheusSink) FlushScheduleMetrics(_ context.Context, sm *ScheduleMetrics) error {
	for key, n := range sm.Hits {
		schedulePeriod := splitHitKey(key)
		s.hits.WithLabelValues(schedulePeriod[0], schedulePeriod[1]).Add(float64(n))
	}
	return nil
}

// PutUsageMetrics is a no-op for Prometheus: AddUsage already folded the
// counters into the registered vectors, which are scraped, not pushed.
func (s *PrometheusSink) PutUsageMetrics(context.Context, string, model.UsageCounters) error {
	return nil
}

func splitHitKey(key string) [2]string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return [2]string{key[:i], key[i+1:]}
		}
	}
	return [2]string{key, "none"}
}
