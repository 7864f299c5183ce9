package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

func TestPrometheusSink_AddUsage_IncrementsCounters(t *testing.T) {
	s, _ := NewPrometheusSink()
	s.AddUsage(model.UsageCounters{Started: map[string]int{"t3.micro": 2}})
	s.AddUsage(model.UsageCounters{Started: map[string]int{"t3.micro": 3}})

	assert.Equal(t, float64(5), testutil.ToFloat64(s.started.WithLabelValues("t3.micro")))
}

func TestPrometheusSink_FlushScheduleMetrics_LabelsByScheduleAndPeriod(t *testing.T) {
	s, _ := NewPrometheusSink()
	sm := NewScheduleMetrics(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	sm.Record("office-hours", "business")
	sm.Record("office-hours", "business")

	require.NoError(t, s.FlushScheduleMetrics(context.Background(), sm))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.hits.WithLabelValues("office-hours", "business")))
}

func TestPrometheusSink_PutUsageMetrics_IsNoOp(t *testing.T) {
	s, _ := NewPrometheusSink()
	assert.NoError(t, s.PutUsageMetrics(context.Background(), "ec2", model.UsageCounters{}))
}

func TestSplitHitKey_SplitsOnLastSlash(t *testing.T) {
	assert.Equal(t, [2]string{"sched/a", "b"}, splitHitKey("sched/a/b"))
	assert.Equal(t, [2]string{"sched", "none"}, splitHitKey("sched"))
}
