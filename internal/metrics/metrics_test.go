package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleMetrics_Record_DefaultsEmptyPeriodToNone(t *testing.T) {
	sm := NewScheduleMetrics(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	sm.Record("always-on", "")
	assert.Equal(t, 1, sm.Hits["always-on/none"])
}

func TestScheduleMetrics_Record_AccumulatesAcrossCalls(t *testing.T) {
	sm := NewScheduleMetrics(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC))
	sm.Record("office-hours", "business")
	sm.Record("office-hours", "business")
	sm.Record("office-hours", "after-hours")
	assert.Equal(t, 2, sm.Hits["office-hours/business"])
	assert.Equal(t, 1, sm.Hits["office-hours/after-hours"])
}

func TestNewScheduleMetrics_AssignsUniqueCorrelationID(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	a := NewScheduleMetrics(now)
	b := NewScheduleMetrics(now)
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
	assert.NotEmpty(t, a.CorrelationID)
}
