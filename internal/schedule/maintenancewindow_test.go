package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

func TestMaintenanceWindow_EvaluateInsideOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	w := MaintenanceWindow{
		Name:        "patch-tuesday",
		Occurrences: []Interval{{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}},
	}
	state, desiredType, name := w.Evaluate(model.Instance{}, now)
	assert.Equal(t, model.StateRunning, state)
	assert.Nil(t, desiredType)
	assert.Equal(t, "patch-tuesday", name)
}

func TestMaintenanceWindow_EvaluateOutsideEveryOccurrence(t *testing.T) {
	now := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	w := MaintenanceWindow{
		Name:        "patch-tuesday",
		Occurrences: []Interval{{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}},
	}
	state, _, name := w.Evaluate(model.Instance{}, now)
	assert.Equal(t, model.StateAny, state)
	assert.Empty(t, name)
}

func TestInterval_ContainsIsHalfOpen(t *testing.T) {
	iv := Interval{Start: time.Unix(0, 0), End: time.Unix(100, 0)}
	assert.True(t, iv.contains(time.Unix(0, 0)))
	assert.True(t, iv.contains(time.Unix(99, 0)))
	assert.False(t, iv.contains(time.Unix(100, 0)))
}
