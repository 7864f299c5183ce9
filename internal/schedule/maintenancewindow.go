package schedule

import (
	"time"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// MaintenanceWindow is an externally-discovered recurring interval
// that forces a running state when it intersects the current UTC
// instant. Discovery of windows (an SSM maintenance-window RPC) is an
// external collaborator; this type only knows how to evaluate a
// window it has already been given.
type MaintenanceWindow struct {
	Name string

	// Occurrences are the concrete UTC intervals this window covers for
	// the current discovery horizon. A production loader refreshes this
	// slice periodically; the evaluator itself performs no I/O.
	Occurrences []Interval
}

// Interval is a half-open UTC time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Evaluate returns (running, nil, window-name) when utcInstant falls
// inside one of the window's occurrences, and (any, nil, "") otherwise —
// "any" tells the caller this window has no opinion and the regular
// schedule result should be used.
func (w MaintenanceWindow) Evaluate(_ model.Instance, utcInstant time.Time) (model.DesiredState, *string, string) {
	for _, occ := range w.Occurrences {
		if occ.contains(utcInstant) {
			return model.StateRunning, nil, w.Name
		}
	}
	return model.StateAny, nil, ""
}
