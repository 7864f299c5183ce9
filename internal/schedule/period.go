package schedule

import (
	"fmt"
	"time"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// TimeOfDay is a wall-clock time within a day, minute resolution.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Period is a contiguous interval within a Schedule during which a
// specific desired state applies. A Period with no Weekdays set
// applies every day. A Period with a nil
// Begin/End applies for the whole day. Periods are evaluated in order;
// the first one whose weekday and time window contains the instant
// wins.
type Period struct {
	Name string

	// Weekdays restricts the period to specific days; empty means every
	// day of the week.
	Weekdays map[time.Weekday]bool

	// Begin/End bound the time-of-day window. Both nil means the whole
	// day. A non-nil Begin with End before Begin wraps past midnight.
	Begin *TimeOfDay
	End   *TimeOfDay

	// State is the desired state while this period is active. Defaults
	// to model.StateRunning when left as model.StateUnknown, matching
	// the common case of "running period" schedules.
	State model.DesiredState

	// InstanceType, if set, pins the machine type for instances started
	// during this period; an instance that is already running is not
	// resized.
	InstanceType string
}

func (p Period) resolvedState() model.DesiredState {
	if p.State == model.StateUnknown {
		return model.StateRunning
	}
	return p.State
}

// active reports whether the period covers instant t (t is expressed in
// the schedule's target zone already).
func (p Period) active(t time.Time) bool {
	if len(p.Weekdays) > 0 && !p.Weekdays[t.Weekday()] {
		return false
	}
	if p.Begin == nil && p.End == nil {
		return true
	}
	nowMin := t.Hour()*60 + t.Minute()
	beginMin, endMin := 0, 24*60
	if p.Begin != nil {
		beginMin = p.Begin.minutes()
	}
	if p.End != nil {
		endMin = p.End.minutes()
	}
	if beginMin <= endMin {
		return nowMin >= beginMin && nowMin < endMin
	}
	// Wraps past midnight, e.g. 22:00-06:00.
	return nowMin >= beginMin || nowMin < endMin
}
