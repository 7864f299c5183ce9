// Package schedule implements the schedule evaluator: given a
// Schedule, an Instance, and an instant, it returns the desired state and
// an optional desired machine type. It consults a maintenance window
// first when the schedule opts in.
package schedule

import (
	"fmt"
	"time"

	"github.com/cuervo-cloud/fleet-scheduler/internal/clock"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// Schedule is a named policy mapping (time, time-zone, day) to a
// desired state and optional machine type.
type Schedule struct {
	Name               string
	DefaultTimezone    string
	Enforced           bool
	RetainRunning      bool
	StopNewInstances   bool
	UseMaintenanceWindow bool
	Periods            []Period
}

// Result is the outcome of evaluating a Schedule against an instance at
// an instant.
type Result struct {
	DesiredState model.DesiredState
	DesiredType  *string
	PeriodName   string
}

// Evaluate resolves the desired state in full, including
// maintenance-window precedence. clk is used both for the maintenance
// window's "now" (clk.NowUTC) and, when no window wins, for the current
// time in the schedule's zone (clk.NowIn); the two are separate reads of
// clk.
func (s Schedule) Evaluate(clk clock.Clock, instance model.Instance, window *MaintenanceWindow) (Result, error) {
	if s.UseMaintenanceWindow && window != nil {
		state, desiredType, periodName := window.Evaluate(instance, clk.NowUTC())
		if state == model.StateRunning {
			return Result{DesiredState: state, DesiredType: desiredType, PeriodName: periodName}, nil
		}
	}

	zone := s.DefaultTimezone
	if zone == "" {
		zone = "UTC"
	}
	localNow, err := clk.NowIn(zone)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	return s.evaluateAt(instance, localNow), nil
}

func (s Schedule) evaluateAt(instance model.Instance, localNow time.Time) Result {
	if len(s.Periods) == 0 {
		return Result{DesiredState: model.StateAny}
	}

	for _, p := range s.Periods {
		if !p.active(localNow) {
			continue
		}
		state := p.resolvedState()
		var desiredType *string
		if p.InstanceType != "" && p.InstanceType != instance.MachineType {
			t := p.InstanceType
			desiredType = &t
		}
		return Result{DesiredState: state, DesiredType: desiredType, PeriodName: p.Name}
	}

	return Result{DesiredState: model.StateStopped}
}
