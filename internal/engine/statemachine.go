package engine

import (
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
	"github.com/cuervo-cloud/fleet-scheduler/internal/schedule"
)

// action is what the state machine decided to do with one instance:
// nothing, record a new persisted state, or add it to the start/stop
// batch (persistence for started/stopped instances happens later, once
// the driver reports back the state it actually observed — spec
// §4.5.2).
type action int

const (
	actionNone action = iota
	actionPersist
	actionStart
	actionStop
)

type decision struct {
	action      action
	persistState model.DesiredState
	resize       bool // needAndCanResize() was true
	desiredType  string
	markResized  bool // StateStoppedForResize: mark instance.Resized before stopping
}

type decisionInput struct {
	instance     model.Instance
	schedule     schedule.Schedule
	desiredState model.DesiredState
	desiredType  *string
	lastDesired  model.DesiredState
}

// decide implements the per-instance state transition: last_desired_state
// = unknown is the "first sighting" branch; retain_running and enforced
// get their own branches before falling through to the shared
// new-state transition.
func decide(in decisionInput) decision {
	switch in.lastDesired {
	case model.StateUnknown:
		if in.instance.IsRunning && in.desiredState == model.StateStopped && !in.schedule.StopNewInstances {
			// Give freshly launched instances one cycle's grace.
			return decision{action: actionPersist, persistState: model.StateStopped}
		}
		return newStateTransition(in)

	case model.StateRetainRunning:
		switch in.desiredState {
		case model.StateRunning:
			return decision{action: actionNone}
		case model.StateStopped:
			// Persist stopped, but do not actually stop the instance.
			return decision{action: actionPersist, persistState: model.StateStopped}
		default:
			return decision{action: actionPersist, persistState: in.desiredState}
		}

	default:
		enforcedMismatch := in.schedule.Enforced &&
			((in.instance.IsRunning && in.desiredState == model.StateStopped) ||
				(!in.instance.IsRunning && in.desiredState == model.StateRunning))

		if enforcedMismatch || in.lastDesired != in.desiredState {
			return newStateTransition(in)
		}
		return decision{action: actionNone}
	}
}

// newStateTransition is the shared "new-state transition" block spec
// §4.5.1 describes, applied whenever the prior branches fall through to
// it (first sighting with no grace period, enforced mismatch, or a
// plain desired-state change).
func newStateTransition(in decisionInput) decision {
	switch in.desiredState {
	case model.StateRunning:
		if !in.instance.IsRunning {
			d := decision{action: actionStart}
			if needAndCanResize(in.instance, in.desiredType) {
				d.resize = true
				d.desiredType = *in.desiredType
			}
			return d
		}
		// Already running with desired state running.
		if in.lastDesired == model.StateStopped {
			if in.schedule.RetainRunning {
				return decision{action: actionPersist, persistState: model.StateRetainRunning}
			}
			return decision{action: actionPersist, persistState: model.StateRunning}
		}
		return decision{action: actionNone}

	case model.StateStopped, model.StateStoppedForResize:
		if in.instance.IsRunning {
			return decision{action: actionStop, markResized: in.desiredState == model.StateStoppedForResize}
		}
		return decision{action: actionPersist, persistState: model.StateStopped}

	default: // model.StateAny or anything else: persist and do nothing further.
		return decision{action: actionPersist, persistState: in.desiredState}
	}
}

// needAndCanResize is the resize-warrant test: a desired type is
// pinned, differs from the instance's current type, and the instance
// allows resizing. Warn-and-continue (still start) is the caller's
// responsibility when allow_resize is false.
func needAndCanResize(instance model.Instance, desiredType *string) bool {
	if desiredType == nil || *desiredType == instance.MachineType {
		return false
	}
	return instance.AllowResize
}
