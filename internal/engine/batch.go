package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
	"github.com/cuervo-cloud/fleet-scheduler/internal/statestore"
)

// resizeEntry pairs an instance scheduled to start with the new type it
// must be resized to first.
type resizeEntry struct {
	instance model.Instance
	newType  string
}

// regionBatch accumulates the three per-region action lists, cleared
// at the start of every region.
type regionBatch struct {
	start  []model.Instance
	stop   []model.Instance
	resize []resizeEntry
}

func newRegionBatch() *regionBatch {
	return &regionBatch{}
}

func (b *regionBatch) resizeType(id string) (string, bool) {
	for _, r := range b.resize {
		if r.instance.ID == id {
			return r.newType, true
		}
	}
	return "", false
}

// applyDecision routes one instance's decision into the batch and/or
// the state store, according to its action shape.
func applyDecision(store *statestore.InstanceStates, batch *regionBatch, instance model.Instance, d decision) {
	switch d.action {
	case actionNone:
		return
	case actionPersist:
		store.Set(instance.ID, d.persistState)
	case actionStart:
		if d.resize {
			batch.resize = append(batch.resize, resizeEntry{instance: instance, newType: d.desiredType})
		}
		batch.start = append(batch.start, instance)
	case actionStop:
		if d.markResized {
			instance.Resized = true
		}
		batch.stop = append(batch.stop, instance)
	}
}

// commitBatch applies a region's batch in resize-then-start-then-stop
// order, aggregates usage metrics, and appends the region's started/
// stopped/resized entries into acctResult.
func (e *Engine) commitBatch(ctx context.Context, params Params, store *statestore.InstanceStates, batch *regionBatch, acctResult *model.AccountResult, region string) error {
	usage := model.UsageCounters{Started: map[string]int{}, Stopped: map[string]int{}, Resized: map[string]int{}}

	resized := e.resizeInstances(ctx, params, batch, usage)

	startable := make([]model.Instance, 0, len(batch.start))
	for _, inst := range batch.start {
		if newType, wantsResize := batch.resizeType(inst.ID); wantsResize && e.Driver.AllowResize() && !resized[inst.ID] {
			// Resize failed this cycle; retry next cycle, exclude from start.
			e.Logger.Warn("engine: resize failed, excluding instance from start this cycle",
				zap.String("instance", inst.DisplayString()), zap.String("desired_type", newType))
			continue
		}
		startable = append(startable, inst)
	}

	if len(startable) > 0 {
		e.Logger.Info("engine: starting instances", zap.Int("count", len(startable)), zap.String("region", region))
		startParams := params
		startParams.StartedInstances = startable
		var entries []model.StartedEntry
		for res, err := range e.Driver.StartInstances(ctx, startParams) {
			if err != nil {
				e.Logger.Error("engine: start failed for instance", zap.Error(err))
				continue
			}
			store.Set(res.ID, stateFromCurrent(res.State))
			inst := findInstance(startable, res.ID)
			entries = append(entries, model.StartedEntry{ID: res.ID, Schedule: inst.ScheduleName})
			usageType := inst.MachineType
			if newType, ok := batch.resizeType(res.ID); ok && resized[res.ID] {
				usageType = newType
			}
			usage.Started[usageType]++
		}
		if len(entries) > 0 {
			acctResult.Started[region] = entries
		}
	}

	if len(batch.stop) > 0 {
		e.Logger.Info("engine: stopping instances", zap.Int("count", len(batch.stop)), zap.String("region", region))
		stopParams := params
		stopParams.StoppedInstances = batch.stop
		var entries []model.StoppedEntry
		for res, err := range e.Driver.StopInstances(ctx, stopParams) {
			if err != nil {
				e.Logger.Error("engine: stop failed for instance", zap.Error(err))
				continue
			}
			store.Set(res.ID, stateFromCurrent(res.State))
			inst := findInstance(batch.stop, res.ID)
			entries = append(entries, model.StoppedEntry{ID: res.ID, Schedule: inst.ScheduleName})
			usage.Stopped[inst.MachineType]++
		}
		if len(entries) > 0 {
			acctResult.Stopped[region] = entries
		}
	}

	if len(batch.resize) > 0 && e.Driver.AllowResize() {
		var entries []model.ResizedEntry
		for _, r := range batch.resize {
			if !resized[r.instance.ID] {
				continue
			}
			entries = append(entries, model.ResizedEntry{
				ID: r.instance.ID, Schedule: r.instance.ScheduleName,
				Old: r.instance.MachineType, New: r.newType,
			})
			usage.Resized[fmt.Sprintf("%s-%s", r.instance.MachineType, r.newType)]++
		}
		if len(entries) > 0 {
			acctResult.Resized[region] = entries
		}
	}

	e.Metrics.AddUsage(usage)
	return nil
}

// resizeInstances performs the "resize then start" step: each entry in
// batch.resize is resized via the driver before its instance is
// eligible to start; a failure excludes that instance from the start
// list this cycle (see ErrResizeFailed) rather than failing the whole
// region.
func (e *Engine) resizeInstances(ctx context.Context, params Params, batch *regionBatch, _ model.UsageCounters) map[string]bool {
	ok := map[string]bool{}
	for _, r := range batch.resize {
		if !e.Driver.AllowResize() {
			e.Logger.Warn("engine: driver does not support resize", zap.String("instance", r.instance.DisplayString()))
			continue
		}
		p := params
		p.Instance = r.instance
		p.DesiredType = r.newType
		if err := e.Driver.ResizeInstance(ctx, p); err != nil {
			e.Logger.Warn("engine: resize instance failed", zap.String("instance", r.instance.DisplayString()), zap.Error(err))
			continue
		}
		ok[r.instance.ID] = true
	}
	return ok
}

func findInstance(instances []model.Instance, id string) model.Instance {
	for _, inst := range instances {
		if inst.ID == id {
			return inst
		}
	}
	return model.Instance{ID: id}
}

func stateFromCurrent(cs model.CurrentState) model.DesiredState {
	switch cs {
	case model.CurrentRunning:
		return model.StateRunning
	case model.CurrentStopped:
		return model.StateStopped
	default:
		// Transitional states (still starting/stopping, or unknown) are
		// persisted as-is so the next cycle re-derives the transition
		// rather than the engine guessing at the outcome.
		return model.DesiredState(cs)
	}
}
