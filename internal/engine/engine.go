// Package engine implements the scheduling decision engine: the
// orchestrator that, per (service, account, region), fetches
// schedulable instances, evaluates desired states, reconciles them
// against persisted state via a per-instance state machine, commits
// start/stop/resize batches, and records usage metrics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cuervo-cloud/fleet-scheduler/internal/accounts"
	"github.com/cuervo-cloud/fleet-scheduler/internal/clock"
	"github.com/cuervo-cloud/fleet-scheduler/internal/metrics"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
	"github.com/cuervo-cloud/fleet-scheduler/internal/schedule"
	"github.com/cuervo-cloud/fleet-scheduler/internal/statestore"
)

// AccountsProvider is the subset of accounts.Provider the engine
// depends on, narrowed to keep the engine testable against a fake
// sequence of accounts.
type AccountsProvider interface {
	Accounts(ctx context.Context, cfg accounts.Config) iter.Seq2[accounts.Account, error]
}

// MaintenanceWindows resolves the live MaintenanceWindow for an
// instance, if any, at evaluation time. It is a seam onto an external
// maintenance-window discovery collaborator.
type MaintenanceWindows interface {
	Resolve(ctx context.Context, ref model.MaintenanceWindowRef) (*schedule.MaintenanceWindow, error)
}

// NoMaintenanceWindows is a MaintenanceWindows that never resolves a
// window, for services/deployments that don't opt in.
type NoMaintenanceWindows struct{}

func (NoMaintenanceWindows) Resolve(context.Context, model.MaintenanceWindowRef) (*schedule.MaintenanceWindow, error) {
	return nil, nil
}

// Engine is the decision engine for exactly one service (EC2, RDS, ...);
// cmd/scheduler constructs one Engine per configured service and calls
// Run independently, since each service is scheduled independently.
type Engine struct {
	Clock              clock.Clock
	Driver             ServiceDriver
	Backend            statestore.Backend
	Accounts           AccountsProvider
	Metrics            metrics.Sink
	MaintenanceWindows MaintenanceWindows
	Logger             *zap.Logger

	// Parallelism bounds how many accounts are processed concurrently;
	// implementers may parallelize across accounts or regions. Zero or
	// one keeps the default sequential behavior; each account still
	// processes its own regions serially.
	Parallelism int
}

// Run executes one cycle's per-account/per-region algorithm for this
// Engine's service. The account iteration (including the hosting
// account when config.ScheduleLambdaAccount is set) is done by
// internal/accounts.Provider; Run uses hostAccount only for logging.
func (e *Engine) Run(ctx context.Context, config Configuration, hostAccount string) (model.ResultMap, error) {
	result := model.ResultMap{}
	scheduleMetrics := metrics.NewScheduleMetrics(e.Clock.NowUTC())

	e.Logger.Info("engine: starting cycle",
		zap.String("service", e.Driver.ServiceName()),
		zap.String("host_account", hostAccount),
		zap.String("correlation_id", scheduleMetrics.CorrelationID))

	if e.Parallelism > 1 {
		if err := e.runParallel(ctx, config, scheduleMetrics, result); err != nil {
			return nil, err
		}
	} else {
		for account, err := range e.Accounts.Accounts(ctx, config.AccountsConfig()) {
			if err != nil {
				// Session-provider errors are already contained at the
				// account scope by internal/accounts (deconfigure + skip);
				// this branch only exists to satisfy iter.Seq2's shape.
				e.Logger.Error("engine: error yielded by account provider", zap.Error(err))
				continue
			}

			accountResult, err := e.processAccount(ctx, config, account, scheduleMetrics)
			if err != nil {
				return nil, fmt.Errorf("processing account %s: %w", account.Name, err)
			}
			result[account.Name] = accountResult
		}
	}

	if config.UseMetrics {
		if err := e.Metrics.FlushScheduleMetrics(ctx, scheduleMetrics); err != nil {
			e.Logger.Error("engine: failed flushing schedule metrics", zap.Error(err))
		}
	}
	// The per-machine-type counts themselves were already folded into
	// the sinks region-by-region via commitBatch's AddUsage calls; this
	// final call only tells push-style sinks (CloudWatch) to flush them.
	if err := e.Metrics.PutUsageMetrics(ctx, e.Driver.ServiceName(), model.UsageCounters{}); err != nil {
		e.Logger.Error("engine: failed pushing usage metrics", zap.Error(err))
	}

	return result, nil
}

// scheduleMetricsMu guards concurrent Record calls when runParallel
// processes more than one account at a time; *metrics.ScheduleMetrics
// itself has no internal locking, so every write to it funnels through
// recordScheduleHit regardless of which mode Run is in.
var scheduleMetricsMu sync.Mutex

func (e *Engine) recordScheduleHit(sm *metrics.ScheduleMetrics, scheduleName, periodName string) {
	scheduleMetricsMu.Lock()
	defer scheduleMetricsMu.Unlock()
	sm.Record(scheduleName, periodName)
}

// runParallel processes accounts concurrently, bounded by e.Parallelism,
// via golang.org/x/sync/errgroup; each account's own regions are still
// processed serially by processAccount. result is written under resultMu
// since map writes are not safe for concurrent use.
func (e *Engine) runParallel(ctx context.Context, config Configuration, scheduleMetrics *metrics.ScheduleMetrics, result model.ResultMap) error {
	var resultMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Parallelism)

	for account, err := range e.Accounts.Accounts(ctx, config.AccountsConfig()) {
		if err != nil {
			e.Logger.Error("engine: error yielded by account provider", zap.Error(err))
			continue
		}
		account := account
		g.Go(func() error {
			accountResult, err := e.processAccount(gctx, config, account, scheduleMetrics)
			if err != nil {
				return fmt.Errorf("processing account %s: %w", account.Name, err)
			}
			resultMu.Lock()
			result[account.Name] = accountResult
			resultMu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) regionsFor(config Configuration) []string {
	if len(config.Regions) > 0 {
		return config.Regions
	}
	return []string{""} // "" signals the driver to use its own home region
}

func (e *Engine) processAccount(ctx context.Context, config Configuration, account accounts.Account, scheduleMetrics *metrics.ScheduleMetrics) (model.AccountResult, error) {
	acctResult := model.AccountResult{
		Started: map[string][]model.StartedEntry{},
		Stopped: map[string][]model.StoppedEntry{},
		Resized: map[string][]model.ResizedEntry{},
	}

	e.Logger.Info("engine: processing account",
		zap.String("service", e.Driver.ServiceName()),
		zap.String("account", account.Name),
		zap.String("role", account.Role))

	for _, region := range e.regionsFor(config) {
		if err := e.processRegion(ctx, config, account, region, &acctResult, scheduleMetrics); err != nil {
			if errors.Is(err, ErrConfiguration) {
				// Cycle-scoped: a bad zone or malformed schedule can't
				// be isolated to this account/region.
				return model.AccountResult{}, fmt.Errorf("region=%s: %w", region, err)
			}
			// State-store failures are region-scoped: log and move on
			// to the next region rather than aborting the whole cycle.
			e.Logger.Error("engine: region failed, skipping", zap.String("account", account.Name), zap.String("region", region), zap.Error(err))
		}
	}
	return acctResult, nil
}

func (e *Engine) processRegion(ctx context.Context, config Configuration, account accounts.Account, region string, acctResult *model.AccountResult, scheduleMetrics *metrics.ScheduleMetrics) error {
	store := statestore.New(e.Backend, e.Driver.ServiceName())

	batch := newRegionBatch()
	var observedIDs []string
	stateLoaded := false

	params := Params{Credentials: account.Credentials, Account: account.Name, Role: account.Role, Region: region, Trace: config.Trace, Logger: e.Logger}

	var instanceErr error
	for instance, err := range e.Driver.SchedulableInstances(ctx, params) {
		if err != nil {
			instanceErr = multierr.Append(instanceErr, err)
			continue
		}

		if !stateLoaded {
			if err := store.Load(ctx, account.Name, region); err != nil {
				return fmt.Errorf("%w: %v", ErrStateStoreLoad, err)
			}
			stateLoaded = true
		}

		observedIDs = append(observedIDs, instance.ID)

		if instance.IsTerminated {
			store.Delete(instance.ID)
			continue
		}

		sched, ok := config.GetSchedule(instance.ScheduleName)
		if !ok {
			e.Logger.Warn("engine: unknown schedule, skipping instance",
				zap.String("instance", instance.DisplayString()), zap.String("schedule", instance.ScheduleName))
			continue
		}

		var window *schedule.MaintenanceWindow
		if config.EnableMaintenanceWindows && sched.UseMaintenanceWindow && instance.MaintenanceWindow != nil {
			w, err := e.MaintenanceWindows.Resolve(ctx, *instance.MaintenanceWindow)
			if err != nil {
				e.Logger.Warn("engine: maintenance window lookup failed", zap.Error(err))
			}
			window = w
		}

		evalResult, err := sched.Evaluate(e.Clock, instance, window)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		e.recordScheduleHit(scheduleMetrics, instance.ScheduleName, evalResult.PeriodName)

		lastState := store.Get(instance.ID)

		d := decide(decisionInput{
			instance:     instance,
			schedule:     sched,
			desiredState: evalResult.DesiredState,
			desiredType:  evalResult.DesiredType,
			lastDesired:  lastState,
		})

		applyDecision(store, batch, instance, d)
	}
	if instanceErr != nil {
		e.Logger.Error("engine: errors listing schedulable instances", zap.Error(instanceErr))
	}
	if !stateLoaded {
		return nil
	}

	if err := e.commitBatch(ctx, params, store, batch, acctResult, region); err != nil {
		return err
	}

	store.Cleanup(observedIDs)
	if err := store.Save(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStateStoreSave, err)
	}

	return nil
}
