package engine

import (
	"github.com/cuervo-cloud/fleet-scheduler/internal/accounts"
	"github.com/cuervo-cloud/fleet-scheduler/internal/schedule"
)

// Configuration holds everything the engine needs for one cycle of one
// service, independent of how it was loaded (event payload vs.
// configuration-table reload).
type Configuration struct {
	ScheduledServices   []string
	ScheduleClusters    bool
	Regions             []string
	ScheduleLambdaAccount bool
	RemoteAccountIDs    []string
	DefaultTimezone     string
	Trace               bool
	UseMetrics          bool
	Namespace           string
	AWSPartition        string
	SchedulerRoleName   string
	CreateRDSSnapshot   bool
	EnableMaintenanceWindows bool
	StartedTags         []Tag
	StoppedTags         []Tag

	Schedules map[string]schedule.Schedule
}

// Tag is one started/stopped tag entry after template expansion (spec
// §3's started_tags/stopped_tags). Tags are never mutated by the
// engine; they flow into the service driver as parameters for the
// underlying start/stop call to apply.
type Tag struct {
	Key   string
	Value string
}

// GetSchedule returns the named schedule, or false if it is unknown —
// the engine maps that to ErrUnknownSchedule (warn + skip instance).
func (c Configuration) GetSchedule(name string) (schedule.Schedule, bool) {
	s, ok := c.Schedules[name]
	return s, ok
}

// AccountsConfig projects the fields accounts.Provider needs out of the
// broader Configuration.
func (c Configuration) AccountsConfig() accounts.Config {
	return accounts.Config{
		ScheduleLambdaAccount: c.ScheduleLambdaAccount,
		RemoteAccountIDs:      c.RemoteAccountIDs,
		AWSPartition:          c.AWSPartition,
		Namespace:             c.Namespace,
		SchedulerRoleName:     c.SchedulerRoleName,
	}
}
