// Package configsource implements the scheduler's configuration
// loader, an external collaborator that assembles an
// engine.Configuration from a DynamoDB-shaped settings record plus
// individual Schedule definitions stored as SSM parameters, and expands
// the started/stopped tag templates.
package configsource

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/schedule"
)

// Loader is the seam cmd/scheduler depends on; cmd/scheduler loads the
// whole configuration through it at the start of every run.
type Loader interface {
	LoadConfiguration(ctx context.Context, overrideAccount string) (*engine.Configuration, error)
}

// settingsRecord is the scalar half of SchedulerConfiguration, the
// DynamoDB-shaped row configured at deploy time; schedule bodies are
// loaded separately from Parameter Store, named by ScheduleNames.
type settingsRecord struct {
	ScheduledServices        []string `json:"scheduled_services" validate:"required,min=1"`
	ScheduleClusters         bool     `json:"schedule_clusters"`
	Regions                  []string `json:"regions"`
	ScheduleLambdaAccount    bool     `json:"schedule_lambda_account"`
	RemoteAccountIDs         []string `json:"remote_account_ids"`
	DefaultTimezone          string   `json:"default_timezone" validate:"required"`
	Trace                    bool     `json:"trace"`
	UseMetrics               bool     `json:"use_metrics"`
	Namespace                string   `json:"namespace" validate:"required"`
	AWSPartition             string   `json:"aws_partition" validate:"required"`
	SchedulerRoleName        string   `json:"scheduler_role_name" validate:"required"`
	CreateRDSSnapshot        bool     `json:"create_rds_snapshot"`
	EnableMaintenanceWindows bool     `json:"enable_ssm_maintenance_windows"`
	StartedTagsTemplate      string   `json:"started_tags"`
	StoppedTagsTemplate      string   `json:"stopped_tags"`
	ScheduleNames            []string `json:"schedule_names"`
}

// SettingsStore fetches the single settings row this deployment is
// configured with.
type SettingsStore interface {
	GetSettings(ctx context.Context) (json.RawMessage, error)
}

// ScheduleStore fetches one named Schedule definition's raw JSON body.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, name string) (json.RawMessage, error)
}

// scheduleDoc is the wire shape of a Schedule definition, decoded then
// translated into schedule.Schedule.
type scheduleDoc struct {
	Name                 string       `json:"name" validate:"required"`
	Timezone             string       `json:"timezone"`
	Enforced             bool         `json:"enforced"`
	RetainRunning         bool        `json:"retain_running"`
	StopNewInstances     bool         `json:"stop_new_instances"`
	UseMaintenanceWindow bool         `json:"use_maintenance_window"`
	Periods              []periodDoc  `json:"periods"`
}

type periodDoc struct {
	Name         string   `json:"name" validate:"required"`
	Weekdays     []string `json:"weekdays"`
	Begin        string   `json:"begin"`
	End          string   `json:"end"`
	State        string   `json:"state"`
	InstanceType string   `json:"instance_type"`
}

// DynamoDBLoader is the production Loader: settings come from the
// DynamoDB settings row and schedules from the ScheduleStore (Parameter
// Store in cmd/scheduler); tag templates are expanded against the load
// instant.
type DynamoDBLoader struct {
	Settings SettingsStore
	Schedules ScheduleStore
	Now      func() time.Time
	validate *validator.Validate
}

func NewDynamoDBLoader(settings SettingsStore, schedules ScheduleStore) *DynamoDBLoader {
	return &DynamoDBLoader{Settings: settings, Schedules: schedules, Now: time.Now, validate: validator.New()}
}

func (l *DynamoDBLoader) LoadConfiguration(ctx context.Context, overrideAccount string) (*engine.Configuration, error) {
	raw, err := l.Settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading settings: %v", engine.ErrConfiguration, err)
	}
	var rec settingsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: decoding settings: %v", engine.ErrConfiguration, err)
	}
	if err := l.validate.Struct(rec); err != nil {
		return nil, fmt.Errorf("%w: invalid settings: %v", engine.ErrConfiguration, err)
	}

	schedules := map[string]schedule.Schedule{}
	for _, name := range rec.ScheduleNames {
		sched, err := l.loadSchedule(ctx, name)
		if err != nil {
			return nil, err
		}
		schedules[sched.Name] = sched
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	vars := TagVariables(now(), rec.Namespace)

	cfg := &engine.Configuration{
		ScheduledServices:        rec.ScheduledServices,
		ScheduleClusters:         rec.ScheduleClusters,
		Regions:                  rec.Regions,
		ScheduleLambdaAccount:    rec.ScheduleLambdaAccount,
		RemoteAccountIDs:         rec.RemoteAccountIDs,
		DefaultTimezone:          rec.DefaultTimezone,
		Trace:                    rec.Trace,
		UseMetrics:               rec.UseMetrics,
		Namespace:                rec.Namespace,
		AWSPartition:             rec.AWSPartition,
		SchedulerRoleName:        rec.SchedulerRoleName,
		CreateRDSSnapshot:        rec.CreateRDSSnapshot,
		EnableMaintenanceWindows: rec.EnableMaintenanceWindows,
		StartedTags:              ExpandTags(rec.StartedTagsTemplate, vars),
		StoppedTags:              ExpandTags(rec.StoppedTagsTemplate, vars),
		Schedules:                schedules,
	}
	if overrideAccount != "" {
		cfg.RemoteAccountIDs = append([]string{overrideAccount}, cfg.RemoteAccountIDs...)
	}
	return cfg, nil
}

func (l *DynamoDBLoader) loadSchedule(ctx context.Context, name string) (schedule.Schedule, error) {
	raw, err := l.Schedules.GetSchedule(ctx, name)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: loading schedule %s: %v", engine.ErrConfiguration, name, err)
	}
	var doc scheduleDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: decoding schedule %s: %v", engine.ErrConfiguration, name, err)
	}
	if err := l.validate.Struct(doc); err != nil {
		return schedule.Schedule{}, fmt.Errorf("%w: invalid schedule %s: %v", engine.ErrConfiguration, name, err)
	}
	return toSchedule(doc)
}
