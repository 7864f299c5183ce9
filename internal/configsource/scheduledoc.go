package configsource

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
	"github.com/cuervo-cloud/fleet-scheduler/internal/schedule"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func toSchedule(doc scheduleDoc) (schedule.Schedule, error) {
	periods := make([]schedule.Period, 0, len(doc.Periods))
	for _, pd := range doc.Periods {
		p, err := toPeriod(pd)
		if err != nil {
			return schedule.Schedule{}, fmt.Errorf("%w: schedule %s: %v", engine.ErrConfiguration, doc.Name, err)
		}
		periods = append(periods, p)
	}
	return schedule.Schedule{
		Name:                 doc.Name,
		DefaultTimezone:      doc.Timezone,
		Enforced:             doc.Enforced,
		RetainRunning:        doc.RetainRunning,
		StopNewInstances:     doc.StopNewInstances,
		UseMaintenanceWindow: doc.UseMaintenanceWindow,
		Periods:              periods,
	}, nil
}

func toPeriod(pd periodDoc) (schedule.Period, error) {
	weekdays := map[time.Weekday]bool{}
	for _, w := range pd.Weekdays {
		d, ok := weekdayNames[strings.ToLower(w)]
		if !ok {
			return schedule.Period{}, fmt.Errorf("unknown weekday %q", w)
		}
		weekdays[d] = true
	}

	begin, err := parseTimeOfDay(pd.Begin)
	if err != nil {
		return schedule.Period{}, fmt.Errorf("begin: %w", err)
	}
	end, err := parseTimeOfDay(pd.End)
	if err != nil {
		return schedule.Period{}, fmt.Errorf("end: %w", err)
	}

	state := model.StateUnknown
	switch strings.ToLower(pd.State) {
	case "", "running":
		state = model.StateRunning
	case "stopped":
		state = model.StateStopped
	default:
		return schedule.Period{}, fmt.Errorf("unknown period state %q", pd.State)
	}

	return schedule.Period{
		Name:         pd.Name,
		Weekdays:     weekdays,
		Begin:        begin,
		End:          end,
		State:        state,
		InstanceType: pd.InstanceType,
	}, nil
}

func parseTimeOfDay(s string) (*schedule.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return nil, fmt.Errorf("bad hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return nil, fmt.Errorf("bad minute in %q: %w", s, err)
	}
	return &schedule.TimeOfDay{Hour: h, Minute: m}, nil
}
