// Package runtimectx reads the scheduler's process-boundary environment
// once into an explicit value, rather than scattering os.Getenv calls
// throughout the codebase.
package runtimectx

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// RuntimeContext is everything the process needs to know about where it
// is running, read once at startup.
type RuntimeContext struct {
	StackName       string
	HostAccount     string
	StateTable      string
	SettingsTable   string
	ScheduleParamPrefix string
	UserAgentExtra  string
	ScheduleFrequencyMinutes int
	HomeRegion      string

	AWSConfig aws.Config
}

// Load reads the fixed set of environment variables the deployment wires
// in (STACK_NAME, ACCOUNT, STATE_TABLE, SETTINGS_TABLE, SCHEDULE_PARAM_PREFIX,
// USER_AGENT_EXTRA, SCHEDULE_FREQUENCY), resolves the default AWS config,
// and discovers the host account's home region from IMDS when running on
// EC2/Lambda.
func Load(ctx context.Context) (*RuntimeContext, error) {
	freq := 5
	if v := os.Getenv("SCHEDULE_FREQUENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("runtimectx: invalid SCHEDULE_FREQUENCY %q: %w", v, err)
		}
		freq = n
	}

	rc := &RuntimeContext{
		StackName:                os.Getenv("STACK_NAME"),
		HostAccount:              os.Getenv("ACCOUNT"),
		StateTable:               os.Getenv("STATE_TABLE"),
		SettingsTable:            os.Getenv("SETTINGS_TABLE"),
		ScheduleParamPrefix:      os.Getenv("SCHEDULE_PARAM_PREFIX"),
		UserAgentExtra:           os.Getenv("USER_AGENT_EXTRA"),
		ScheduleFrequencyMinutes: freq,
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("runtimectx: loading default aws config: %w", err)
	}
	rc.AWSConfig = cfg

	client := imds.NewFromConfig(cfg)
	if region, err := client.GetRegion(ctx, &imds.GetRegionInput{}); err == nil {
		rc.HomeRegion = region.Region
	} else if cfg.Region != "" {
		rc.HomeRegion = cfg.Region
	}

	return rc, nil
}
