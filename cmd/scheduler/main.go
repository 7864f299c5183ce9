// Command scheduler is the process entry point: it loads a
// RuntimeContext, assembles one Engine per configured service, and
// runs one cycle.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/accounts"
	"github.com/cuervo-cloud/fleet-scheduler/internal/awsdriver"
	"github.com/cuervo-cloud/fleet-scheduler/internal/clock"
	"github.com/cuervo-cloud/fleet-scheduler/internal/configsource"
	"github.com/cuervo-cloud/fleet-scheduler/internal/deconfigure"
	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/metrics"
	"github.com/cuervo-cloud/fleet-scheduler/internal/rdsdriver"
	"github.com/cuervo-cloud/fleet-scheduler/internal/runtimectx"
	"github.com/cuervo-cloud/fleet-scheduler/internal/statestore"
)

var (
	traceFlag          bool
	overrideAccountFlag string
	parallelismFlag     int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Runs one fleet-scheduler cycle across every configured service",
	RunE:  runCycle,
}

func init() {
	rootCmd.Flags().BoolVar(&traceFlag, "trace", false, "set the configuration's trace flag for this run (passed to the service drivers, which do not read it)")
	rootCmd.Flags().StringVar(&overrideAccountFlag, "account", "", "additional remote account id to schedule, processed before the configured remote accounts")
	rootCmd.Flags().IntVar(&parallelismFlag, "parallelism", 1, "number of accounts to process concurrently (1 = sequential)")
}

func runCycle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	rc, err := runtimectx.Load(ctx)
	if err != nil {
		return err
	}

	config, err := loadConfiguration(ctx, rc, logger)
	if err != nil {
		return err
	}
	if traceFlag {
		config.Trace = true
	}

	clk := clock.New()

	hostCreds, err := rc.AWSConfig.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("resolving host account credentials: %w", err)
	}

	stsClient := sts.NewFromConfig(rc.AWSConfig)
	lambdaClient := lambda.NewFromConfig(rc.AWSConfig)
	publisher := deconfigure.NewLambdaPublisher(lambdaClient, fmt.Sprintf("%s-DeconfigureAccount", rc.StackName), logger)

	cwClient := cloudwatch.NewFromConfig(rc.AWSConfig)
	sink := metrics.Multi{Sinks: []metrics.Sink{metrics.NewZapSink(logger), metrics.NewCloudWatchSink(cwClient)}}

	ddbClient := dynamodb.NewFromConfig(rc.AWSConfig)
	backend := statestore.NewDynamoDBBackend(ddbClient, rc.StateTable)

	for _, service := range config.ScheduledServices {
		driver, err := buildDriver(service, rc, config)
		if err != nil {
			logger.Error("scheduler: skipping unknown service", zap.String("service", service), zap.Error(err))
			continue
		}

		accountsProvider := accounts.New(stsClient, service, rc.HostAccount, hostCreds, publisher, logger)

		e := &engine.Engine{
			Clock:              clk,
			Driver:             driver,
			Backend:            backend,
			Accounts:           accountsProvider,
			Metrics:            sink,
			MaintenanceWindows: engine.NoMaintenanceWindows{},
			Logger:             logger,
			Parallelism:        parallelismFlag,
		}

		result, err := e.Run(ctx, *config, rc.HostAccount)
		if err != nil {
			return fmt.Errorf("running %s cycle: %w", service, err)
		}
		logger.Info("scheduler: cycle complete", zap.String("service", service), zap.Int("accounts", len(result)))
	}

	return nil
}

func loadConfiguration(ctx context.Context, rc *runtimectx.RuntimeContext, logger *zap.Logger) (*engine.Configuration, error) {
	ddbClient := dynamodb.NewFromConfig(rc.AWSConfig)
	ssmClient := ssm.NewFromConfig(rc.AWSConfig)

	loader := configsource.NewDynamoDBLoader(
		configsource.DynamoDBSettingsStore{Client: ddbClient, Table: rc.SettingsTable},
		configsource.SSMScheduleStore{Client: ssmClient, Prefix: rc.ScheduleParamPrefix},
	)
	config, err := loader.LoadConfiguration(ctx, overrideAccountFlag)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger.Info("scheduler: configuration loaded",
		zap.Strings("services", config.ScheduledServices),
		zap.Int("schedules", len(config.Schedules)),
		zap.Int("remote_accounts", len(config.RemoteAccountIDs)))
	return config, nil
}

func buildDriver(service string, rc *runtimectx.RuntimeContext, config *engine.Configuration) (engine.ServiceDriver, error) {
	switch service {
	case "ec2":
		d := awsdriver.New(func(creds aws.Credentials, region string) awsdriver.EC2API {
			if region == "" {
				region = rc.HomeRegion
			}
			cfg := rc.AWSConfig.Copy()
			cfg.Region = region
			cfg.Credentials = aws.NewCredentialsCache(credentialsProvider{creds})
			return ec2.NewFromConfig(cfg)
		})
		d.StartedTags = ec2Tags(config.StartedTags)
		d.StoppedTags = ec2Tags(config.StoppedTags)
		return d, nil
	case "rds":
		d := rdsdriver.New(func(creds aws.Credentials, region string) rdsdriver.RDSAPI {
			if region == "" {
				region = rc.HomeRegion
			}
			cfg := rc.AWSConfig.Copy()
			cfg.Region = region
			cfg.Credentials = aws.NewCredentialsCache(credentialsProvider{creds})
			return rds.NewFromConfig(cfg)
		})
		d.StartedTags = rdsTags(config.StartedTags)
		d.StoppedTags = rdsTags(config.StoppedTags)
		return d, nil
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
}

func ec2Tags(tags []engine.Tag) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, ec2types.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

func rdsTags(tags []engine.Tag) []rdstypes.Tag {
	out := make([]rdstypes.Tag, 0, len(tags))
	for _, t := range tags {
		out = append(out, rdstypes.Tag{Key: aws.String(t.Key), Value: aws.String(t.Value)})
	}
	return out
}

// credentialsProvider adapts a single already-resolved aws.Credentials
// value (from an assumed-role session) into the aws.CredentialsProvider
// interface regional SDK clients expect.
type credentialsProvider struct {
	creds aws.Credentials
}

func (c credentialsProvider) Retrieve(context.Context) (aws.Credentials, error) {
	return c.creds, nil
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("LOG_FORMAT") == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
