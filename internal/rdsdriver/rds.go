// Package rdsdriver implements the RDS ServiceDriver: start/stop/resize
// for RDS instances, following the same shape as internal/awsdriver but
// against rds.Client.
package rdsdriver

import (
	"context"
	"fmt"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// RDSAPI is the narrow client slice this driver calls.
type RDSAPI interface {
	DescribeDBInstances(context.Context, *rds.DescribeDBInstancesInput, ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	StartDBInstance(context.Context, *rds.StartDBInstanceInput, ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error)
	StopDBInstance(context.Context, *rds.StopDBInstanceInput, ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error)
	ModifyDBInstance(context.Context, *rds.ModifyDBInstanceInput, ...func(*rds.Options)) (*rds.ModifyDBInstanceOutput, error)
	ListTagsForResource(context.Context, *rds.ListTagsForResourceInput, ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
	AddTagsToResource(context.Context, *rds.AddTagsToResourceInput, ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error)
}

// ClientFactory builds an RDSAPI scoped to one account/region's
// credentials.
type ClientFactory func(creds aws.Credentials, region string) RDSAPI

const scheduleTagKey = "Schedule"

// Driver is the RDS ServiceDriver. RDS instance resize (ModifyDBInstance
// with ApplyImmediately) does not require a stop first the way EC2 does,
// but the engine's resize-then-start ordering is harmless either way.
type Driver struct {
	Clients     ClientFactory
	StartedTags []types.Tag
	StoppedTags []types.Tag
}

func New(clients ClientFactory) *Driver {
	return &Driver{Clients: clients}
}

func (d *Driver) ServiceName() string { return "rds" }

func (d *Driver) AllowResize() bool { return true }

func (d *Driver) SchedulableInstances(ctx context.Context, p engine.Params) iter.Seq2[model.Instance, error] {
	return func(yield func(model.Instance, error) bool) {
		client := d.Clients(p.Credentials, p.Region)
		paginator := rds.NewDescribeDBInstancesPaginator(client, &rds.DescribeDBInstancesInput{})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(model.Instance{}, fmt.Errorf("describing rds instances in %s/%s: %w", p.Account, p.Region, err))
				return
			}
			for _, inst := range page.DBInstances {
				m, schedulable := d.toModelInstance(ctx, client, inst, p.Account, p.Region)
				if !schedulable {
					continue
				}
				if !yield(m, nil) {
					return
				}
			}
		}
	}
}

func (d *Driver) StartInstances(ctx context.Context, p engine.Params) iter.Seq2[model.InstanceResult, error] {
	return func(yield func(model.InstanceResult, error) bool) {
		client := d.Clients(p.Credentials, p.Region)
		for _, inst := range p.StartedInstances {
			if _, err := client.StartDBInstance(ctx, &rds.StartDBInstanceInput{DBInstanceIdentifier: aws.String(inst.ID)}); err != nil {
				if !yield(model.InstanceResult{}, fmt.Errorf("starting rds instance %s in %s/%s: %w", inst.ID, p.Account, p.Region, err)) {
					return
				}
				continue
			}
			d.tagInstance(ctx, client, inst.ID, d.StartedTags, p)
			if !yield(model.InstanceResult{ID: inst.ID, State: model.CurrentTransitional}, nil) {
				return
			}
		}
	}
}

func (d *Driver) StopInstances(ctx context.Context, p engine.Params) iter.Seq2[model.InstanceResult, error] {
	return func(yield func(model.InstanceResult, error) bool) {
		client := d.Clients(p.Credentials, p.Region)
		for _, inst := range p.StoppedInstances {
			if _, err := client.StopDBInstance(ctx, &rds.StopDBInstanceInput{DBInstanceIdentifier: aws.String(inst.ID)}); err != nil {
				if !yield(model.InstanceResult{}, fmt.Errorf("stopping rds instance %s in %s/%s: %w", inst.ID, p.Account, p.Region, err)) {
					return
				}
				continue
			}
			d.tagInstance(ctx, client, inst.ID, d.StoppedTags, p)
			if !yield(model.InstanceResult{ID: inst.ID, State: model.CurrentTransitional}, nil) {
				return
			}
		}
	}
}

func (d *Driver) ResizeInstance(ctx context.Context, p engine.Params) error {
	client := d.Clients(p.Credentials, p.Region)
	_, err := client.ModifyDBInstance(ctx, &rds.ModifyDBInstanceInput{
		DBInstanceIdentifier: aws.String(p.Instance.ID),
		DBInstanceClass:      aws.String(p.DesiredType),
		ApplyImmediately:     aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("%w: resizing %s to %s: %v", engine.ErrResizeFailed, p.Instance.DisplayString(), p.DesiredType, err)
	}
	return nil
}

func (d *Driver) tagInstance(ctx context.Context, client RDSAPI, id string, tags []types.Tag, p engine.Params) {
	if len(tags) == 0 {
		return
	}
	if _, err := client.AddTagsToResource(ctx, &rds.AddTagsToResourceInput{ResourceName: aws.String(id), Tags: tags}); err != nil {
		p.Logger.Warn("rdsdriver: tagging instance failed", zap.String("instance", id), zap.Error(err))
	}
}

func (d *Driver) toModelInstance(ctx context.Context, client RDSAPI, inst types.DBInstance, account, region string) (model.Instance, bool) {
	arn := aws.ToString(inst.DBInstanceArn)
	tagsOut, err := client.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{ResourceName: aws.String(arn)})
	tags := map[string]string{}
	scheduleName := ""
	if err == nil {
		for _, t := range tagsOut.TagList {
			k, v := aws.ToString(t.Key), aws.ToString(t.Value)
			tags[k] = v
			if k == scheduleTagKey {
				scheduleName = v
			}
		}
	}
	if scheduleName == "" {
		return model.Instance{}, false
	}

	current := currentStateFromStatus(aws.ToString(inst.DBInstanceStatus))
	return model.Instance{
		ID:           aws.ToString(inst.DBInstanceIdentifier),
		DisplayName:  aws.ToString(inst.DBInstanceIdentifier),
		Service:      "rds",
		Account:      account,
		Region:       region,
		CurrentState: current,
		IsRunning:    current == model.CurrentRunning,
		IsTerminated: current == model.CurrentTerminated,
		MachineType:  aws.ToString(inst.DBInstanceClass),
		AllowResize:  true,
		ScheduleName: scheduleName,
		Tags:         tags,
	}, true
}

func currentStateFromStatus(status string) model.CurrentState {
	switch status {
	case "available":
		return model.CurrentRunning
	case "stopped":
		return model.CurrentStopped
	case "deleting":
		return model.CurrentTerminated
	default:
		return model.CurrentTransitional
	}
}
