// Package awsdriver implements the EC2 ServiceDriver: it describes,
// starts, stops, and resizes EC2 instances, translating between the
// AWS SDK's shapes and the engine's model.Instance / model.InstanceResult,
// using a narrow per-service API interface for mockability.
package awsdriver

import (
	"context"
	"fmt"
	"iter"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// EC2API is the slice of the EC2 client this driver calls, narrowed to
// only the operations actually used, for mockability.
type EC2API interface {
	DescribeInstances(context.Context, *ec2.DescribeInstancesInput, ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StartInstances(context.Context, *ec2.StartInstancesInput, ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	StopInstances(context.Context, *ec2.StopInstancesInput, ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	ModifyInstanceAttribute(context.Context, *ec2.ModifyInstanceAttributeInput, ...func(*ec2.Options)) (*ec2.ModifyInstanceAttributeOutput, error)
	CreateTags(context.Context, *ec2.CreateTagsInput, ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
}

// ClientFactory builds an EC2API scoped to one account/region's
// credentials; cmd/scheduler's buildDriver supplies the production
// implementation over aws-sdk-go-v2/config, tests supply a fake.
type ClientFactory func(creds aws.Credentials, region string) EC2API

const (
	scheduleTagKey = "Schedule"
	nameTagKey     = "Name"
)

// Driver is the EC2 ServiceDriver. StartedTags and StoppedTags are the
// tags applied after a start or stop, already expanded by
// internal/configsource; Driver never expands templates itself. The
// schedule tag key is the fixed "Schedule".
type Driver struct {
	Clients      ClientFactory
	StartedTags  []types.Tag
	StoppedTags  []types.Tag

	describeCache *gocache.Cache
}

func New(clients ClientFactory) *Driver {
	return &Driver{Clients: clients, describeCache: newDescribeCache()}
}

func (d *Driver) ServiceName() string { return "ec2" }

func (d *Driver) AllowResize() bool { return true }

// SchedulableInstances describes every instance tagged with a schedule
// name in the given account/region, lazily, preserving iter.Seq2's
// early-cancellation semantics.
func (d *Driver) SchedulableInstances(ctx context.Context, p engine.Params) iter.Seq2[model.Instance, error] {
	filters := []types.Filter{
		{Name: aws.String("tag-key"), Values: []string{scheduleTagKey}},
	}
	key := filterHash(p.Account, p.Region, filters)

	return func(yield func(model.Instance, error) bool) {
		if cached, ok := cachedInstances(d.describeCache, key); ok {
			for _, inst := range cached {
				if !yield(inst, nil) {
					return
				}
			}
			return
		}

		client := d.Clients(p.Credentials, p.Region)
		input := &ec2.DescribeInstancesInput{Filters: filters}
		var fetched []model.Instance
		paginator := ec2.NewDescribeInstancesPaginator(client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(model.Instance{}, fmt.Errorf("describing ec2 instances in %s/%s: %w", p.Account, p.Region, err))
				return
			}
			for _, res := range page.Reservations {
				for _, inst := range res.Instances {
					m := toModelInstance(inst, p.Account, p.Region)
					fetched = append(fetched, m)
					if !yield(m, nil) {
						return
					}
				}
			}
		}
		storeInstances(d.describeCache, key, fetched)
	}
}

// StartInstances issues one EC2 StartInstances call for the whole batch
// and reports back each instance's resulting state, treating it as a
// single region-scoped batch rather than per-instance calls.
func (d *Driver) StartInstances(ctx context.Context, p engine.Params) iter.Seq2[model.InstanceResult, error] {
	return func(yield func(model.InstanceResult, error) bool) {
		if len(p.StartedInstances) == 0 {
			return
		}
		client := d.Clients(p.Credentials, p.Region)
		ids := lo.Map(p.StartedInstances, func(i model.Instance, _ int) string { return i.ID })

		out, err := client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: ids})
		if err != nil {
			yield(model.InstanceResult{}, fmt.Errorf("starting instances %v in %s/%s: %w", ids, p.Account, p.Region, err))
			return
		}
		if len(d.StartedTags) > 0 {
			d.tagInstances(ctx, client, ids, d.StartedTags, p)
		}
		for _, sc := range out.StartingInstances {
			if !yield(model.InstanceResult{ID: aws.ToString(sc.InstanceId), State: currentStateFromCode(sc.CurrentState)}, nil) {
				return
			}
		}
	}
}

func (d *Driver) StopInstances(ctx context.Context, p engine.Params) iter.Seq2[model.InstanceResult, error] {
	return func(yield func(model.InstanceResult, error) bool) {
		if len(p.StoppedInstances) == 0 {
			return
		}
		client := d.Clients(p.Credentials, p.Region)
		ids := lo.Map(p.StoppedInstances, func(i model.Instance, _ int) string { return i.ID })

		out, err := client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: ids})
		if err != nil {
			yield(model.InstanceResult{}, fmt.Errorf("stopping instances %v in %s/%s: %w", ids, p.Account, p.Region, err))
			return
		}
		if len(d.StoppedTags) > 0 {
			d.tagInstances(ctx, client, ids, d.StoppedTags, p)
		}
		for _, sc := range out.StoppingInstances {
			if !yield(model.InstanceResult{ID: aws.ToString(sc.InstanceId), State: currentStateFromCode(sc.CurrentState)}, nil) {
				return
			}
		}
	}
}

// ResizeInstance changes an instance's type; EC2 requires the instance
// to be stopped for this to succeed, which the "resize then start"
// ordering upstream guarantees.
func (d *Driver) ResizeInstance(ctx context.Context, p engine.Params) error {
	client := d.Clients(p.Credentials, p.Region)
	_, err := client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(p.Instance.ID),
		InstanceType: &types.AttributeValue{Value: aws.String(p.DesiredType)},
	})
	if err != nil {
		return fmt.Errorf("%w: resizing %s to %s: %v", engine.ErrResizeFailed, p.Instance.DisplayString(), p.DesiredType, err)
	}
	return nil
}

func (d *Driver) tagInstances(ctx context.Context, client EC2API, ids []string, tags []types.Tag, p engine.Params) {
	if _, err := client.CreateTags(ctx, &ec2.CreateTagsInput{Resources: ids, Tags: tags}); err != nil {
		p.Logger.Warn("awsdriver: tagging instances failed", zap.Strings("instance_ids", ids), zap.Error(err))
	}
}

func toModelInstance(inst types.Instance, account, region string) model.Instance {
	tags := map[string]string{}
	displayName := ""
	scheduleName := ""
	for _, t := range inst.Tags {
		k, v := aws.ToString(t.Key), aws.ToString(t.Value)
		tags[k] = v
		switch k {
		case nameTagKey:
			displayName = v
		case scheduleTagKey:
			scheduleName = v
		}
	}

	current := currentStateFromCode(inst.State)
	return model.Instance{
		ID:           aws.ToString(inst.InstanceId),
		DisplayName:  displayName,
		Service:      "ec2",
		Account:      account,
		Region:       region,
		CurrentState: current,
		IsRunning:    current == model.CurrentRunning,
		IsTerminated: current == model.CurrentTerminated,
		MachineType:  string(inst.InstanceType),
		AllowResize:  true,
		ScheduleName: scheduleName,
		Tags:         tags,
	}
}

func currentStateFromCode(s *types.InstanceState) model.CurrentState {
	if s == nil {
		return model.CurrentTransitional
	}
	switch types.InstanceStateName(s.Name) {
	case types.InstanceStateNameRunning:
		return model.CurrentRunning
	case types.InstanceStateNameStopped:
		return model.CurrentStopped
	case types.InstanceStateNameTerminated:
		return model.CurrentTerminated
	default:
		return model.CurrentTransitional
	}
}
