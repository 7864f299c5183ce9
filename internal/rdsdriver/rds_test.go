package rdsdriver

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cuervo-cloud/fleet-scheduler/internal/engine"
	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

type fakeRDSAPI struct {
	describeOut *rds.DescribeDBInstancesOutput
	describeErr error

	tagsByARN map[string]*rds.ListTagsForResourceOutput

	startErr error
	stopErr  error
	modifyErr error

	addedTagsResource string
	addedTags         []types.Tag
}

func (f *fakeRDSAPI) DescribeDBInstances(context.Context, *rds.DescribeDBInstancesInput, ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if f.describeOut != nil {
		return f.describeOut, nil
	}
	return &rds.DescribeDBInstancesOutput{}, nil
}

func (f *fakeRDSAPI) StartDBInstance(context.Context, *rds.StartDBInstanceInput, ...func(*rds.Options)) (*rds.StartDBInstanceOutput, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &rds.StartDBInstanceOutput{}, nil
}

func (f *fakeRDSAPI) StopDBInstance(context.Context, *rds.StopDBInstanceInput, ...func(*rds.Options)) (*rds.StopDBInstanceOutput, error) {
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	return &rds.StopDBInstanceOutput{}, nil
}

func (f *fakeRDSAPI) ModifyDBInstance(context.Context, *rds.ModifyDBInstanceInput, ...func(*rds.Options)) (*rds.ModifyDBInstanceOutput, error) {
	if f.modifyErr != nil {
		return nil, f.modifyErr
	}
	return &rds.ModifyDBInstanceOutput{}, nil
}

func (f *fakeRDSAPI) ListTagsForResource(_ context.Context, in *rds.ListTagsForResourceInput, _ ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
	if out, ok := f.tagsByARN[aws.ToString(in.ResourceName)]; ok {
		return out, nil
	}
	return &rds.ListTagsForResourceOutput{}, nil
}

func (f *fakeRDSAPI) AddTagsToResource(_ context.Context, in *rds.AddTagsToResourceInput, _ ...func(*rds.Options)) (*rds.AddTagsToResourceOutput, error) {
	f.addedTagsResource = aws.ToString(in.ResourceName)
	f.addedTags = in.Tags
	return &rds.AddTagsToResourceOutput{}, nil
}

func testParams(client *fakeRDSAPI) (engine.Params, ClientFactory) {
	factory := func(aws.Credentials, string) RDSAPI { return client }
	return engine.Params{Account: "111111111111", Region: "us-east-1", Logger: zap.NewNop()}, factory
}

func TestCurrentStateFromStatus(t *testing.T) {
	assert.Equal(t, model.CurrentRunning, currentStateFromStatus("available"))
	assert.Equal(t, model.CurrentStopped, currentStateFromStatus("stopped"))
	assert.Equal(t, model.CurrentTerminated, currentStateFromStatus("deleting"))
	assert.Equal(t, model.CurrentTransitional, currentStateFromStatus("backing-up"))
}

func TestSchedulableInstances_SkipsUntaggedInstances(t *testing.T) {
	client := &fakeRDSAPI{
		describeOut: &rds.DescribeDBInstancesOutput{
			DBInstances: []types.DBInstance{
				{DBInstanceIdentifier: aws.String("db-1"), DBInstanceArn: aws.String("arn:db-1"), DBInstanceStatus: aws.String("available")},
				{DBInstanceIdentifier: aws.String("db-2"), DBInstanceArn: aws.String("arn:db-2"), DBInstanceStatus: aws.String("available")},
			},
		},
		tagsByARN: map[string]*rds.ListTagsForResourceOutput{
			"arn:db-1": {TagList: []types.Tag{{Key: aws.String("Schedule"), Value: aws.String("office-hours")}}},
			"arn:db-2": {TagList: nil},
		},
	}
	p, factory := testParams(client)
	d := New(factory)

	var ids []string
	for inst, err := range d.SchedulableInstances(context.Background(), p) {
		require.NoError(t, err)
		ids = append(ids, inst.ID)
	}
	assert.Equal(t, []string{"db-1"}, ids)
}

func TestSchedulableInstances_DescribeErrorPropagates(t *testing.T) {
	client := &fakeRDSAPI{describeErr: assert.AnError}
	p, factory := testParams(client)
	d := New(factory)

	var gotErr error
	for _, err := range d.SchedulableInstances(context.Background(), p) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestStartInstances_TagsAfterSuccessfulStart(t *testing.T) {
	client := &fakeRDSAPI{}
	p, factory := testParams(client)
	p.StartedInstances = []model.Instance{{ID: "db-1"}}
	d := New(factory)
	d.StartedTags = []types.Tag{{Key: aws.String("LastAction"), Value: aws.String("fleet-scheduler")}}

	var results []model.InstanceResult
	for res, err := range d.StartInstances(context.Background(), p) {
		require.NoError(t, err)
		results = append(results, res)
	}
	require.Len(t, results, 1)
	assert.Equal(t, "db-1", results[0].ID)
	assert.Equal(t, "db-1", client.addedTagsResource)
}

func TestStartInstances_ContinuesPastPerInstanceError(t *testing.T) {
	client := &fakeRDSAPI{startErr: assert.AnError}
	p, factory := testParams(client)
	p.StartedInstances = []model.Instance{{ID: "db-1"}, {ID: "db-2"}}
	d := New(factory)

	var errs int
	for _, err := range d.StartInstances(context.Background(), p) {
		if err != nil {
			errs++
		}
	}
	assert.Equal(t, 2, errs)
}

func TestStopInstances_SkipsTaggingWhenNoStoppedTagsConfigured(t *testing.T) {
	client := &fakeRDSAPI{}
	p, factory := testParams(client)
	p.StoppedInstances = []model.Instance{{ID: "db-1"}}
	d := New(factory)

	for range d.StopInstances(context.Background(), p) {
	}
	assert.Empty(t, client.addedTagsResource)
}

func TestResizeInstance_WrapsFailureAsErrResizeFailed(t *testing.T) {
	client := &fakeRDSAPI{modifyErr: assert.AnError}
	p, factory := testParams(client)
	p.Instance = model.Instance{ID: "db-1"}
	p.DesiredType = "db.m5.large"
	d := New(factory)

	err := d.ResizeInstance(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrResizeFailed)
}
