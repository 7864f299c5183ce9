package configsource

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamoDBGetItemAPI struct {
	out *dynamodb.GetItemOutput
	err error
}

func (f fakeDynamoDBGetItemAPI) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.out, f.err
}

func TestDynamoDBSettingsStore_GetSettings_DecodesJSONAttribute(t *testing.T) {
	client := fakeDynamoDBGetItemAPI{out: &dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"json": &types.AttributeValueMemberS{Value: `{"namespace":"fleet-scheduler"}`},
		},
	}}
	store := DynamoDBSettingsStore{Client: client, Table: "fleet-scheduler-config"}

	raw, err := store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"namespace":"fleet-scheduler"}`, string(raw))
}

func TestDynamoDBSettingsStore_GetSettings_MissingRowErrors(t *testing.T) {
	store := DynamoDBSettingsStore{Client: fakeDynamoDBGetItemAPI{out: &dynamodb.GetItemOutput{}}, Table: "fleet-scheduler-config"}
	_, err := store.GetSettings(context.Background())
	assert.Error(t, err)
}

func TestDynamoDBSettingsStore_GetSettings_MissingJSONAttributeErrors(t *testing.T) {
	store := DynamoDBSettingsStore{
		Client: fakeDynamoDBGetItemAPI{out: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}},
		Table:  "fleet-scheduler-config",
	}
	_, err := store.GetSettings(context.Background())
	assert.Error(t, err)
}

type fakeSSMGetParameterAPI struct {
	out      *ssm.GetParameterOutput
	err      error
	captured string
}

func (f *fakeSSMGetParameterAPI) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.captured = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestSSMScheduleStore_GetSchedule_BuildsPrefixedParameterName(t *testing.T) {
	client := &fakeSSMGetParameterAPI{out: &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(`{"name":"office-hours"}`)}}}
	store := SSMScheduleStore{Client: client, Prefix: "/fleet-scheduler/schedules"}

	raw, err := store.GetSchedule(context.Background(), "office-hours")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"office-hours"}`, string(raw))
	assert.Equal(t, "/fleet-scheduler/schedules/office-hours", client.captured)
}

func TestSSMScheduleStore_GetSchedule_PropagatesError(t *testing.T) {
	store := SSMScheduleStore{Client: &fakeSSMGetParameterAPI{err: assert.AnError}, Prefix: "/fleet-scheduler/schedules"}
	_, err := store.GetSchedule(context.Background(), "office-hours")
	assert.Error(t, err)
}
