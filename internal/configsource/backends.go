package configsource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DynamoDBAPI is the narrow slice configsource calls for the settings
// row.
type DynamoDBAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

const settingsPartitionKey = "config"

// DynamoDBSettingsStore reads the single settings row from the
// scheduling-config table, stored as a JSON document under a "json"
// attribute keyed by a fixed partition value.
type DynamoDBSettingsStore struct {
	Client DynamoDBAPI
	Table  string
}

func (s DynamoDBSettingsStore) GetSettings(ctx context.Context) (json.RawMessage, error) {
	out, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: settingsPartitionKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("getting scheduler settings from %s: %w", s.Table, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("no settings row %q found in table %s", settingsPartitionKey, s.Table)
	}
	attr, ok := out.Item["json"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("settings row %q in table %s missing json attribute", settingsPartitionKey, s.Table)
	}
	return json.RawMessage(attr.Value), nil
}

// SSMAPI is the narrow slice configsource calls for per-schedule
// parameters.
type SSMAPI interface {
	GetParameter(context.Context, *ssm.GetParameterInput, ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMScheduleStore reads one named Schedule's JSON body from Parameter
// Store, under "{Prefix}/{name}" — the CloudFormation-managed parameter
// tree a deployment's schedules are authored into.
type SSMScheduleStore struct {
	Client SSMAPI
	Prefix string
}

func (s SSMScheduleStore) GetSchedule(ctx context.Context, name string) (json.RawMessage, error) {
	out, err := s.Client.GetParameter(ctx, &ssm.GetParameterInput{
		Name: aws.String(s.Prefix + "/" + name),
	})
	if err != nil {
		return nil, fmt.Errorf("getting schedule parameter %s/%s: %w", s.Prefix, name, err)
	}
	return json.RawMessage(aws.ToString(out.Parameter.Value)), nil
}
