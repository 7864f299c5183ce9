package deconfigure

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLambdaAPI struct {
	in  *lambda.InvokeInput
	err error
}

func (f *fakeLambdaAPI) Invoke(_ context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &lambda.InvokeOutput{}, nil
}

func TestLambdaPublisher_Publish_InvokesAsynchronously(t *testing.T) {
	client := &fakeLambdaAPI{}
	p := NewLambdaPublisher(client, "fleet-scheduler-main", zap.NewNop())

	event := NewAccountDeleteEvent("222222222222")
	require.NoError(t, p.Publish(context.Background(), event))

	require.NotNil(t, client.in)
	assert.Equal(t, "fleet-scheduler-main", *client.in.FunctionName)
	assert.Equal(t, types.InvocationTypeEvent, client.in.InvocationType)

	var payload wirePayload
	require.NoError(t, json.Unmarshal(client.in.Payload, &payload))
	assert.Equal(t, "222222222222", payload.Account)
	assert.Equal(t, "Parameter Store Change", payload.DetailType)
	assert.Equal(t, "Delete", payload.Detail["operation"])
}

func TestLambdaPublisher_Publish_PropagatesInvokeError(t *testing.T) {
	client := &fakeLambdaAPI{err: assert.AnError}
	p := NewLambdaPublisher(client, "fleet-scheduler-main", zap.NewNop())

	err := p.Publish(context.Background(), NewAccountDeleteEvent("222222222222"))
	assert.Error(t, err)
}

func TestNewAccountDeleteEvent_AssignsUniqueEventID(t *testing.T) {
	a := NewAccountDeleteEvent("111")
	b := NewAccountDeleteEvent("111")
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.Equal(t, OperationDelete, a.Operation)
}

func TestNoopPublisher_NeverErrors(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), NewAccountDeleteEvent("111")))
}
