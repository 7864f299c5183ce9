package deconfigure

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

// LambdaAPI is the narrow seam onto the Lambda client this publisher
// needs, scoped to the one call actually made.
type LambdaAPI interface {
	Invoke(context.Context, *lambda.InvokeInput, ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// wirePayload is the JSON shape the self-invoke is made with; the
// target function is fixed per publisher and not part of the payload,
// so this stays unexported and Publish builds it per event.
type wirePayload struct {
	Account    string            `json:"account"`
	DetailType string            `json:"detail-type"`
	Detail     map[string]string `json:"detail"`
}

// LambdaPublisher invokes the hosting Lambda function asynchronously
// (InvocationType Event) to remove an account from the active
// configuration, wired as a bound outbound channel rather than a
// direct call from the engine.
type LambdaPublisher struct {
	client       LambdaAPI
	functionName string
	logger       *zap.Logger
}

func NewLambdaPublisher(client LambdaAPI, functionName string, logger *zap.Logger) *LambdaPublisher {
	return &LambdaPublisher{client: client, functionName: functionName, logger: logger}
}

func (p *LambdaPublisher) Publish(ctx context.Context, event AccountEvent) error {
	payload, err := json.Marshal(wirePayload{
		Account:    event.Account,
		DetailType: event.DetailType,
		Detail:     map[string]string{"operation": string(event.Operation)},
	})
	if err != nil {
		return fmt.Errorf("marshaling deconfigure payload: %w", err)
	}

	_, err = p.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   &p.functionName,
		InvocationType: types.InvocationTypeEvent,
		LogType:        types.LogTypeNone,
		Payload:        payload,
	})
	if err != nil {
		p.logger.Error("deconfigure: failed to invoke hosting function",
			zap.String("account", event.Account), zap.Error(err))
		return err
	}
	p.logger.Info("deconfigure: removing account from scheduling configuration",
		zap.String("account", event.Account), zap.String("event_id", event.EventID))
	return nil
}
