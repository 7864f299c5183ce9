package statestore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// DynamoDBAPI is the subset of the DynamoDB client this backend needs,
// narrowed to only the operations actually called — a seam for mocking
// in tests without depending on the full SDK client.
type DynamoDBAPI interface {
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

const (
	attrScope    = "ScopeKey"   // partition key: service|account|region
	attrInstance = "InstanceID" // sort key
	attrState    = "State"
)

// DynamoDBBackend is the production Backend: the reference deployment
// uses a hosted key-value table. It keys each item by a partition key
// of service|account|region and a sort key of the instance id, so Scan
// is a single Query per (account, region) scope and Save is one
// BatchWriteItem call per 25 items.
type DynamoDBBackend struct {
	client DynamoDBAPI
	table  string
}

func NewDynamoDBBackend(client DynamoDBAPI, table string) *DynamoDBBackend {
	return &DynamoDBBackend{client: client, table: table}
}

func scopeKey(service, account, region string) string {
	return fmt.Sprintf("%s|%s|%s", service, account, region)
}

func (b *DynamoDBBackend) Scan(ctx context.Context, service, account, region string) ([]Item, error) {
	keyCond := expression.Key(attrScope).Equal(expression.Value(scopeKey(service, account, region)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("building state-store query: %w", err)
	}

	var items []Item
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(b.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	paginator := dynamodb.NewQueryPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying state store: %w", err)
		}
		for _, av := range page.Items {
			it, err := itemFromAttributeValues(service, account, region, av)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
	}
	return items, nil
}

func itemFromAttributeValues(service, account, region string, av map[string]types.AttributeValue) (Item, error) {
	instAttr, ok := av[attrInstance].(*types.AttributeValueMemberS)
	if !ok {
		return Item{}, fmt.Errorf("state store item missing %s", attrInstance)
	}
	stateAttr, ok := av[attrState].(*types.AttributeValueMemberS)
	if !ok {
		return Item{}, fmt.Errorf("state store item missing %s", attrState)
	}
	return Item{
		Service:  service,
		Account:  account,
		Region:   region,
		Instance: instAttr.Value,
		State:    model.DesiredState(stateAttr.Value),
	}, nil
}

// BatchWrite persists puts/deletes in DynamoDB 25-item batches, sent in
// order. A failed chunk stops the write and returns its error; chunks
// already sent stay written, so the write is not atomic across chunks.
// The caller (the state store's Save, wrapped in retry) treats an error
// after retries as fatal for this scope.
func (b *DynamoDBBackend) BatchWrite(ctx context.Context, puts []Item, deletes []Item) error {
	var reqs []types.WriteRequest
	for _, it := range puts {
		reqs = append(reqs, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: map[string]types.AttributeValue{
				attrScope:    &types.AttributeValueMemberS{Value: scopeKey(it.Service, it.Account, it.Region)},
				attrInstance: &types.AttributeValueMemberS{Value: it.Instance},
				attrState:    &types.AttributeValueMemberS{Value: string(it.State)},
			}},
		})
	}
	for _, it := range deletes {
		reqs = append(reqs, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				attrScope:    &types.AttributeValueMemberS{Value: scopeKey(it.Service, it.Account, it.Region)},
				attrInstance: &types.AttributeValueMemberS{Value: it.Instance},
			}},
		})
	}

	const chunkSize = 25
	for i := 0; i < len(reqs); i += chunkSize {
		end := min(i+chunkSize, len(reqs))
		chunk := reqs[i:end]
		_, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{b.table: chunk},
		})
		if err != nil {
			return fmt.Errorf("batch writing state store: %w", err)
		}
	}
	return nil
}
