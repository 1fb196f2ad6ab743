package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/testharness/orchestrator/framework/helpers"
	"github.com/testharness/orchestrator/message"
)

const (
	tablePartitionKey = "queue"
	tableSortKey      = "seq"
	tableMessageAttr  = "message"

	dynamoPollInterval = 100 * time.Millisecond
)

// DynamoDBEndpoint uses a DynamoDB table as a queue. The table must have a string partition
// key "queue" and a string sort key "seq". Each sent message becomes an item whose sort key
// orders it after earlier ones; Receive polls for the first item in the queue and claims it
// with a conditional delete.
type DynamoDBEndpoint struct {
	name     string
	table    string
	queue    string
	dynamodb *dynamodb.DynamoDB
	counter  atomic.Uint64
}

// NewDynamoDBEndpoint creates an endpoint for a queue within a table.
func NewDynamoDBEndpoint(name string, client *dynamodb.DynamoDB, table, queue string) *DynamoDBEndpoint {
	if queue == "" {
		queue = name
	}
	return &DynamoDBEndpoint{name: name, table: table, queue: queue, dynamodb: client}
}

// NewDynamoDBClient creates a client. endpointURL may be empty to use the AWS default for
// the region, or point at a local DynamoDB.
func NewDynamoDBClient(region, endpointURL string) (*dynamodb.DynamoDB, error) {
	config := &aws.Config{Region: aws.String(region)}
	if endpointURL != "" {
		config.Endpoint = aws.String(endpointURL)
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, err
	}
	return dynamodb.New(sess), nil
}

// CreateTable creates the queue table, for local setups.
func (e *DynamoDBEndpoint) CreateTable(ctx context.Context) error {
	_, err := e.dynamodb.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(tablePartitionKey),
				AttributeType: aws.String("S"),
			},
			{
				AttributeName: aws.String(tableSortKey),
				AttributeType: aws.String("S"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(tablePartitionKey),
				KeyType:       aws.String("HASH"),
			},
			{
				AttributeName: aws.String(tableSortKey),
				KeyType:       aws.String("RANGE"),
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
		TableName: aws.String(e.table),
	})
	return err
}

func (e *DynamoDBEndpoint) Send(ctx context.Context, msg message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	seq := fmt.Sprintf("%020d-%06d", time.Now().UnixNano(), e.counter.Add(1)%1000000)
	_, err = e.dynamodb.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(e.table),
		Item: map[string]*dynamodb.AttributeValue{
			tablePartitionKey: {S: aws.String(e.queue)},
			tableSortKey:      {S: aws.String(seq)},
			tableMessageAttr:  {S: aws.String(string(data))},
		},
	})
	return err
}

func (e *DynamoDBEndpoint) Receive(ctx context.Context, timeout time.Duration) (message.Message, error) {
	msg, ok, err := helpers.PollUntil(ctx, timeout, dynamoPollInterval, func() (message.Message, bool, error) {
		return e.tryClaim(ctx)
	})
	if err != nil {
		return message.Message{}, err
	}
	if !ok {
		return message.Message{}, timeoutError("DynamoDB endpoint "+e.name, timeout)
	}
	return msg, nil
}

func (e *DynamoDBEndpoint) tryClaim(ctx context.Context) (message.Message, bool, error) {
	query := &dynamodb.QueryInput{
		TableName:      aws.String(e.table),
		ConsistentRead: aws.Bool(true),
		Limit:          aws.Int64(1),
		KeyConditions: map[string]*dynamodb.Condition{
			tablePartitionKey: {
				ComparisonOperator: aws.String(dynamodb.ComparisonOperatorEq),
				AttributeValueList: []*dynamodb.AttributeValue{
					{S: aws.String(e.queue)},
				},
			},
		},
	}
	response, err := e.dynamodb.QueryWithContext(ctx, query)
	if err != nil {
		return message.Message{}, false, err
	}
	if len(response.Items) == 0 {
		return message.Message{}, false, nil
	}
	item := response.Items[0]
	_, err = e.dynamodb.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(e.table),
		Key: map[string]*dynamodb.AttributeValue{
			tablePartitionKey: item[tablePartitionKey],
			tableSortKey:      item[tableSortKey],
		},
		ConditionExpression: aws.String("attribute_exists(" + tableSortKey + ")"),
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return message.Message{}, false, nil // another receiver got it first
		}
		return message.Message{}, false, err
	}
	attr := item[tableMessageAttr]
	if attr == nil || attr.S == nil {
		return message.Message{}, false, errors.New("queue item had no message attribute")
	}
	msg, err := decodeMessage([]byte(*attr.S))
	return msg, err == nil, err
}

func (e *DynamoDBEndpoint) Close() error { return nil }
