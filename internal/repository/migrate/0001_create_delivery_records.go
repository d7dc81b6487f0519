package migrate

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DeliveryRecordTableName = "delivery_records"
	DeliveryRecordVersion   = "20250901000000_delivery_record_table"
)

// TableAPI is the subset of the DynamoDB client used by migrations
type TableAPI interface {
	dynamodb.DescribeTableAPIClient
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
}

type CreateDeliveryRecordTable struct {
	// Table overrides DeliveryRecordTableName.
	Table string
	// WaitTimeout bounds how long Up waits for the table to become active.
	WaitTimeout time.Duration
}

func (m *CreateDeliveryRecordTable) Version() string {
	return DeliveryRecordVersion
}

func (m *CreateDeliveryRecordTable) TableName() string {
	if m.Table == "" {
		return DeliveryRecordTableName
	}
	return m.Table
}

func (m *CreateDeliveryRecordTable) Up(ctx context.Context, client TableAPI) error {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("product_name"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("product_name"),
				KeyType:       types.KeyTypeHash, // Partition Key
			},
			{
				AttributeName: aws.String("id"),
				KeyType:       types.KeyTypeRange, // Sort Key
			},
		},
		TableName:   aws.String(m.TableName()),
		BillingMode: types.BillingModePayPerRequest,
		Tags: []types.Tag{
			{
				Key:   aws.String("Purpose"),
				Value: aws.String("DeliveryRecords"),
			},
		},
	}

	if _, err := client.CreateTable(ctx, input); err != nil {
		return err
	}

	timeout := m.WaitTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	// Wait for table to become active
	waiter := dynamodb.NewTableExistsWaiter(client)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(m.TableName()),
	}, timeout)
}

func (m *CreateDeliveryRecordTable) Down(ctx context.Context, client TableAPI) error {
	input := &dynamodb.DeleteTableInput{
		TableName: aws.String(m.TableName()),
	}

	_, err := client.DeleteTable(ctx, input)
	return err
}
