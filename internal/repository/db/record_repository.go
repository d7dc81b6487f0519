package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zzenonn/zdeliver/internal/domain"
)

var ErrRecordNotFound = errors.New("delivery record not found")

// DynamoDBAPI is the subset of the DynamoDB client used by RecordRepository
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// RecordRepository manages DynamoDB interactions for DeliveryRecord.
type RecordRepository struct {
	client    DynamoDBAPI
	tableName string
}

// NewRecordRepository initializes a new RecordRepository.
func NewRecordRepository(client DynamoDBAPI, tableName string) *RecordRepository {
	return &RecordRepository{
		client:    client,
		tableName: tableName,
	}
}

// CreateRecord stores a delivery record, replacing one with the same key.
func (repo *RecordRepository) CreateRecord(ctx context.Context, record domain.DeliveryRecord) (domain.DeliveryRecord, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("failed to marshal delivery record: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(repo.tableName),
		Item:      item,
	}

	if _, err := repo.client.PutItem(ctx, input); err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("failed to create delivery record: %w", err)
	}

	return record, nil
}

// GetRecord retrieves one delivery of a product.
func (repo *RecordRepository) GetRecord(ctx context.Context, productName, id string) (domain.DeliveryRecord, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(repo.tableName),
		Key: map[string]types.AttributeValue{
			"product_name": &types.AttributeValueMemberS{Value: productName},
			"id":           &types.AttributeValueMemberS{Value: id},
		},
	}

	result, err := repo.client.GetItem(ctx, input)
	if err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("failed to get delivery record: %w", err)
	}

	if result.Item == nil {
		return domain.DeliveryRecord{}, ErrRecordNotFound
	}

	var record domain.DeliveryRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("failed to unmarshal delivery record: %w", err)
	}

	return record, nil
}

// ListRecordsByProduct retrieves every delivery of a product.
func (repo *RecordRepository) ListRecordsByProduct(ctx context.Context, productName string) ([]domain.DeliveryRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(repo.tableName),
		KeyConditionExpression: aws.String("#product_name = :product_name"),
		ExpressionAttributeNames: map[string]string{
			"#product_name": "product_name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":product_name": &types.AttributeValueMemberS{Value: productName},
		},
	}

	var records []domain.DeliveryRecord
	for {
		result, err := repo.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query delivery records: %w", err)
		}

		for _, item := range result.Items {
			var record domain.DeliveryRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal delivery record: %w", err)
			}
			records = append(records, record)
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return records, nil
}
