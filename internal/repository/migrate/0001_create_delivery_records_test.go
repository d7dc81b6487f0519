package migrate

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeTableAPI struct {
	created *dynamodb.CreateTableInput
	deleted *dynamodb.DeleteTableInput
}

func (f *fakeTableAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.created = in
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeTableAPI) DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	f.deleted = in
	return &dynamodb.DeleteTableOutput{}, nil
}

func (f *fakeTableAPI) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   in.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func TestCreateDeliveryRecordTable(t *testing.T) {
	fake := &fakeTableAPI{}
	m := &CreateDeliveryRecordTable{Table: "espa_deliveries"}

	if err := m.Up(context.Background(), fake); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if got := aws.ToString(fake.created.TableName); got != "espa_deliveries" {
		t.Errorf("created table %q", got)
	}
	keys := map[string]types.KeyType{}
	for _, k := range fake.created.KeySchema {
		keys[aws.ToString(k.AttributeName)] = k.KeyType
	}
	if keys["product_name"] != types.KeyTypeHash || keys["id"] != types.KeyTypeRange {
		t.Errorf("key schema = %v", keys)
	}

	if err := m.Down(context.Background(), fake); err != nil {
		t.Fatalf("Down() error = %v", err)
	}
	if got := aws.ToString(fake.deleted.TableName); got != "espa_deliveries" {
		t.Errorf("deleted table %q", got)
	}
}

func TestCreateDeliveryRecordTable_DefaultName(t *testing.T) {
	m := &CreateDeliveryRecordTable{}
	if m.TableName() != DeliveryRecordTableName {
		t.Errorf("TableName() = %q", m.TableName())
	}
	if m.Version() != DeliveryRecordVersion {
		t.Errorf("Version() = %q", m.Version())
	}
}
