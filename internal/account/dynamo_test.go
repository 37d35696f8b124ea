package account

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDynamoClient struct {
	QueryFunc      func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItemFunc    func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItemFunc    func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItemFunc func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

func (m *mockDynamoClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return m.QueryFunc(ctx, params, optFns...)
}

func (m *mockDynamoClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return m.GetItemFunc(ctx, params, optFns...)
}

func (m *mockDynamoClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return m.PutItemFunc(ctx, params, optFns...)
}

func (m *mockDynamoClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return m.UpdateItemFunc(ctx, params, optFns...)
}

func TestDynamoStore_Resolve(t *testing.T) {
	var queried, got string
	client := &mockDynamoClient{
		QueryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			queried = aws.ToString(params.TableName)
			assert.Equal(t, &ddbtypes.AttributeValueMemberS{Value: "alice@example.com"}, params.ExpressionAttributeValues[":id"])
			return &dynamodb.QueryOutput{Items: []map[string]ddbtypes.AttributeValue{
				{"id": str("alice@example.com"), "rootUserId": str("owner-1")},
			}}, nil
		},
		GetItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			got = aws.ToString(params.TableName)
			assert.Equal(t, str("owner-1"), params.Key["userId"])
			return &dynamodb.GetItemOutput{Item: map[string]ddbtypes.AttributeValue{
				"userId":            str("owner-1"),
				"accountId":         str("123456789012"),
				"roleArn":           str(testBinding.RoleARN),
				"externalId":        str("ext-1"),
				"isResourcesTagged": &ddbtypes.AttributeValueMemberBOOL{Value: true},
			}}, nil
		},
	}

	b, err := Resolve(context.Background(), NewDynamoStore(client, "prod"), "alice@example.com", "123456789012")

	require.NoError(t, err)
	assert.Equal(t, "prod_users", queried)
	assert.Equal(t, "prod_cloud_service_providers", got)
	assert.Equal(t, testBinding.RoleARN, b.RoleARN)
	assert.True(t, b.IsResourcesTagged)
}

func TestDynamoStore_NotFound(t *testing.T) {
	client := &mockDynamoClient{
		QueryFunc: func(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
		GetItemFunc: func(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{}, nil
		},
		UpdateItemFunc: func(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		},
	}
	store := NewDynamoStore(client, "")

	_, err := store.OwnerOf(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Binding(context.Background(), "owner-1", "1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.SetTagged(context.Background(), "owner-1", "1", true), ErrNotFound)
}

func TestDynamoStore_SetTagged(t *testing.T) {
	var got *dynamodb.UpdateItemInput
	client := &mockDynamoClient{
		UpdateItemFunc: func(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
			got = params
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}

	require.NoError(t, NewDynamoStore(client, "dev").SetTagged(context.Background(), "owner-1", "123456789012", true))

	assert.Equal(t, "dev_cloud_service_providers", aws.ToString(got.TableName))
	assert.Equal(t, "set isResourcesTagged = :r", aws.ToString(got.UpdateExpression))
	assert.Equal(t, "attribute_exists(accountId)", aws.ToString(got.ConditionExpression))
	assert.Equal(t, &ddbtypes.AttributeValueMemberBOOL{Value: true}, got.ExpressionAttributeValues[":r"])
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "users", tableName("", "users"))
	assert.Equal(t, "staging_users", tableName("staging", "users"))
}
