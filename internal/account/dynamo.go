package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI defines the DynamoDB operations used by DynamoStore.
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore reads the users and cloud_service_providers tables. Table names are
// prefixed with the deployment stage when one is set.
type DynamoStore struct {
	client    DynamoAPI
	users     string
	providers string
}

// NewDynamoStore creates a store for stage.
func NewDynamoStore(client DynamoAPI, stage string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		users:     tableName(stage, "users"),
		providers: tableName(stage, "cloud_service_providers"),
	}
}

func tableName(stage, name string) string {
	if stage == "" {
		return name
	}
	return stage + "_" + name
}

func str(v string) ddbtypes.AttributeValue {
	return &ddbtypes.AttributeValueMemberS{Value: v}
}

func getString(item map[string]ddbtypes.AttributeValue, key string) string {
	if v, ok := item[key].(*ddbtypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getBool(item map[string]ddbtypes.AttributeValue, key string) bool {
	if v, ok := item[key].(*ddbtypes.AttributeValueMemberBOOL); ok {
		return v.Value
	}
	return false
}

// OwnerOf queries the users table by id (the principal) and returns rootUserId.
func (s *DynamoStore) OwnerOf(ctx context.Context, principal string) (string, error) {
	output, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.users),
		KeyConditionExpression:    aws.String("#id = :id"),
		ExpressionAttributeNames:  map[string]string{"#id": "id"},
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":id": str(principal)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("query users: %w", err)
	}
	if len(output.Items) == 0 {
		return "", ErrNotFound
	}

	ownerID := getString(output.Items[0], "rootUserId")
	if ownerID == "" {
		return "", ErrNotFound
	}
	return ownerID, nil
}

func (s *DynamoStore) Binding(ctx context.Context, ownerID, accountID string) (*Binding, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.providers),
		Key: map[string]ddbtypes.AttributeValue{
			"userId":    str(ownerID),
			"accountId": str(accountID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get cloud service provider: %w", err)
	}
	if len(output.Item) == 0 {
		return nil, ErrNotFound
	}

	return &Binding{
		OwnerID:           getString(output.Item, "userId"),
		AccountID:         getString(output.Item, "accountId"),
		RoleARN:           getString(output.Item, "roleArn"),
		ExternalID:        getString(output.Item, "externalId"),
		IsResourcesTagged: getBool(output.Item, "isResourcesTagged"),
	}, nil
}

func (s *DynamoStore) PutOwner(ctx context.Context, principal, ownerID string) error {
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.users),
		Item: map[string]ddbtypes.AttributeValue{
			"id":         str(principal),
			"rootUserId": str(ownerID),
		},
	})
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *DynamoStore) PutBinding(ctx context.Context, b Binding) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.providers),
		Item: map[string]ddbtypes.AttributeValue{
			"userId":            str(b.OwnerID),
			"accountId":         str(b.AccountID),
			"roleArn":           str(b.RoleARN),
			"externalId":        str(b.ExternalID),
			"isResourcesTagged": &ddbtypes.AttributeValueMemberBOOL{Value: b.IsResourcesTagged},
		},
	})
	if err != nil {
		return fmt.Errorf("put cloud service provider: %w", err)
	}
	return nil
}

// SetTagged updates the flag only when the binding exists; a failed condition
// is reported as ErrNotFound.
func (s *DynamoStore) SetTagged(ctx context.Context, ownerID, accountID string, tagged bool) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.providers),
		Key: map[string]ddbtypes.AttributeValue{
			"userId":    str(ownerID),
			"accountId": str(accountID),
		},
		UpdateExpression:          aws.String("set isResourcesTagged = :r"),
		ConditionExpression:       aws.String("attribute_exists(accountId)"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{":r": &ddbtypes.AttributeValueMemberBOOL{Value: tagged}},
		ReturnValues:              ddbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update cloud service provider: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error { return nil }

var _ Store = (*DynamoStore)(nil)
