// ABOUTME: DynamoDB-backed ConversationStore for deployments that keep conversation state in AWS
// ABOUTME: Stores the JSON-encoded ConversationState under PK=CONV#<id>, SK=STATE

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dynamoStateSK = "STATE"

// dynamodbAPI is the subset of the DynamoDB client used by DynamoConversationStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoConversationStore implements ConversationStore on a single DynamoDB table.
type DynamoConversationStore struct {
	api       dynamodbAPI
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

// NewDynamoConversationStore wraps a DynamoDB client. api is usually
// *dynamodb.Client from dynamodb.NewFromConfig.
func NewDynamoConversationStore(api dynamodbAPI, tableName string, logger *slog.Logger) (*DynamoConversationStore, error) {
	if api == nil {
		return nil, errors.New("dynamodb store: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("dynamodb store: table name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DynamoConversationStore{
		api:       api,
		tableName: tableName,
		logger:    logger.With("component", "dynamodb-store"),
		now:       time.Now,
	}, nil
}

func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// GetConversation loads a conversation. Returns ErrNotFound if no item exists.
func (d *DynamoConversationStore) GetConversation(ctx context.Context, id string) (*ConversationState, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(id)},
			"SK": &types.AttributeValueMemberS{Value: dynamoStateSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb store: get conversation: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	attr, ok := out.Item["state"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("dynamodb store: conversation %s has no state attribute", id)
	}
	var state ConversationState
	if err := json.Unmarshal([]byte(attr.Value), &state); err != nil {
		return nil, fmt.Errorf("dynamodb store: decode conversation %s: %w", id, err)
	}
	if state.CustomerMemory == nil {
		state.CustomerMemory = map[string]string{}
	}
	return &state, nil
}

// PutConversation overwrites the conversation item.
func (d *DynamoConversationStore) PutConversation(ctx context.Context, state *ConversationState) error {
	if state.ConversationID == "" {
		return errors.New("dynamodb store: conversation_id is required")
	}
	state.UpdatedAt = d.now().UTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("dynamodb store: encode conversation: %w", err)
	}

	_, err = d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: convPK(state.ConversationID)},
			"SK":         &types.AttributeValueMemberS{Value: dynamoStateSK},
			"state":      &types.AttributeValueMemberS{Value: string(raw)},
			"updated_at": &types.AttributeValueMemberS{Value: state.UpdatedAt.Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb store: put conversation: %w", err)
	}
	d.logger.Debug("saved conversation", "conversation_id", state.ConversationID)
	return nil
}

var _ ConversationStore = (*DynamoConversationStore)(nil)
