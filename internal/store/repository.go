package store

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"kingchat-backend/internal/database"
	"kingchat-backend/internal/model"
)

var (
	ErrNotFound = errors.New("conversation repository: not found")
	ErrConflict = errors.New("conversation repository: already exists")
	// ErrStaleSeq means another writer bumped the sequence first; the
	// caller re-reads and retries.
	ErrStaleSeq = errors.New("conversation repository: stale sequence")
)

type Repository interface {
	GetConversation(ctx context.Context, pk string) (model.ConversationItem, error)
	CreateConversation(ctx context.Context, conversation model.ConversationItem) error
	BumpConversationSeq(ctx context.Context, pk string, prevSeq, nextSeq int64, lastMessageAt string) error
	UpdateConversationField(ctx context.Context, pk, field, value, updatedAt string) error
	ListConversations(ctx context.Context, accountID string, limit int) ([]model.ConversationItem, error)
	PutMessage(ctx context.Context, message model.MessageItem) error
	ListMessages(ctx context.Context, conversationPK string, limit int, newestFirst bool) ([]model.MessageItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetConversation(ctx context.Context, pk string) (model.ConversationItem, error) {
	var conversation model.ConversationItem
	err := r.db.Client.GetItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		&conversation,
	)
	if err != nil {
		if isNotFound(err) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return conversation, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.ConversationsTable, conversation, "pk")
	if database.IsConditionFailed(err) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) BumpConversationSeq(ctx context.Context, pk string, prevSeq, nextSeq int64, lastMessageAt string) error {
	err := r.db.Client.UpdateItemConditional(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		"SET #lastSeq = :next, #lastMessageAt = :lastMessageAt, #updatedAt = :lastMessageAt",
		"#lastSeq = :prev",
		map[string]types.AttributeValue{
			":next":          &types.AttributeValueMemberN{Value: formatSeq(nextSeq)},
			":prev":          &types.AttributeValueMemberN{Value: formatSeq(prevSeq)},
			":lastMessageAt": &types.AttributeValueMemberS{Value: lastMessageAt},
		},
		map[string]string{
			"#lastSeq":       "lastSeq",
			"#lastMessageAt": "lastMessageAt",
			"#updatedAt":     "updatedAt",
		},
	)
	if database.IsConditionFailed(err) {
		return ErrStaleSeq
	}
	return err
}

func (r *DynamoRepository) UpdateConversationField(ctx context.Context, pk, field, value, updatedAt string) error {
	return r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
		},
		"SET #field = :value, #updatedAt = :updatedAt",
		map[string]types.AttributeValue{
			":value":     &types.AttributeValueMemberS{Value: value},
			":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
		},
		map[string]string{
			"#field":     field,
			"#updatedAt": "updatedAt",
		},
		nil,
	)
}

func (r *DynamoRepository) ListConversations(ctx context.Context, accountID string, limit int) ([]model.ConversationItem, error) {
	var items []map[string]types.AttributeValue
	var err error

	if accountID != "" {
		items, err = r.db.Client.QueryAll(
			ctx,
			model.ConversationsTable,
			aws.String("byAccount"),
			"accountId = :accountId",
			map[string]types.AttributeValue{
				":accountId": &types.AttributeValueMemberS{Value: accountID},
			},
		)
	} else {
		items, err = r.db.Client.ScanAll(ctx, model.ConversationsTable)
	}
	if err != nil {
		return nil, err
	}

	conversations := make([]model.ConversationItem, 0, len(items))
	for _, item := range items {
		var conversation model.ConversationItem
		if err := attributevalue.UnmarshalMap(item, &conversation); err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].LastMessageAt > conversations[j].LastMessageAt
	})

	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}

	return conversations, nil
}

func (r *DynamoRepository) PutMessage(ctx context.Context, message model.MessageItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.MessagesTable, message, "pk")
	if database.IsConditionFailed(err) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) ListMessages(ctx context.Context, conversationPK string, limit int, newestFirst bool) ([]model.MessageItem, error) {
	scanForward := !newestFirst
	var queryLimit *int32
	if limit > 0 {
		l := int32(limit)
		queryLimit = &l
	}

	items, err := r.db.Client.QueryItems(
		ctx,
		model.MessagesTable,
		aws.String("byConversation"),
		"conversationPk = :conversationPk",
		map[string]types.AttributeValue{
			":conversationPk": &types.AttributeValueMemberS{Value: conversationPK},
		},
		nil,
		&scanForward,
		queryLimit,
	)
	if err != nil {
		return nil, err
	}

	messages := make([]model.MessageItem, 0, len(items))
	for _, item := range items {
		var message model.MessageItem
		if err := attributevalue.UnmarshalMap(item, &message); err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func formatSeq(seq int64) string {
	return strconv.FormatInt(seq, 10)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
