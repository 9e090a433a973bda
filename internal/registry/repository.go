package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"kingchat-backend/internal/database"
	"kingchat-backend/internal/model"
)

var ErrNotFound = errors.New("account repository: not found")

type Repository interface {
	GetAccount(ctx context.Context, accountID string) (model.AccountItem, error)
	PutAccount(ctx context.Context, account model.AccountItem) error
	CreateAccount(ctx context.Context, account model.AccountItem) error
	DeleteAccount(ctx context.Context, accountID string) error
	ListAccounts(ctx context.Context) ([]model.AccountItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetAccount(ctx context.Context, accountID string) (model.AccountItem, error) {
	var account model.AccountItem
	err := r.db.Client.GetItem(
		ctx,
		model.AccountsTable,
		map[string]types.AttributeValue{
			"accountId": &types.AttributeValueMemberS{Value: accountID},
		},
		&account,
	)
	if err != nil {
		if isNotFound(err) {
			return model.AccountItem{}, ErrNotFound
		}
		return model.AccountItem{}, err
	}
	return account, nil
}

func (r *DynamoRepository) PutAccount(ctx context.Context, account model.AccountItem) error {
	return r.db.Client.PutItem(ctx, model.AccountsTable, account)
}

func (r *DynamoRepository) CreateAccount(ctx context.Context, account model.AccountItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.AccountsTable, account, "accountId")
	if database.IsConditionFailed(err) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) DeleteAccount(ctx context.Context, accountID string) error {
	return r.db.Client.DeleteItem(
		ctx,
		model.AccountsTable,
		map[string]types.AttributeValue{
			"accountId": &types.AttributeValueMemberS{Value: accountID},
		},
	)
}

func (r *DynamoRepository) ListAccounts(ctx context.Context) ([]model.AccountItem, error) {
	items, err := r.db.Client.ScanAll(ctx, model.AccountsTable)
	if err != nil {
		return nil, err
	}

	accounts := make([]model.AccountItem, 0, len(items))
	for _, item := range items {
		var account model.AccountItem
		if err := attributevalue.UnmarshalMap(item, &account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
