package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"kingchat-backend/internal/database"
	"kingchat-backend/internal/model"
)

var (
	ErrNotFound = errors.New("auth repository: not found")
	ErrConflict = errors.New("auth repository: already exists")
)

type Repository interface {
	CreateOperator(ctx context.Context, operator model.OperatorItem) error
	GetOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error)
	ListOperators(ctx context.Context) ([]model.OperatorItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) Repository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) CreateOperator(ctx context.Context, operator model.OperatorItem) error {
	err := r.db.Client.PutItemIfNotExists(ctx, model.OperatorsTable, operator, "pk")
	if database.IsConditionFailed(err) {
		return ErrConflict
	}
	return err
}

func (r *DynamoRepository) GetOperatorByEmail(ctx context.Context, email string) (model.OperatorItem, error) {
	var operator model.OperatorItem
	err := r.db.Client.GetItem(
		ctx,
		model.OperatorsTable,
		map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: model.OperatorPK(email)},
		},
		&operator,
	)
	if err != nil {
		if isNotFound(err) {
			return model.OperatorItem{}, ErrNotFound
		}
		return model.OperatorItem{}, err
	}
	return operator, nil
}

func (r *DynamoRepository) ListOperators(ctx context.Context) ([]model.OperatorItem, error) {
	items, err := r.db.Client.ScanAll(ctx, model.OperatorsTable)
	if err != nil {
		return nil, err
	}

	operators := make([]model.OperatorItem, 0, len(items))
	for _, item := range items {
		var operator model.OperatorItem
		if err := attributevalue.UnmarshalMap(item, &operator); err != nil {
			return nil, err
		}
		operators = append(operators, operator)
	}
	return operators, nil
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "item not found")
}
