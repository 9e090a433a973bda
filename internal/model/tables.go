package model

import "fmt"

const (
	AccountsTable      = "Accounts"
	OperatorsTable     = "Operators"
	ConversationsTable = "Conversations"
	MessagesTable      = "Messages"
)

// AccountItem is one LINE Official Account integration. Identity is
// immutable once created; deactivation stops webhook and push traffic
// without deleting history.
type AccountItem struct {
	AccountID     string `dynamodbav:"accountId" json:"accountId"`
	Name          string `dynamodbav:"name" json:"name"`
	ChannelSecret string `dynamodbav:"channelSecret" json:"-"`
	AccessToken   string `dynamodbav:"accessToken" json:"-"`
	IsActive      bool   `dynamodbav:"isActive" json:"isActive"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// OperatorItem is one console user. Keyed by email so login is a single
// read; the separate OperatorID is what tokens and audit labels carry.
type OperatorItem struct {
	PK           string `dynamodbav:"pk" json:"-"`
	OperatorID   string `dynamodbav:"operatorId" json:"operatorId"`
	Email        string `dynamodbav:"email" json:"email"`
	Name         string `dynamodbav:"name" json:"name"`
	Role         string `dynamodbav:"role" json:"role"`
	PasswordHash string `dynamodbav:"passwordHash" json:"-"`
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
}

const (
	OperatorRoleOperator = "operator"
	OperatorRoleAdmin    = "admin"
)

func OperatorPK(email string) string {
	return fmt.Sprintf("operator#%s", email)
}
