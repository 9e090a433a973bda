package model

import "fmt"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type DeliveryStatus string

const (
	DeliveryStatusAccepted DeliveryStatus = "accepted"
	DeliveryStatusFailed   DeliveryStatus = "failed"
)

// ConversationPK keys the unique thread between one account and one
// LINE customer.
func ConversationPK(accountID, customerID string) string {
	return fmt.Sprintf("%s#%s", accountID, customerID)
}

// MessagePK keys a message by conversation and zero-padded sequence so a
// range query over the conversation returns ledger order.
func MessagePK(conversationPK string, seq int64) string {
	return fmt.Sprintf("%s#%012d", conversationPK, seq)
}

type ConversationItem struct {
	PK            string `dynamodbav:"pk" json:"id"`
	AccountID     string `dynamodbav:"accountId" json:"accountId"`
	CustomerID    string `dynamodbav:"customerId" json:"customerId"`
	DisplayName   string `dynamodbav:"displayName,omitempty" json:"displayName,omitempty"`
	Notes         string `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	LastSeq       int64  `dynamodbav:"lastSeq" json:"lastSeq"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt     string `dynamodbav:"updatedAt" json:"updatedAt"`
	LastMessageAt string `dynamodbav:"lastMessageAt" json:"lastMessageAt"`
}

// MessageItem is immutable once appended. Seq is strictly increasing and
// gapless within a conversation, starting at 1.
type MessageItem struct {
	PK             string         `dynamodbav:"pk" json:"id"`
	ConversationPK string         `dynamodbav:"conversationPk" json:"conversationId"`
	AccountID      string         `dynamodbav:"accountId" json:"accountId"`
	CustomerID     string         `dynamodbav:"customerId" json:"customerId"`
	Seq            int64          `dynamodbav:"seq" json:"seq"`
	Direction      Direction      `dynamodbav:"direction" json:"direction"`
	SenderLabel    string         `dynamodbav:"senderLabel" json:"senderLabel"`
	Body           string         `dynamodbav:"body" json:"body"`
	ContentType    string         `dynamodbav:"contentType" json:"contentType"`
	DeliveryStatus DeliveryStatus `dynamodbav:"deliveryStatus,omitempty" json:"deliveryStatus,omitempty"`
	CreatedAt      string         `dynamodbav:"createdAt" json:"createdAt"`
}
