package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"kingchat-backend/internal/line"
	"kingchat-backend/internal/model"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

type ErrorCode string

const (
	ErrorCodeValidation       ErrorCode = "validation_error"
	ErrorCodeUnknownAccount   ErrorCode = "unknown_account"
	ErrorCodeInactiveAccount  ErrorCode = "inactive_account"
	ErrorCodeDeliveryRejected ErrorCode = "delivery_rejected"
	ErrorCodeDeliveryTimeout  ErrorCode = "delivery_timeout"
	ErrorCodeDeliveryFailed   ErrorCode = "delivery_failed"
	ErrorCodeInternal         ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AccountResolver yields active account credentials for outbound sends.
type AccountResolver interface {
	ResolveActive(ctx context.Context, accountID string) (model.AccountItem, error)
}

// ConversationLedger is the slice of the conversation store the outbound
// path needs.
type ConversationLedger interface {
	GetOrCreate(ctx context.Context, accountID, customerID string) (model.ConversationItem, bool, error)
	Append(ctx context.Context, conversationPK string, draft store.Draft) (model.MessageItem, error)
}

// Pusher delivers one text message to the platform.
type Pusher interface {
	PushText(ctx context.Context, accessToken, to, text string) error
}

// Identity names the operator a reply is sent as. The customer sees the
// account; the ledger records who actually typed it.
type Identity struct {
	OperatorID string `json:"operatorId"`
	Name       string `json:"name"`
}

// Service is the outbound path: operator replies go to the platform
// first and into the ledger only after the platform confirmed acceptance.
// A rejected or timed-out push leaves the conversation untouched, so the
// ledger never shows a reply the customer can not have received.
type Service struct {
	registry    AccountResolver
	store       ConversationLedger
	pusher      Pusher
	pushTimeout time.Duration
}

func New(registry AccountResolver, store ConversationLedger, pusher Pusher) *Service {
	return &Service{
		registry:    registry,
		store:       store,
		pusher:      pusher,
		pushTimeout: line.DefaultPushTimeout,
	}
}

// SendParams describes one operator reply.
type SendParams struct {
	AccountID  string
	CustomerID string
	Operator   Identity
	Text       string
}

// Send pushes the reply and, once the platform has accepted it, appends
// the confirmed message to the conversation.
func (s *Service) Send(ctx context.Context, params SendParams) (model.MessageItem, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "message text cannot be empty", nil)
	}
	if strings.TrimSpace(params.CustomerID) == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "customerId is required", nil)
	}

	account, err := s.registry.ResolveActive(ctx, params.AccountID)
	if err != nil {
		var regErr *registry.Error
		if errors.As(err, &regErr) {
			switch regErr.Code {
			case registry.ErrorCodeUnknownAccount:
				return model.MessageItem{}, newError(ErrorCodeUnknownAccount, "unknown account", err)
			case registry.ErrorCodeInactiveAccount:
				return model.MessageItem{}, newError(ErrorCodeInactiveAccount, "account is inactive", err)
			}
		}
		return model.MessageItem{}, newError(ErrorCodeInternal, "failed to resolve account", err)
	}

	conversation, _, err := s.store.GetOrCreate(ctx, account.AccountID, params.CustomerID)
	if err != nil {
		return model.MessageItem{}, newError(ErrorCodeInternal, "failed to open conversation", err)
	}

	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	if err := s.pusher.PushText(pushCtx, account.AccessToken, params.CustomerID, text); err != nil {
		switch {
		case errors.Is(err, line.ErrRejected):
			incFailed("rejected")
			return model.MessageItem{}, newError(ErrorCodeDeliveryRejected, "platform rejected the message", err)
		case errors.Is(err, line.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
			incFailed("timeout")
			return model.MessageItem{}, newError(ErrorCodeDeliveryTimeout, "delivery timed out before confirmation", err)
		default:
			incFailed("error")
			return model.MessageItem{}, newError(ErrorCodeDeliveryFailed, "failed to deliver message", err)
		}
	}

	senderLabel := params.Operator.Name
	if senderLabel == "" {
		senderLabel = params.Operator.OperatorID
	}

	message, err := s.store.Append(ctx, conversation.PK, store.Draft{
		Direction:      model.DirectionOutbound,
		SenderLabel:    senderLabel,
		Body:           text,
		ContentType:    "text",
		DeliveryStatus: model.DeliveryStatusAccepted,
	})
	if err != nil {
		// The customer has the message but the ledger append failed. Do
		// not retry the push; surface the storage error.
		return model.MessageItem{}, newError(ErrorCodeInternal, "message delivered but failed to record", err)
	}

	incDelivered()
	return message, nil
}
