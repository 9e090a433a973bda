package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"kingchat-backend/internal/line"
	"kingchat-backend/internal/model"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

type ErrorCode string

const (
	ErrorCodeUnknownAccount       ErrorCode = "unknown_account"
	ErrorCodeInactiveAccount      ErrorCode = "inactive_account"
	ErrorCodeAuthenticationFailed ErrorCode = "authentication_failed"
	ErrorCodeMalformedBody        ErrorCode = "malformed_body"
	ErrorCodeMalformedEvent       ErrorCode = "malformed_event"
	ErrorCodeInternal             ErrorCode = "internal_error"
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

// AccountResolver yields active account credentials for a webhook route.
type AccountResolver interface {
	ResolveActive(ctx context.Context, accountID string) (model.AccountItem, error)
}

// ConversationLedger is the slice of the conversation store the ingress
// path needs.
type ConversationLedger interface {
	GetOrCreate(ctx context.Context, accountID, customerID string) (model.ConversationItem, bool, error)
	Append(ctx context.Context, conversationPK string, draft store.Draft) (model.MessageItem, error)
	Rename(ctx context.Context, conversationPK, displayName string) (model.ConversationItem, error)
}

// ProfileFetcher resolves customer display names. Best effort only.
type ProfileFetcher interface {
	GetProfile(ctx context.Context, accessToken, userID string) (line.Profile, error)
}

const profileTimeout = 5 * time.Second

// EventFailure records one sub-event that could not be processed. Its
// siblings in the same delivery are unaffected.
type EventFailure struct {
	Index   int       `json:"index"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Result summarizes one webhook delivery after per-event processing.
type Result struct {
	Ingested int            `json:"ingested"`
	Ignored  int            `json:"ignored"`
	Failures []EventFailure `json:"failures,omitempty"`
}

// Service is the inbound path: it authenticates webhook deliveries
// against the owning account's channel secret and turns their events into
// conversation appends.
type Service struct {
	registry AccountResolver
	store    ConversationLedger
	profiles ProfileFetcher
}

func New(registry AccountResolver, store ConversationLedger, profiles ProfileFetcher) *Service {
	return &Service{
		registry: registry,
		store:    store,
		profiles: profiles,
	}
}

// Handle processes one webhook delivery for the given account. The whole
// delivery is rejected when the account is unknown or inactive, when the
// signature does not verify, or when the body is not valid JSON. Past
// that point each event stands alone: one malformed event is recorded in
// the result and its siblings are still ingested.
//
// Signature failures are deliberately opaque. The caller learns that
// authentication failed and nothing else.
func (s *Service) Handle(ctx context.Context, accountID string, body []byte, signature string) (Result, error) {
	account, err := s.registry.ResolveActive(ctx, accountID)
	if err != nil {
		var regErr *registry.Error
		if errors.As(err, &regErr) {
			switch regErr.Code {
			case registry.ErrorCodeUnknownAccount:
				incRejected("unknown_account")
				return Result{}, newError(ErrorCodeUnknownAccount, "unknown account", err)
			case registry.ErrorCodeInactiveAccount:
				incRejected("inactive_account")
				return Result{}, newError(ErrorCodeInactiveAccount, "account is inactive", err)
			}
		}
		return Result{}, newError(ErrorCodeInternal, "failed to resolve account", err)
	}

	if !line.ValidateSignature(account.ChannelSecret, body, signature) {
		incRejected("authentication_failed")
		return Result{}, newError(ErrorCodeAuthenticationFailed, "signature verification failed", nil)
	}

	parsed, err := line.ParseWebhookBody(body)
	if err != nil {
		incRejected("malformed_body")
		return Result{}, newError(ErrorCodeMalformedBody, "malformed webhook body", err)
	}

	var result Result
	for i, event := range parsed.Events {
		outcome, err := s.handleEvent(ctx, account, event)
		if err != nil {
			code := ErrorCodeInternal
			var ingressErr *Error
			if errors.As(err, &ingressErr) {
				code = ingressErr.Code
			}
			result.Failures = append(result.Failures, EventFailure{
				Index:   i,
				Code:    code,
				Message: err.Error(),
			})
			continue
		}
		switch outcome {
		case outcomeIngested:
			result.Ingested++
		case outcomeIgnored:
			result.Ignored++
		}
	}

	addIngested(result.Ingested)
	addIgnored(result.Ignored)
	addFailed(len(result.Failures))

	return result, nil
}

type eventOutcome int

const (
	outcomeIngested eventOutcome = iota
	outcomeIgnored
)

func (s *Service) handleEvent(ctx context.Context, account model.AccountItem, event line.WebhookEvent) (eventOutcome, error) {
	switch event.Type {
	case line.EventTypeMessage:
		return s.handleMessage(ctx, account, event)
	case line.EventTypeFollow:
		return s.handleFollow(ctx, account, event)
	default:
		return outcomeIgnored, nil
	}
}

func (s *Service) handleMessage(ctx context.Context, account model.AccountItem, event line.WebhookEvent) (eventOutcome, error) {
	if event.Source.UserID == "" {
		return 0, newError(ErrorCodeMalformedEvent, "message event has no source user", nil)
	}
	if event.Message == nil {
		return 0, newError(ErrorCodeMalformedEvent, "message event has no message payload", nil)
	}

	conversation, _, err := s.store.GetOrCreate(ctx, account.AccountID, event.Source.UserID)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to open conversation", err)
	}

	body, contentType, err := renderMessage(event.Message)
	if err != nil {
		return 0, err
	}

	_, err = s.store.Append(ctx, conversation.PK, store.Draft{
		Direction:   model.DirectionInbound,
		SenderLabel: conversation.DisplayName,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to append message", err)
	}
	return outcomeIngested, nil
}

// handleFollow opens the conversation on first contact and tries to
// resolve the customer's real display name. A failed profile lookup is
// logged and swallowed; the follow itself still counts.
func (s *Service) handleFollow(ctx context.Context, account model.AccountItem, event line.WebhookEvent) (eventOutcome, error) {
	if event.Source.UserID == "" {
		return 0, newError(ErrorCodeMalformedEvent, "follow event has no source user", nil)
	}

	conversation, created, err := s.store.GetOrCreate(ctx, account.AccountID, event.Source.UserID)
	if err != nil {
		return 0, newError(ErrorCodeInternal, "failed to open conversation", err)
	}

	if created && s.profiles != nil {
		profileCtx, cancel := context.WithTimeout(ctx, profileTimeout)
		defer cancel()

		profile, err := s.profiles.GetProfile(profileCtx, account.AccessToken, event.Source.UserID)
		if err != nil {
			log.Printf("ingress: profile lookup for %s failed: %v", event.Source.UserID, err)
		} else if profile.DisplayName != "" {
			if _, err := s.store.Rename(ctx, conversation.PK, profile.DisplayName); err != nil {
				log.Printf("ingress: rename %s failed: %v", conversation.PK, err)
			}
		}
	}

	return outcomeIngested, nil
}

// renderMessage flattens a webhook message into ledger body text. Text is
// stored as-is; other supported media are kept as an opaque JSON blob
// tagged with their content type so the console can render a placeholder.
func renderMessage(message *line.WebhookMessage) (string, string, error) {
	switch message.Type {
	case line.MessageTypeText:
		if message.Text == "" {
			return "", "", newError(ErrorCodeMalformedEvent, "text message has no text", nil)
		}
		return message.Text, "text", nil
	case "":
		return "", "", newError(ErrorCodeMalformedEvent, "message has no type", nil)
	default:
		// Media and anything LINE adds later: keep the payload opaque and
		// let the console render a placeholder off the content type.
		blob, err := json.Marshal(message)
		if err != nil {
			return "", "", newError(ErrorCodeMalformedEvent, fmt.Sprintf("failed to encode %s message", message.Type), err)
		}
		return string(blob), message.Type, nil
	}
}
