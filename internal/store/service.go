package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"kingchat-backend/internal/database"
	"kingchat-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation ErrorCode = "validation_error"
	ErrorCodeNotFound   ErrorCode = "not_found"
	ErrorCodeInternal   ErrorCode = "internal_error"
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

// MetadataChange describes a conversation metadata update for fan-out.
type MetadataChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

const (
	MetadataFieldDisplayName = "displayName"
	MetadataFieldNotes       = "notes"
)

// Notifier receives fan-out events. Append and metadata updates call it
// while still holding the per-conversation critical section, which is why
// delivery order per conversation matches ledger order. Implementations
// must not block: enqueue and return.
type Notifier interface {
	MessageAppended(message model.MessageItem)
	ConversationUpdated(conversation model.ConversationItem, change MetadataChange)
}

// Draft is an unappended message. Seq, PK and CreatedAt are assigned by
// Append.
type Draft struct {
	Direction      model.Direction
	SenderLabel    string
	Body           string
	ContentType    string
	DeliveryStatus model.DeliveryStatus
}

const appendRetries = 3

// Service owns the conversation ledger. Appends to one conversation are
// serialized by a per-key lock; different conversations never contend.
type Service struct {
	repo     Repository
	now      func() time.Time
	notifier Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *database.Database) *Service {
	return NewWithRepository(NewDynamoRepository(db), time.Now)
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:  repo,
		now:   now,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetNotifier registers the fan-out sink. Nil disables fan-out (webhook
// verification tools, backfills).
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) lockFor(pk string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[pk]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[pk] = lock
	}
	return lock
}

// GetOrCreate returns the unique conversation for (account, customer),
// creating it on first contact. Creation is first-writer-wins: under
// concurrent calls exactly one item is created and every caller observes
// it.
func (s *Service) GetOrCreate(ctx context.Context, accountID, customerID string) (model.ConversationItem, bool, error) {
	accountID = strings.TrimSpace(accountID)
	customerID = strings.TrimSpace(customerID)
	if accountID == "" || customerID == "" {
		return model.ConversationItem{}, false, newError(ErrorCodeValidation, "accountId and customerId are required", nil)
	}

	pk := model.ConversationPK(accountID, customerID)

	conversation, err := s.repo.GetConversation(ctx, pk)
	if err == nil {
		return conversation, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.ConversationItem{}, false, newError(ErrorCodeInternal, "failed to load conversation", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	conversation = model.ConversationItem{
		PK:            pk,
		AccountID:     accountID,
		CustomerID:    customerID,
		DisplayName:   customerID,
		LastSeq:       0,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastMessageAt: now,
	}

	err = s.repo.CreateConversation(ctx, conversation)
	if err == nil {
		return conversation, true, nil
	}
	if errors.Is(err, ErrConflict) {
		existing, getErr := s.repo.GetConversation(ctx, pk)
		if getErr != nil {
			return model.ConversationItem{}, false, newError(ErrorCodeInternal, "failed to load conversation after create race", getErr)
		}
		return existing, false, nil
	}
	return model.ConversationItem{}, false, newError(ErrorCodeInternal, "failed to create conversation", err)
}

// Append assigns the next sequence number for the conversation, persists
// the immutable message and hands it to the notifier before releasing the
// per-conversation lock. Sequence numbers are gapless and start at 1.
func (s *Service) Append(ctx context.Context, conversationPK string, draft Draft) (model.MessageItem, error) {
	if strings.TrimSpace(conversationPK) == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "conversation reference is required", nil)
	}
	if draft.Direction != model.DirectionInbound && draft.Direction != model.DirectionOutbound {
		return model.MessageItem{}, newError(ErrorCodeValidation, "invalid message direction", nil)
	}

	lock := s.lockFor(conversationPK)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		conversation, err := s.repo.GetConversation(ctx, conversationPK)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return model.MessageItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
			}
			return model.MessageItem{}, newError(ErrorCodeInternal, "failed to load conversation", err)
		}

		nextSeq := conversation.LastSeq + 1
		now := s.now().UTC().Format(time.RFC3339)

		// Another process may have advanced the counter; the conditional
		// bump detects that and we re-read.
		err = s.repo.BumpConversationSeq(ctx, conversationPK, conversation.LastSeq, nextSeq, now)
		if errors.Is(err, ErrStaleSeq) {
			lastErr = err
			continue
		}
		if err != nil {
			return model.MessageItem{}, newError(ErrorCodeInternal, "failed to advance sequence", err)
		}

		contentType := draft.ContentType
		if contentType == "" {
			contentType = "text"
		}

		message := model.MessageItem{
			PK:             model.MessagePK(conversationPK, nextSeq),
			ConversationPK: conversationPK,
			AccountID:      conversation.AccountID,
			CustomerID:     conversation.CustomerID,
			Seq:            nextSeq,
			Direction:      draft.Direction,
			SenderLabel:    draft.SenderLabel,
			Body:           draft.Body,
			ContentType:    contentType,
			DeliveryStatus: draft.DeliveryStatus,
			CreatedAt:      now,
		}

		if err := s.repo.PutMessage(ctx, message); err != nil {
			return model.MessageItem{}, newError(ErrorCodeInternal, "failed to store message", err)
		}

		if s.notifier != nil {
			s.notifier.MessageAppended(message)
		}
		return message, nil
	}

	return model.MessageItem{}, newError(ErrorCodeInternal, "failed to append after retries", lastErr)
}

// Replay returns the ledger oldest-first. With a positive limit it
// returns the limit most recent messages, still oldest-first. A missing
// conversation replays as empty rather than failing, so focusing a stale
// reference in the console degrades gracefully.
func (s *Service) Replay(ctx context.Context, conversationPK string, limit int) ([]model.MessageItem, error) {
	if strings.TrimSpace(conversationPK) == "" {
		return nil, newError(ErrorCodeValidation, "conversation reference is required", nil)
	}

	if _, err := s.repo.GetConversation(ctx, conversationPK); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []model.MessageItem{}, nil
		}
		return nil, newError(ErrorCodeInternal, "failed to load conversation", err)
	}

	newestFirst := limit > 0
	messages, err := s.repo.ListMessages(ctx, conversationPK, limit, newestFirst)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	if newestFirst {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

// SetNotes replaces the operator notes. Last write wins; notes are
// operator-facing metadata, not ledger content.
func (s *Service) SetNotes(ctx context.Context, conversationPK, notes string) (model.ConversationItem, error) {
	return s.updateMetadata(ctx, conversationPK, MetadataFieldNotes, notes)
}

// Rename replaces the customer display name. Last write wins.
func (s *Service) Rename(ctx context.Context, conversationPK, displayName string) (model.ConversationItem, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "display name cannot be empty", nil)
	}
	return s.updateMetadata(ctx, conversationPK, MetadataFieldDisplayName, displayName)
}

func (s *Service) updateMetadata(ctx context.Context, conversationPK, field, value string) (model.ConversationItem, error) {
	lock := s.lockFor(conversationPK)
	lock.Lock()
	defer lock.Unlock()

	conversation, err := s.repo.GetConversation(ctx, conversationPK)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load conversation", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	if err := s.repo.UpdateConversationField(ctx, conversationPK, field, value, now); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	switch field {
	case MetadataFieldDisplayName:
		conversation.DisplayName = value
	case MetadataFieldNotes:
		conversation.Notes = value
	}
	conversation.UpdatedAt = now

	if s.notifier != nil {
		s.notifier.ConversationUpdated(conversation, MetadataChange{Field: field, Value: value})
	}

	return conversation, nil
}

func (s *Service) Get(ctx context.Context, conversationPK string) (model.ConversationItem, error) {
	conversation, err := s.repo.GetConversation(ctx, conversationPK)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load conversation", err)
	}
	return conversation, nil
}

func (s *Service) ListConversations(ctx context.Context, accountID string, limit int) ([]model.ConversationItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	conversations, err := s.repo.ListConversations(ctx, accountID, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list conversations", err)
	}
	return conversations, nil
}
