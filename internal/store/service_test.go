package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"kingchat-backend/internal/model"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (r *memoryRepository) GetConversation(ctx context.Context, pk string) (model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return conversation, nil
}

func (r *memoryRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conversation.PK]; ok {
		return ErrConflict
	}
	r.conversations[conversation.PK] = conversation
	return nil
}

func (r *memoryRepository) BumpConversationSeq(ctx context.Context, pk string, prevSeq, nextSeq int64, lastMessageAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	if conversation.LastSeq != prevSeq {
		return ErrStaleSeq
	}
	conversation.LastSeq = nextSeq
	conversation.LastMessageAt = lastMessageAt
	conversation.UpdatedAt = lastMessageAt
	r.conversations[pk] = conversation
	return nil
}

func (r *memoryRepository) UpdateConversationField(ctx context.Context, pk, field, value, updatedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case MetadataFieldDisplayName:
		conversation.DisplayName = value
	case MetadataFieldNotes:
		conversation.Notes = value
	}
	conversation.UpdatedAt = updatedAt
	r.conversations[pk] = conversation
	return nil
}

func (r *memoryRepository) ListConversations(ctx context.Context, accountID string, limit int) ([]model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversations := make([]model.ConversationItem, 0, len(r.conversations))
	for _, conversation := range r.conversations {
		if accountID != "" && conversation.AccountID != accountID {
			continue
		}
		conversations = append(conversations, conversation)
	}
	if limit > 0 && len(conversations) > limit {
		conversations = conversations[:limit]
	}
	return conversations, nil
}

func (r *memoryRepository) PutMessage(ctx context.Context, message model.MessageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages[message.ConversationPK] {
		if existing.Seq == message.Seq {
			return ErrConflict
		}
	}
	r.messages[message.ConversationPK] = append(r.messages[message.ConversationPK], message)
	return nil
}

func (r *memoryRepository) ListMessages(ctx context.Context, conversationPK string, limit int, newestFirst bool) ([]model.MessageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.messages[conversationPK]
	messages := make([]model.MessageItem, len(stored))
	copy(messages, stored)
	if newestFirst {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []model.MessageItem
	updates  []MetadataChange
}

func (n *recordingNotifier) MessageAppended(message model.MessageItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) ConversationUpdated(conversation model.ConversationItem, change MetadataChange) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, change)
}

func newTestService() (*Service, *memoryRepository) {
	repo := newMemoryRepository()
	service := NewWithRepository(repo, func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	})
	return service, repo
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	service, _ := newTestService()

	first, created, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the conversation")
	}
	if first.LastSeq != 0 {
		t.Fatalf("expected new conversation to start at seq 0, got %d", first.LastSeq)
	}

	second, created, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created {
		t.Fatalf("expected second call to reuse the conversation")
	}
	if second.PK != first.PK {
		t.Fatalf("expected same conversation, got %s and %s", first.PK, second.PK)
	}
}

func TestGetOrCreateConcurrentSingleWinner(t *testing.T) {
	service, repo := newTestService()

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	pks := make(map[string]struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conversation, created, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
			if err != nil {
				t.Errorf("expected no error, got %v", err)
				return
			}
			mu.Lock()
			if created {
				createdCount++
			}
			pks[conversation.PK] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if createdCount != 1 {
		t.Fatalf("expected exactly one creation, got %d", createdCount)
	}
	if len(pks) != 1 {
		t.Fatalf("expected all callers to observe one conversation, got %d", len(pks))
	}
	if len(repo.conversations) != 1 {
		t.Fatalf("expected one stored conversation, got %d", len(repo.conversations))
	}
}

func TestAppendAssignsGaplessSequence(t *testing.T) {
	service, _ := newTestService()

	conversation, _, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for i := 1; i <= 5; i++ {
		message, err := service.Append(context.Background(), conversation.PK, Draft{
			Direction:   model.DirectionInbound,
			SenderLabel: "U123",
			Body:        fmt.Sprintf("hello %d", i),
		})
		if err != nil {
			t.Fatalf("append %d: expected no error, got %v", i, err)
		}
		if message.Seq != int64(i) {
			t.Fatalf("append %d: expected seq %d, got %d", i, i, message.Seq)
		}
	}

	messages, err := service.Replay(context.Background(), conversation.PK, 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	for i, message := range messages {
		if message.Seq != int64(i+1) {
			t.Fatalf("expected seq %d at position %d, got %d", i+1, i, message.Seq)
		}
	}
}

func TestAppendNotifiesInLedgerOrder(t *testing.T) {
	service, _ := newTestService()
	notifier := &recordingNotifier{}
	service.SetNotifier(notifier)

	conversation, _, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	const writers = 8
	const perWriter = 5
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_, err := service.Append(context.Background(), conversation.PK, Draft{
					Direction:   model.DirectionInbound,
					SenderLabel: "U123",
					Body:        fmt.Sprintf("writer %d message %d", writer, j),
				})
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if len(notifier.messages) != writers*perWriter {
		t.Fatalf("expected %d notifications, got %d", writers*perWriter, len(notifier.messages))
	}
	for i, message := range notifier.messages {
		if message.Seq != int64(i+1) {
			t.Fatalf("expected notification order to match ledger order, got seq %d at position %d", message.Seq, i)
		}
	}
}

func TestAppendUnknownConversation(t *testing.T) {
	service, _ := newTestService()

	_, err := service.Append(context.Background(), "oa-1#missing", Draft{
		Direction: model.DirectionInbound,
		Body:      "hello",
	})
	if err == nil {
		t.Fatalf("expected an error for unknown conversation")
	}
	storeErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if storeErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected %s, got %s", ErrorCodeNotFound, storeErr.Code)
	}
}

func TestAppendRejectsInvalidDirection(t *testing.T) {
	service, _ := newTestService()

	conversation, _, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	_, err = service.Append(context.Background(), conversation.PK, Draft{Body: "hello"})
	if err == nil {
		t.Fatalf("expected an error for missing direction")
	}
	storeErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if storeErr.Code != ErrorCodeValidation {
		t.Fatalf("expected %s, got %s", ErrorCodeValidation, storeErr.Code)
	}
}

func TestReplayLimitReturnsMostRecentOldestFirst(t *testing.T) {
	service, _ := newTestService()

	conversation, _, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	for i := 1; i <= 10; i++ {
		if _, err := service.Append(context.Background(), conversation.PK, Draft{
			Direction: model.DirectionInbound,
			Body:      fmt.Sprintf("message %d", i),
		}); err != nil {
			t.Fatalf("append %d: expected no error, got %v", i, err)
		}
	}

	messages, err := service.Replay(context.Background(), conversation.PK, 3)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []int64{8, 9, 10} {
		if messages[i].Seq != want {
			t.Fatalf("expected seq %d at position %d, got %d", want, i, messages[i].Seq)
		}
	}
}

func TestReplayUnknownConversationIsEmpty(t *testing.T) {
	service, _ := newTestService()

	messages, err := service.Replay(context.Background(), "oa-1#missing", 0)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected empty replay, got %d messages", len(messages))
	}
}

func TestSetNotesAndRename(t *testing.T) {
	service, _ := newTestService()
	notifier := &recordingNotifier{}
	service.SetNotifier(notifier)

	conversation, _, err := service.GetOrCreate(context.Background(), "oa-1", "U123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	updated, err := service.SetNotes(context.Background(), conversation.PK, "vip customer")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.Notes != "vip customer" {
		t.Fatalf("expected notes to be set, got %q", updated.Notes)
	}

	updated, err = service.Rename(context.Background(), conversation.PK, "Alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if updated.DisplayName != "Alice" {
		t.Fatalf("expected display name Alice, got %q", updated.DisplayName)
	}

	if len(notifier.updates) != 2 {
		t.Fatalf("expected 2 metadata notifications, got %d", len(notifier.updates))
	}
	if notifier.updates[0].Field != MetadataFieldNotes || notifier.updates[1].Field != MetadataFieldDisplayName {
		t.Fatalf("unexpected notification fields: %+v", notifier.updates)
	}

	if _, err := service.Rename(context.Background(), conversation.PK, "   "); err == nil {
		t.Fatalf("expected an error for blank display name")
	}
}

func TestAppendDistinctConversationsDoNotInterfere(t *testing.T) {
	service, _ := newTestService()

	first, _, err := service.GetOrCreate(context.Background(), "oa-1", "U1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _, err := service.GetOrCreate(context.Background(), "oa-1", "U2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var wg sync.WaitGroup
	for _, pk := range []string{first.PK, second.PK} {
		wg.Add(1)
		go func(pk string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := service.Append(context.Background(), pk, Draft{
					Direction: model.DirectionInbound,
					Body:      "hello",
				}); err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
		}(pk)
	}
	wg.Wait()

	for _, pk := range []string{first.PK, second.PK} {
		conversation, err := service.Get(context.Background(), pk)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if conversation.LastSeq != 10 {
			t.Fatalf("expected lastSeq 10 for %s, got %d", pk, conversation.LastSeq)
		}
	}
}
