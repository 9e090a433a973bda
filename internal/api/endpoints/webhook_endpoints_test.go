package endpoints_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"kingchat-backend/internal/api"
	"kingchat-backend/internal/api/router"
	"kingchat-backend/internal/ingress"
	"kingchat-backend/internal/line"
	"kingchat-backend/internal/model"
	"kingchat-backend/internal/registry"
	"kingchat-backend/internal/store"
)

type accountRepository struct {
	mu       sync.Mutex
	accounts map[string]model.AccountItem
}

func newAccountRepository() *accountRepository {
	return &accountRepository{accounts: make(map[string]model.AccountItem)}
}

func (r *accountRepository) GetAccount(ctx context.Context, accountID string) (model.AccountItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return model.AccountItem{}, registry.ErrNotFound
	}
	return account, nil
}

func (r *accountRepository) PutAccount(ctx context.Context, account model.AccountItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = account
	return nil
}

func (r *accountRepository) CreateAccount(ctx context.Context, account model.AccountItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.AccountID]; ok {
		return registry.ErrConflict
	}
	r.accounts[account.AccountID] = account
	return nil
}

func (r *accountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, accountID)
	return nil
}

func (r *accountRepository) ListAccounts(ctx context.Context) ([]model.AccountItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]model.AccountItem, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

type conversationRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	messages      map[string][]model.MessageItem
}

func newConversationRepository() *conversationRepository {
	return &conversationRepository{
		conversations: make(map[string]model.ConversationItem),
		messages:      make(map[string][]model.MessageItem),
	}
}

func (r *conversationRepository) GetConversation(ctx context.Context, pk string) (model.ConversationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return model.ConversationItem{}, store.ErrNotFound
	}
	return conversation, nil
}

func (r *conversationRepository) CreateConversation(ctx context.Context, conversation model.ConversationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[conversation.PK]; ok {
		return store.ErrConflict
	}
	r.conversations[conversation.PK] = conversation
	return nil
}

func (r *conversationRepository) BumpConversationSeq(ctx context.Context, pk string, prevSeq, nextSeq int64, lastMessageAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return store.ErrNotFound
	}
	if conversation.LastSeq != prevSeq {
		return store.ErrStaleSeq
	}
	conversation.LastSeq = nextSeq
	conversation.LastMessageAt = lastMessageAt
	r.conversations[pk] = conversation
	return nil
}

func (r *conversationRepository) UpdateConversationField(ctx context.Context, pk, field, value, updatedAt string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[pk]
	if !ok {
		return store.ErrNotFound
	}
	switch field {
	case "displayName":
		conversation.DisplayName = value
	case "notes":
		conversation.Notes = value
	}
	conversation.UpdatedAt = updatedAt
	r.conversations[pk] = conversation
	return nil
}

func (r *conversationRepository) ListConversations(ctx context.Context, accountID string, limit int) ([]model.ConversationItem, error) {
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

func (r *conversationRepository) PutMessage(ctx context.Context, message model.MessageItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[message.ConversationPK] = append(r.messages[message.ConversationPK], message)
	return nil
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationPK string, limit int, newestFirst bool) ([]model.MessageItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := append([]model.MessageItem(nil), r.messages[conversationPK]...)
	sort.Slice(messages, func(i, j int) bool {
		if newestFirst {
			return messages[i].Seq > messages[j].Seq
		}
		return messages[i].Seq < messages[j].Seq
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

type profileStub struct {
	profiles map[string]line.Profile
}

func (p *profileStub) GetProfile(ctx context.Context, accessToken, userID string) (line.Profile, error) {
	profile, ok := p.profiles[userID]
	if !ok {
		return line.Profile{}, errors.New("profile not found")
	}
	return profile, nil
}

const testChannelSecret = "test-channel-secret"

func seedAccount(t *testing.T, accounts *accountRepository, accountID string) {
	t.Helper()
	now := fixedTime().Format(time.RFC3339)
	err := accounts.CreateAccount(context.Background(), model.AccountItem{
		AccountID:     accountID,
		Name:          "Support",
		ChannelSecret: testChannelSecret,
		AccessToken:   "access-token",
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func setupWebhookHandler(t *testing.T, listenAddr string) (http.Handler, *conversationRepository) {
	t.Helper()

	accounts := newAccountRepository()
	seedAccount(t, accounts, "acc-1")

	conversations := newConversationRepository()
	registryService := registry.NewWithRepository(accounts, fixedTime)
	storeService := store.NewWithRepository(conversations, fixedTime)
	ingressService := ingress.New(registryService, storeService, &profileStub{})

	handler := setupHandler(t, listenAddr,
		api.Services{Registry: registryService, Store: storeService, Ingress: ingressService},
		router.WebhookRoutes("/api/webhook/v1"),
	)
	return handler, conversations
}

func signedWebhookRequest(t *testing.T, target string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", line.SignBody(testChannelSecret, body))
	return req
}

func TestLineWebhookIngestsSignedDelivery(t *testing.T) {
	handler, conversations := setupWebhookHandler(t, ":18091")

	body := []byte(`{
		"destination": "U1",
		"events": [
			{
				"type": "message",
				"timestamp": 1714560000000,
				"source": {"type": "user", "userId": "U123"},
				"message": {"id": "m1", "type": "text", "text": "hello"}
			}
		]
	}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, "/api/webhook/v1/line/acc-1", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	messages, err := conversations.ListMessages(context.Background(), model.ConversationPK("acc-1", "U123"), 0, false)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(messages))
	}
	if messages[0].Seq != 1 || messages[0].Direction != model.DirectionInbound || messages[0].Body != "hello" {
		t.Fatalf("unexpected stored message: %+v", messages[0])
	}
}

func TestLineWebhookRejectsBadSignature(t *testing.T) {
	handler, conversations := setupWebhookHandler(t, ":18092")

	body := []byte(`{"destination":"U1","events":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/v1/line/acc-1", bytes.NewReader(body))
	req.Header.Set("X-Line-Signature", line.SignBody("wrong-secret", body))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	messages, _ := conversations.ListMessages(context.Background(), model.ConversationPK("acc-1", "U123"), 0, false)
	if len(messages) != 0 {
		t.Fatalf("expected nothing stored, got %d messages", len(messages))
	}
}

func TestLineWebhookUnknownAccount(t *testing.T) {
	handler, _ := setupWebhookHandler(t, ":18093")

	body := []byte(`{"destination":"U1","events":[]}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, "/api/webhook/v1/line/acc-nope", body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestLineWebhookMissingAccountInPath(t *testing.T) {
	handler, _ := setupWebhookHandler(t, ":18094")

	body := []byte(`{"destination":"U1","events":[]}`)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedWebhookRequest(t, "/api/webhook/v1/line/", body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
