package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"kingchat-backend/internal/model"
	"kingchat-backend/internal/store"
)

// Replayer is the slice of the conversation store the hub needs to serve
// history on focus.
type Replayer interface {
	Replay(ctx context.Context, conversationPK string, limit int) ([]model.MessageItem, error)
}

// Hub fans appended messages and metadata changes out to connected
// console sessions. It implements store.Notifier, so it can sit directly
// behind a conversation store or behind the Redis bridge when appends
// happen in another process.
type Hub struct {
	replayer Replayer

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(replayer Replayer) *Hub {
	return &Hub{
		replayer: replayer,
		sessions: make(map[string]*Session),
	}
}

// Connect registers a new console session with no focus. The caller owns
// draining Events until Done closes.
func (h *Hub) Connect() *Session {
	session := newSession(uuid.NewString())

	h.mu.Lock()
	h.sessions[session.id] = session
	h.mu.Unlock()

	incSessions()
	return session
}

func (h *Hub) Disconnect(session *Session) {
	if session == nil {
		return
	}

	h.mu.Lock()
	_, ok := h.sessions[session.id]
	if ok {
		delete(h.sessions, session.id)
	}
	h.mu.Unlock()

	if ok {
		session.close()
		decSessions()
	}
}

// Focus switches the session to a conversation. The session receives the
// full history as one frame, then live events for that conversation only.
// The replay read runs off the session lock so fan-out to other sessions
// never waits on storage; deliveries racing the replay are parked and
// reconciled against the history watermark, so an append racing the
// focus lands either in the history frame or as a live frame after it,
// never both and never neither.
func (h *Hub) Focus(ctx context.Context, session *Session, conversationPK string) error {
	if session == nil {
		return fmt.Errorf("hub: nil session")
	}
	if conversationPK == "" {
		return fmt.Errorf("hub: conversation reference is required")
	}

	session.mu.Lock()
	gen := session.beginFocusLocked(conversationPK)
	session.mu.Unlock()

	history, err := h.replayer.Replay(ctx, conversationPK, 0)

	session.mu.Lock()
	defer session.mu.Unlock()

	// A newer focus took over while the replay ran; its own replay owns
	// the session now.
	if session.focusGen != gen {
		return nil
	}
	if err != nil {
		session.abortFocusLocked()
		return fmt.Errorf("hub: replay %s: %w", conversationPK, err)
	}
	session.finishFocusLocked(conversationPK, history)
	return nil
}

// MessageAppended implements store.Notifier.
func (h *Hub) MessageAppended(message model.MessageItem) {
	event := Event{
		Type:           EventTypeMessage,
		ConversationPK: message.ConversationPK,
		Message:        &message,
	}
	for _, session := range h.snapshot() {
		session.deliverMessage(event)
	}
}

// ConversationUpdated implements store.Notifier.
func (h *Hub) ConversationUpdated(conversation model.ConversationItem, change store.MetadataChange) {
	event := Event{
		Type:           EventTypeConversation,
		ConversationPK: conversation.PK,
		Conversation:   &conversation,
		Change:         &change,
	}
	for _, session := range h.snapshot() {
		session.deliverConversation(event)
	}
}

// Dispatch routes an event that arrived from another process. History
// frames are session-local and never cross the bridge.
func (h *Hub) Dispatch(event Event) {
	switch event.Type {
	case EventTypeMessage:
		if event.Message != nil {
			h.MessageAppended(*event.Message)
		}
	case EventTypeConversation:
		if event.Conversation != nil && event.Change != nil {
			h.ConversationUpdated(*event.Conversation, *event.Change)
		}
	}
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, session := range h.sessions {
		sessions = append(sessions, session)
	}
	return sessions
}
