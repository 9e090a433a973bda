package hub

import (
	"kingchat-backend/internal/model"
	"kingchat-backend/internal/store"
)

type EventType string

const (
	// EventTypeHistory carries the full replay of the focused conversation.
	// Always the first frame after a focus change.
	EventTypeHistory EventType = "history"
	// EventTypeMessage carries one newly appended message.
	EventTypeMessage EventType = "message"
	// EventTypeConversation carries a metadata change on the focused
	// conversation.
	EventTypeConversation EventType = "conversation"
	// EventTypeError reports a failed console command back to the sender.
	// Never fanned out and never bridged.
	EventTypeError EventType = "error"
)

// Event is the frame delivered to console sessions and carried over the
// Redis channel between processes.
type Event struct {
	Type           EventType               `json:"type"`
	ConversationPK string                  `json:"conversationId"`
	Message        *model.MessageItem      `json:"message,omitempty"`
	History        []model.MessageItem     `json:"history,omitempty"`
	Conversation   *model.ConversationItem `json:"conversation,omitempty"`
	Change         *store.MetadataChange   `json:"change,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// Request is a console command sent upstream over the websocket: focus a
// conversation, or send an operator reply through the dispatcher.
type Request struct {
	Action         string `json:"action"`
	ConversationPK string `json:"conversationId,omitempty"`
	AccountID      string `json:"accountId,omitempty"`
	CustomerID     string `json:"customerId,omitempty"`
	Text           string `json:"text,omitempty"`
}

const (
	ActionFocus = "focus"
	ActionSend  = "send"
)
