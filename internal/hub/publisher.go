package hub

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"kingchat-backend/internal/env"
	"kingchat-backend/internal/model"
	"kingchat-backend/internal/store"
)

// EventsChannel is the Redis pub/sub channel carrying hub events between
// the webhook server and the admin servers. Redis preserves publish order
// per channel, so events published inside the store's per-conversation
// critical section arrive at subscribers in ledger order.
const EventsChannel = "kingchat:events"

const publishBuffer = 256

// Publisher implements store.Notifier by pushing events into Redis
// instead of a local session set. The webhook server uses it so appends
// made there reach consoles connected elsewhere.
//
// The store invokes the Notifier inside its per-conversation critical
// section, so the Notifier methods only enqueue; a single goroutine
// drains the buffer, which keeps Redis publish order identical to append
// order. When Redis falls behind past the buffer, events are dropped and
// logged rather than stalling appends.
type Publisher struct {
	client *redis.Client
	events chan Event
}

func NewPublisher() *Publisher {
	return NewPublisherWithClient(redis.NewClient(&redis.Options{
		Addr:     env.Get(env.ChatRedisURL),
		Password: env.Get(env.ChatRedisPass),
		DB:       0,
	}))
}

func NewPublisherWithClient(client *redis.Client) *Publisher {
	p := &Publisher{
		client: client,
		events: make(chan Event, publishBuffer),
	}
	go p.run()
	return p
}

// Close stops the publish goroutine after the buffer drains. Callers must
// not enqueue after Close.
func (p *Publisher) Close() error {
	close(p.events)
	return p.client.Close()
}

// MessageAppended implements store.Notifier.
func (p *Publisher) MessageAppended(message model.MessageItem) {
	p.enqueue(Event{
		Type:           EventTypeMessage,
		ConversationPK: message.ConversationPK,
		Message:        &message,
	})
}

// ConversationUpdated implements store.Notifier.
func (p *Publisher) ConversationUpdated(conversation model.ConversationItem, change store.MetadataChange) {
	p.enqueue(Event{
		Type:           EventTypeConversation,
		ConversationPK: conversation.PK,
		Conversation:   &conversation,
		Change:         &change,
	})
}

func (p *Publisher) enqueue(event Event) {
	select {
	case p.events <- event:
	default:
		incPublishDropped()
		log.Printf("hub: publish buffer full, dropping event for %s", event.ConversationPK)
	}
}

func (p *Publisher) run() {
	for event := range p.events {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("hub: marshal event for %s: %v", event.ConversationPK, err)
			continue
		}
		if err := p.client.Publish(context.Background(), EventsChannel, string(payload)).Err(); err != nil {
			log.Printf("hub: publish event for %s: %v", event.ConversationPK, err)
		}
	}
}
