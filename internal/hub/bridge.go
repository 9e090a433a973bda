package hub

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"kingchat-backend/internal/env"
)

// Bridge subscribes to the shared events channel and replays what other
// processes appended into the local hub. The admin server runs one
// bridge for its whole session set.
type Bridge struct {
	hub    *Hub
	client *redis.Client
}

func NewBridge(hub *Hub) *Bridge {
	return &Bridge{
		hub: hub,
		client: redis.NewClient(&redis.Options{
			Addr:     env.Get(env.ChatRedisURL),
			Password: env.Get(env.ChatRedisPass),
			DB:       0,
		}),
	}
}

func NewBridgeWithClient(hub *Hub, client *redis.Client) *Bridge {
	return &Bridge{hub: hub, client: client}
}

// Run consumes the channel until ctx is cancelled. Malformed payloads
// are logged and skipped; the subscription survives them.
func (b *Bridge) Run(ctx context.Context) {
	subscriber := b.client.Subscribe(ctx, EventsChannel)
	defer subscriber.Close()

	log.Printf("hub: bridge subscribed to %s", EventsChannel)

	ch := subscriber.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Printf("hub: bridge stopped: %v", ctx.Err())
			return
		case msg, ok := <-ch:
			if !ok {
				log.Printf("hub: bridge channel closed")
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("hub: bridge decode: %v", err)
				continue
			}
			b.hub.Dispatch(event)
		}
	}
}
