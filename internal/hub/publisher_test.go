package hub

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"kingchat-backend/internal/model"
	"kingchat-backend/internal/store"
)

// The store calls the Notifier while holding its per-conversation lock,
// so an unreachable broker must never stall the caller. The publisher
// enqueues and returns even when every publish times out.
func TestPublisherDoesNotBlockWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	publisher := NewPublisherWithClient(client)

	pk := model.ConversationPK("oa-1", "U1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; i <= publishBuffer*2; i++ {
			publisher.MessageAppended(model.MessageItem{
				ConversationPK: pk,
				Seq:            int64(i),
				Body:           fmt.Sprintf("m%d", i),
			})
		}
		publisher.ConversationUpdated(
			model.ConversationItem{PK: pk, DisplayName: "Alice"},
			store.MetadataChange{Field: store.MetadataFieldDisplayName, Value: "Alice"},
		)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("notifier blocked on an unreachable broker")
	}
	publisher.Close()
}
