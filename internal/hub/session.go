package hub

import (
	"sync"

	"kingchat-backend/internal/model"
)

const sessionBuffer = 64

// Session is one connected console. A session watches at most one
// conversation at a time; events for anything else never reach it.
//
// The session mutex is the ordering point for enqueues, but it is not
// held across the replay read: a focus switch parks live deliveries in
// pending until the history frame is in, then reconciles them against
// the history watermark. A consumer always sees the history frame first
// and live frames in ledger order after it.
type Session struct {
	id     string
	events chan Event
	done   chan struct{}

	closeOnce sync.Once

	mu        sync.Mutex
	focus     string
	focusGen  uint64
	focusSeq  int64
	replaying bool
	pending   []Event
	evicted   bool
}

func newSession(id string) *Session {
	return &Session{
		id:     id,
		events: make(chan Event, sessionBuffer),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Events is the consumer side. The channel is never closed; consumers
// select on Done instead.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is disconnected or evicted.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// drainLocked discards queued events. Focus changes call it so frames
// from the previous conversation never reach the console after the
// switch. Callers hold s.mu.
func (s *Session) drainLocked() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// enqueueLocked pushes an event or evicts the session when its buffer is
// full. A console that stops draining loses the session, not the hub.
// Callers hold s.mu.
func (s *Session) enqueueLocked(event Event) {
	if s.evicted {
		return
	}
	select {
	case s.events <- event:
		incDelivered()
	default:
		s.evicted = true
		incEvicted()
		s.close()
	}
}

// beginFocusLocked points the session at a conversation, discards what
// the previous focus left queued, and starts parking live deliveries
// until the replay that follows has been enqueued. Returns a generation
// token so the replay can detect it was superseded. Callers hold s.mu.
func (s *Session) beginFocusLocked(conversationPK string) uint64 {
	s.focus = conversationPK
	s.focusGen++
	s.focusSeq = 0
	s.replaying = true
	s.pending = nil
	s.drainLocked()
	return s.focusGen
}

// finishFocusLocked enqueues the history frame, then releases the parked
// live events, dropping any already covered by the history watermark.
// Callers hold s.mu.
func (s *Session) finishFocusLocked(conversationPK string, history []model.MessageItem) {
	s.replaying = false
	if len(history) > 0 {
		s.focusSeq = history[len(history)-1].Seq
	}
	s.enqueueLocked(Event{
		Type:           EventTypeHistory,
		ConversationPK: conversationPK,
		History:        history,
	})
	for _, event := range s.pending {
		if event.Type == EventTypeMessage {
			if event.Message.Seq <= s.focusSeq {
				continue
			}
			s.focusSeq = event.Message.Seq
		}
		s.enqueueLocked(event)
	}
	s.pending = nil
}

// abortFocusLocked drops the focus after a failed replay. Callers hold
// s.mu.
func (s *Session) abortFocusLocked() {
	s.focus = ""
	s.replaying = false
	s.pending = nil
}

// deliverMessage hands a live append to the session if it is focused on
// that conversation. While a replay is in flight the event is parked;
// otherwise messages at or below the focus watermark were already part
// of the history frame and are dropped, which makes the replay-then-live
// handoff seamless for appends racing a focus change.
func (s *Session) deliverMessage(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focus == "" || s.focus != event.ConversationPK || event.Message == nil {
		return
	}
	if s.replaying {
		s.pending = append(s.pending, event)
		return
	}
	if event.Message.Seq <= s.focusSeq {
		return
	}
	s.focusSeq = event.Message.Seq
	s.enqueueLocked(event)
}

func (s *Session) deliverConversation(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focus == "" || s.focus != event.ConversationPK {
		return
	}
	if s.replaying {
		s.pending = append(s.pending, event)
		return
	}
	s.enqueueLocked(event)
}
