package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kingchat-backend/internal/dispatch"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client ties a websocket connection to a hub session: one goroutine
// writes session events out, one keeps the connection alive, and the
// read loop handles focus and send commands from the console.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	session  *Session
	operator dispatch.Identity
	dispatch *dispatch.Service

	mu       sync.Mutex
	isClosed bool
}

// ServeSession upgrades the request and runs the session until the
// console disconnects or falls behind. The dispatcher may be nil, in
// which case send frames are rejected.
func (h *Hub) ServeSession(w http.ResponseWriter, r *http.Request, operator dispatch.Identity, dispatcher *dispatch.Service) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		session:  h.Connect(),
		operator: operator,
		dispatch: dispatcher,
	}

	go client.writeEvents()
	go client.keepAlive()
	client.readRequests()
}

func (c *Client) writeEvents() {
	defer c.closeConn()

	for {
		select {
		case <-c.session.Done():
			return
		case event := <-c.session.Events():
			if err := c.writeJSON(event); err != nil {
				log.Printf("hub: write to session %s: %v", c.session.ID(), err)
				return
			}
		}
	}
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.session.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.isClosed {
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()

			if err != nil {
				log.Printf("hub: ping session %s: %v", c.session.ID(), err)
				return
			}
		}
	}
}

func (c *Client) readRequests() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("hub: recovered in readRequests: %v", r)
		}
		c.hub.Disconnect(c.session)
		c.closeConn()
	}()

	c.conn.SetReadLimit(64 * 1024)

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				if closeErr.Code == websocket.CloseNormalClosure ||
					closeErr.Code == websocket.CloseGoingAway ||
					closeErr.Code == websocket.CloseNoStatusReceived {
					return
				}
			}
			log.Printf("hub: read from session %s: %v", c.session.ID(), err)
			return
		}

		var request Request
		if err := json.Unmarshal(payload, &request); err != nil {
			log.Printf("hub: bad frame from session %s: %v", c.session.ID(), err)
			continue
		}

		switch request.Action {
		case ActionFocus:
			c.handleFocus(request)
		case ActionSend:
			c.handleSend(request)
		}
	}
}

func (c *Client) handleFocus(request Request) {
	if request.ConversationPK == "" {
		c.writeError("focus requires a conversation")
		return
	}
	if err := c.hub.Focus(context.Background(), c.session, request.ConversationPK); err != nil {
		log.Printf("hub: focus session %s on %s: %v", c.session.ID(), request.ConversationPK, err)
		c.writeError("failed to load conversation history")
	}
}

// handleSend relays an operator reply through the dispatcher. The
// appended message comes back through normal fan-out, so success needs
// no ack frame; only failures are reported.
func (c *Client) handleSend(request Request) {
	if c.dispatch == nil {
		c.writeError("sending is not available on this connection")
		return
	}

	_, err := c.dispatch.Send(context.Background(), dispatch.SendParams{
		AccountID:  request.AccountID,
		CustomerID: request.CustomerID,
		Operator:   c.operator,
		Text:       request.Text,
	})
	if err != nil {
		log.Printf("hub: send from session %s: %v", c.session.ID(), err)
		c.writeError(err.Error())
	}
}

func (c *Client) writeError(message string) {
	if err := c.writeJSON(Event{Type: EventTypeError, Error: message}); err != nil {
		log.Printf("hub: write error to session %s: %v", c.session.ID(), err)
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed {
		return nil
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		c.isClosed = true
		c.conn.Close()
	}
}
