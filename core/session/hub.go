package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"playdeck/logger"

	"github.com/gorilla/websocket"
)

// MessageType tags a session message.
type MessageType string

const (
	MsgTypeHello   MessageType = "hello"   // connect handshake, advertises commands
	MsgTypePing    MessageType = "ping"    // heartbeat
	MsgTypePong    MessageType = "pong"    // heartbeat response
	MsgTypeEvent   MessageType = "event"   // server-pushed playback event
	MsgTypeCommand MessageType = "command" // controller-issued command
	MsgTypeResult  MessageType = "result"  // command result
	MsgTypeError   MessageType = "error"   // protocol error
)

// WSMessage is the session wire frame.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Event     string          `json:"event,omitempty"`
	Action    string          `json:"action,omitempty"`
	ID        string          `json:"id,omitempty"` // request correlation, echoed in results
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is one connected controller.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	User string

	sendMu sync.Mutex
	closed bool
}

// Enqueue queues a frame for delivery. It never blocks: the frame is dropped
// when the queue is full or the client has already been detached, and the hub
// treats the failure as a slow-reader signal. The mutex keeps the send from
// racing closeSend.
func (c *Client) Enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once, excluding concurrent Enqueue
// callers.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// CommandHandler processes a controller command and returns the result
// payload to echo back.
type CommandHandler func(ctx context.Context, action string, args json.RawMessage) interface{}

// Hub fans playback events out to every connected controller. It is the
// session-layer notifier: the playback service publishes through Notify and
// each controller receives the event on its own send queue.
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

// NewHub creates a session hub. Run must be called before clients attach.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run drives the hub loop until Close.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastAll(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Close stops the hub loop and disconnects all clients.
func (h *Hub) Close() {
	h.once.Do(func() {
		close(h.done)
	})
}

// Notify publishes a named playback event to all connected controllers.
// Never blocks: when the broadcast queue is full the event is dropped, since
// controllers resynchronize from the status endpoint anyway.
func (h *Hub) Notify(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("failed to marshal session event",
			logger.String("event", event), logger.ErrorField(err))
		return
	}
	msg := &WSMessage{
		Type:      MsgTypeEvent,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- raw:
	case <-h.done:
	default:
		logger.Warn("session broadcast queue full, dropping event",
			logger.String("event", event))
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	logger.Info("controller connected", logger.String("user", client.User))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	client.closeSend()
	logger.Info("controller disconnected", logger.String("user", client.User))
}

func (h *Hub) broadcastAll(msg []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if !client.Enqueue(msg) {
			// Send queue full; the controller is too slow to keep. Reap it
			// here rather than through the unregister channel, whose only
			// receiver is this loop.
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
}

// Register attaches a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister detaches a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount returns the number of attached controllers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReadPump consumes controller frames until the connection drops. Commands
// are dispatched through the handler; heartbeats are answered inline.
func (c *Client) ReadPump(ctx context.Context, handler CommandHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("session read error",
					logger.String("user", c.User), logger.ErrorField(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid session frame", logger.ErrorField(err))
			c.sendMessage(&WSMessage{Type: MsgTypeError, Data: json.RawMessage(`"invalid frame"`)})
			continue
		}

		switch msg.Type {
		case MsgTypePing:
			c.sendMessage(&WSMessage{Type: MsgTypePong})

		case MsgTypeCommand:
			result := handler(ctx, msg.Action, msg.Data)
			data, err := json.Marshal(result)
			if err != nil {
				logger.Warn("failed to marshal command result", logger.ErrorField(err))
				continue
			}
			c.sendMessage(&WSMessage{Type: MsgTypeResult, Action: msg.Action, ID: msg.ID, Data: data})

		default:
			logger.Warn("unexpected session frame type", logger.String("type", string(msg.Type)))
		}
	}
}

// WritePump flushes the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued frames into one write.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMessage(msg *WSMessage) {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	// Dropped frames are fine: a full queue means the slow-reader path will
	// reap the client on the next broadcast.
	c.Enqueue(data)
}

// Hello builds the connect handshake advertising the custom commands the
// session accepts.
func Hello(commands []string) *WSMessage {
	data, _ := json.Marshal(map[string]interface{}{"commands": commands})
	return &WSMessage{Type: MsgTypeHello, Data: data, Timestamp: time.Now().UnixMilli()}
}
