package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections grouped into per-instance rooms.
// Every connection belongs to exactly one game instance at a time.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection         // conn_id -> connection
	rooms       map[string]map[string]struct{} // instance_id -> set of conn_ids
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]struct{}),
		logger:      logger,
	}
}

// Register adds a connection and places it in the room for instanceID.
func (h *Hub) Register(conn *Connection, instanceID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[conn.ID]; exists {
		old.Close()
		h.removeFromRoomLocked(old.instanceID, conn.ID)
	}

	h.connections[conn.ID] = conn
	conn.instanceID = instanceID
	h.addToRoomLocked(instanceID, conn.ID)
	h.logger.Info().Str("conn_id", conn.ID).Str("instance_id", instanceID).Msg("connection registered")
}

// Unregister removes a connection and its room membership.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, exists := h.connections[connID]
	if !exists {
		return
	}
	conn.Close()
	h.removeFromRoomLocked(conn.instanceID, connID)
	delete(h.connections, connID)
	h.logger.Info().Str("conn_id", connID).Msg("connection unregistered")
}

// Switch moves a connection from its current room to the room for instanceID.
// Returns the previous instance id.
func (h *Hub) Switch(connID, instanceID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, exists := h.connections[connID]
	if !exists {
		return "", false
	}
	previous := conn.instanceID
	h.removeFromRoomLocked(previous, connID)
	conn.instanceID = instanceID
	h.addToRoomLocked(instanceID, connID)
	return previous, true
}

// InstanceOf reports which instance room a connection currently belongs to.
func (h *Hub) InstanceOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, exists := h.connections[connID]
	if !exists {
		return "", false
	}
	return conn.instanceID, true
}

// InstanceCount returns the number of live connections in an instance room.
func (h *Hub) InstanceCount(instanceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[instanceID])
}

// BroadcastToInstance sends a message to every connection in one room.
func (h *Hub) BroadcastToInstance(instanceID string, msg Message) error {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.rooms[instanceID]))
	for connID := range h.rooms[instanceID] {
		if conn, ok := h.connections[connID]; ok {
			conns = append(conns, conn)
		}
	}
	h.mu.RUnlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BroadcastAll sends a message to every connected client.
func (h *Hub) BroadcastAll(msg Message) error {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, conn := range h.connections {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	var firstErr error
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil && firstErr == nil {
			firstErr = err
			h.logger.Warn().Err(err).Str("conn_id", conn.ID).Msg("broadcast_all_send_failed")
		}
	}
	return firstErr
}

// SendTo delivers a message to a specific connection.
func (h *Hub) SendTo(connID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}
	return conn.Send(msg)
}

func (h *Hub) addToRoomLocked(instanceID, connID string) {
	room, ok := h.rooms[instanceID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[instanceID] = room
	}
	room[connID] = struct{}{}
}

func (h *Hub) removeFromRoomLocked(instanceID, connID string) {
	room, ok := h.rooms[instanceID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, instanceID)
	}
}

// Connection represents a WebSocket connection with a buffered send queue.
type Connection struct {
	ID         string
	conn       *websocket.Conn
	sendCh     chan Message
	mu         sync.Mutex
	closed     bool
	instanceID string
	logger     zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(id string, conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		ID:     id,
		conn:   conn,
		sendCh: make(chan Message, 256),
		logger: logger,
	}
}

// Send queues a message for delivery.
func (c *Connection) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Outbox exposes the queued outbound messages. The write pump drains it;
// tests inspect it.
func (c *Connection) Outbox() <-chan Message {
	return c.sendCh
}

// Close shuts down the connection.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
	if c.conn != nil {
		c.conn.Close()
	}
}

// WritePump sends messages from the send queue.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for msg := range c.sendCh {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump receives messages and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(Message) error) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			break
		}

		if err := handler(msg); err != nil {
			c.logger.Warn().Err(err).Str("event", msg.Event).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
