package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jarvislabs/jarvis/internal/logging"
)

// Client represents one connected WebSocket session.
type Client struct {
	ConnID      string
	SessionID   string
	Socket      *websocket.Conn
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	log    *logging.Logger
}

// NewClient wraps a freshly upgraded connection.
func NewClient(conn *websocket.Conn, sessionID string, log *logging.Logger) *Client {
	return &Client{
		ConnID:      uuid.New().String(),
		SessionID:   sessionID,
		Socket:      conn,
		ConnectedAt: time.Now(),
		log:         log,
	}
}

// Send writes one envelope. Thread-safe.
func (c *Client) Send(env Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return c.Socket.WriteJSON(env)
}

// SendTyped wraps a payload in an envelope for this client's session
// and sends it.
func (c *Client) SendTyped(msgType string, data any) error {
	env, err := NewEnvelope(msgType, c.SessionID, data)
	if err != nil {
		return err
	}
	return c.Send(env)
}

// SendError sends a recoverable error envelope. The connection stays
// open.
func (c *Client) SendError(code, message string) {
	if err := c.SendTyped(TypeError, ErrorData{Code: code, Message: message, Recoverable: true}); err != nil {
		c.log.Warn().Err(err).Str("connId", c.ConnID).Msg("error send failed")
	}
}

// Read returns the next inbound envelope.
func (c *Client) Read() (Envelope, error) {
	_, msg, err := c.Socket.ReadMessage()
	if err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// DataAs unmarshals an envelope payload into target. A nil payload is
// left as the zero value.
func (env Envelope) DataAs(target any) error {
	if env.Data == nil {
		return nil
	}
	return json.Unmarshal(env.Data, target)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.Socket.Close()
}

// ClientRegistry manages connected clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client // connID → Client
	log     *logging.Logger
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
		log:     log,
	}
}

// Add registers a connected client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ConnID] = c
	r.log.Info().Str("connId", c.ConnID).Str("session", c.SessionID).Msg("client connected")
}

// Remove unregisters a client by connection ID.
func (r *ClientRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, connID)
	r.log.Info().Str("connId", connID).Msg("client disconnected")
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SessionClients counts connected clients attached to one session.
func (r *ClientRegistry) SessionClients(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, c := range r.clients {
		if c.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Broadcast sends an envelope to every connected client.
func (r *ClientRegistry) Broadcast(msgType string, data any) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if err := c.SendTyped(msgType, data); err != nil {
			r.log.Warn().Err(err).Str("connId", c.ConnID).Msg("broadcast send failed")
		}
	}
}

// CloseAll closes all connected clients.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
