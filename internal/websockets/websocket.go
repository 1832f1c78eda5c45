package websockets

import (
	"context"
	"sync/atomic"
	"time"

	"babcia/internal/events"
	"babcia/internal/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	PING_INTERVAL     = 30 * time.Second
	PONG_TIMEOUT      = 60 * time.Second
	WRITE_TIMEOUT     = 10 * time.Second
	MAX_MESSAGE_SIZE  = 64 * 1024
	SEND_CHANNEL_SIZE = 64
	BROADCAST_BUFFER  = 256
)

// Conn is the part of a websocket connection the hub uses
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type TokenValidator interface {
	Enabled() bool
	ValidateToken(ctx context.Context, token string) (string, error)
}

type Client struct {
	ID         string
	Subject    string
	Connection Conn
	Manager    *Manager
	status     atomic.Int32
	send       chan events.Event
}

func (c *Client) Status() int {
	return int(c.status.Load())
}

type Manager struct {
	hub       *Hub
	validator TokenValidator
	log       logger.Logger
}

// New starts the hub and forwards every room and reminder event on the bus
// to the authenticated clients
func New(eventBus *events.EventBus, validator TokenValidator) (*Manager, error) {
	log := logger.New("websockets")

	manager := &Manager{
		hub:       newHub(),
		validator: validator,
		log:       log,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	if eventBus != nil {
		for _, channel := range []events.Channel{events.ROOMS_CHANNEL, events.REMINDERS_CHANNEL} {
			if err := eventBus.Subscribe(channel, manager.forward); err != nil {
				manager.Close()
				return nil, log.Err("failed to subscribe to events", err, "channel", channel)
			}
		}
	}

	return manager, nil
}

func (m *Manager) Close() {
	m.hub.stop()
}

func (m *Manager) forward(event events.Event) error {
	m.BroadcastEvent(event)
	return nil
}

// HandleWebSocket serves one connection until it closes
func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	m.Serve(c)
}

func (m *Manager) Serve(conn Conn) {
	log := m.log.Function("Serve")

	client := &Client{
		ID:         uuid.New().String(),
		Connection: conn,
		Manager:    m,
		send:       make(chan events.Event, SEND_CHANNEL_SIZE),
	}

	if m.validator == nil || !m.validator.Enabled() {
		client.status.Store(STATUS_AUTHENTICATED)
		client.send <- newMessage(AUTH_SUCCESS, nil)
	} else {
		client.status.Store(STATUS_UNAUTHENTICATED)
		client.send <- newMessage(AUTH_REQUEST, map[string]any{"action": "authenticate"})
		client.startAuthTimeout()
	}

	if !m.hub.add(client) {
		_ = conn.Close()
		return
	}
	log.Info("Client connected", "clientID", client.ID, "status", client.Status())

	defer func() {
		m.hub.remove(client)
		if err := conn.Close(); err != nil {
			log.Debug("Connection already closed", "clientID", client.ID)
		}
	}()

	go client.readPump()
	client.writePump()
}

// BroadcastEvent queues event for every authenticated client; a full queue
// drops it
func (m *Manager) BroadcastEvent(event events.Event) {
	log := m.log.Function("BroadcastEvent")

	select {
	case m.hub.broadcast <- event:
	default:
		log.Warn("Broadcast queue full, dropping event", "eventID", event.ID, "type", event.Type)
	}
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.remove(c)
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		return c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT))
	})

	for {
		var message events.Event
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			return
		}
		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message events.Event) {
	log := c.Manager.log.Function("routeMessage")

	if message.Type == AUTH_RESPONSE {
		c.handleAuthResponse(message)
		return
	}

	if c.Status() != STATUS_AUTHENTICATED {
		log.Warn("Blocking message from unauthenticated client", "clientID", c.ID, "type", message.Type)
		c.deliver(newMessage(AUTH_FAILURE, map[string]any{"reason": "Authentication required"}))
		return
	}

	switch message.Type {
	case events.PING:
		c.deliver(newMessage(events.PONG, nil))
	default:
		log.Warn("Unknown message type", "clientID", c.ID, "type", message.Type)
		c.deliver(newMessage(events.ERROR, map[string]any{"reason": "unsupported message type"}))
	}
}

// deliver queues message without blocking the reader
func (c *Client) deliver(message events.Event) {
	c.Manager.hub.direct(c, message)
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "type", message.Type)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newMessage(messageType events.MessageType, data map[string]any) events.Event {
	return events.Event{
		ID:        uuid.New().String(),
		Type:      messageType,
		Channel:   SYSTEM_CHANNEL,
		Data:      data,
		Timestamp: time.Now(),
	}
}
