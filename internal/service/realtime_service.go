package service

import (
	"context"
	"encoding/json"
	"errors"

	"fin-advisor/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("realtime hub closed")

const (
	EventRecommendation = "recommendation"
	EventProfile        = "profile"
)

// Event is the envelope of every message pushed to live connections.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func EncodeEvent(eventType string, data any) ([]byte, error) {
	return json.Marshal(Event{Type: eventType, Data: data})
}

// Publisher delivers payloads to a user's live connections without blocking.
type Publisher interface {
	Publish(userID string, payload []byte) bool
}

// Conn is one live connection. Its channel is closed by the hub when the
// connection is unregistered or the hub stops.
type Conn struct {
	ID     string
	UserID string
	send   chan []byte
}

func (c *Conn) Messages() <-chan []byte {
	return c.send
}

type delivery struct {
	userID  string
	connID  string
	payload []byte
}

// Hub is the connection registry. Only the Run goroutine touches the
// registry; everything else talks to it through channels.
type Hub struct {
	register   chan *Conn
	unregister chan *Conn
	deliveries chan delivery
	done       chan struct{}

	sendBuffer int
	logger     *zap.Logger

	users map[string]map[string]*Conn
	conns map[string]*Conn
}

func NewHub(cfg *config.RealtimeConfig, logger *zap.Logger) *Hub {
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 16
	}
	eventBuffer := cfg.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = 256
	}
	return &Hub{
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		deliveries: make(chan delivery, eventBuffer),
		done:       make(chan struct{}),
		sendBuffer: sendBuffer,
		logger:     logger,
		users:      make(map[string]map[string]*Conn),
		conns:      make(map[string]*Conn),
	}
}

// Run owns the registry until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, c := range h.conns {
			close(c.send)
			delete(h.conns, id)
		}
		h.users = make(map[string]map[string]*Conn)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case d := <-h.deliveries:
			h.deliver(d)
		}
	}
}

// Register adds a connection for userID. It blocks until the hub accepts it.
func (h *Hub) Register(ctx context.Context, userID string) (*Conn, error) {
	c := &Conn{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, h.sendBuffer),
	}
	select {
	case h.register <- c:
		return c, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unregister removes c and closes its channel. Unknown connections are ignored.
func (h *Hub) Unregister(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish queues payload for all of userID's connections. It reports false
// when the payload was dropped because the hub is saturated or stopped.
func (h *Hub) Publish(userID string, payload []byte) bool {
	return h.enqueue(delivery{userID: userID, payload: payload})
}

// Send queues payload for a single connection.
func (h *Hub) Send(connID string, payload []byte) bool {
	return h.enqueue(delivery{connID: connID, payload: payload})
}

func (h *Hub) enqueue(d delivery) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.deliveries <- d:
		return true
	default:
		h.logger.Warn("Realtime event queue full, dropping event",
			zap.String("user_id", d.userID),
			zap.String("conn_id", d.connID),
		)
		return false
	}
}

func (h *Hub) add(c *Conn) {
	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[string]*Conn)
		h.users[c.UserID] = set
	}
	set[c.ID] = c
	h.conns[c.ID] = c
	h.logger.Debug("Connection registered",
		zap.String("user_id", c.UserID),
		zap.String("conn_id", c.ID),
		zap.Int("user_connections", len(set)),
	)
}

func (h *Hub) remove(c *Conn) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	delete(h.conns, c.ID)
	if set, ok := h.users[c.UserID]; ok {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	close(c.send)
	h.logger.Debug("Connection unregistered",
		zap.String("user_id", c.UserID),
		zap.String("conn_id", c.ID),
	)
}

func (h *Hub) deliver(d delivery) {
	if d.connID != "" {
		if c, ok := h.conns[d.connID]; ok {
			h.push(c, d.payload)
		}
		return
	}
	for _, c := range h.users[d.userID] {
		h.push(c, d.payload)
	}
}

func (h *Hub) push(c *Conn, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Debug("Connection buffer full, dropping message", zap.String("conn_id", c.ID))
	}
}
