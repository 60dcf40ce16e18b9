package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	clientBuffer = 256
	writeTimeout = 10 * time.Second
)

// Event is pushed to dashboard clients as one JSON text message
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`

	// trace marks message level events, only sent to clients that asked
	trace bool
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Control is what a client may send. {"trace":true} subscribes to the
// message level protocol trace.
type Control struct {
	Trace *bool `json:"trace,omitempty"`
}

// Client is one dashboard connection
type Client struct {
	ID    string
	Addr  string
	trace atomic.Bool

	conn *websocket.Conn
	out  chan []byte
}

type delivery struct {
	data  []byte
	trace bool
}

// WebSocketHub fans events out to dashboard clients
type WebSocketHub struct {
	logger *logger.Logger

	events     chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	if log == nil {
		log = logger.Nop()
	}
	return &WebSocketHub{
		logger:     log,
		events:     make(chan delivery, clientBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run owns the client set until ctx is cancelled
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", c.ID),
				logger.String("addr", c.Addr))

		case c := <-h.unregister:
			h.drop(c)

		case d := <-h.events:
			h.mu.RLock()
			for c := range h.clients {
				if d.trace && !c.trace.Load() {
					continue
				}
				select {
				case c.out <- d.data:
				default:
					h.logger.Warn("Client too slow, event skipped",
						logger.String("client_id", c.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.out)
			}
			h.clients = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

func (h *WebSocketHub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.out)
	h.logger.Debug("WebSocket client gone", logger.String("client_id", c.ID))
}

// Broadcast queues an event for every client. It never blocks.
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := event.Marshal()
	if err != nil {
		h.logger.Error("Failed to marshal event", logger.Error(err))
		return
	}
	select {
	case h.events <- delivery{data: data, trace: event.trace}:
	default:
		h.logger.Warn("Event queue full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler upgrades dashboard connections. Every client first receives a
// hello event carrying the build information.
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &Client{
			ID:   uuid.NewString(),
			Addr: r.RemoteAddr,
			conn: conn,
			out:  make(chan []byte, clientBuffer),
		}
		hello := Event{Type: "hello", Timestamp: time.Now(), Data: map[string]interface{}{
			"client_id": c.ID,
			"build":     Version(),
		}}
		if data, err := hello.Marshal(); err == nil {
			c.out <- data
		}
		select {
		case h.register <- c:
		case <-h.done:
			_ = conn.Close()
			return
		}
		go h.read(c)
		go h.write(c)
	})
}

// read applies control messages until the connection fails
func (h *WebSocketHub) read(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ctl Control
		if err := json.Unmarshal(msg, &ctl); err != nil {
			h.logger.Debug("Ignoring client message", logger.String("client_id", c.ID), logger.Error(err))
			continue
		}
		if ctl.Trace != nil {
			c.trace.Store(*ctl.Trace)
			h.logger.Debug("WebSocket trace toggled",
				logger.String("client_id", c.ID),
				logger.Bool("trace", *ctl.Trace))
		}
	}
}

func (h *WebSocketHub) write(c *Client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastLCEEvent forwards a link control event. Message and
// transaction events only reach clients that enabled the trace.
func (h *WebSocketHub) BroadcastLCEEvent(ev lce.Event) {
	data := map[string]interface{}{
		"link": uint32(ev.Link),
	}
	if ev.HasPeer {
		data["peer"] = ev.Peer.String()
	}
	trace := false
	switch ev.Type {
	case lce.EventMessageIn, lce.EventMessageOut, lce.EventTransactionOpen, lce.EventTransactionClosed:
		trace = true
		data["protocol"] = ev.PD.String()
		data["tv"] = ev.TV
		data["message_type"] = ev.MsgType
	}
	if ev.Detail != "" {
		data["detail"] = ev.Detail
	}
	h.Broadcast(Event{
		Type:      string(ev.Type),
		Timestamp: ev.Time,
		Data:      data,
		trace:     trace,
	})
}

// BroadcastPortable reports an attach, detach or subscription change
func (h *WebSocketHub) BroadcastPortable(kind, ipui, extension string) {
	h.Broadcast(Event{
		Type: kind,
		Data: map[string]interface{}{
			"ipui":      ipui,
			"extension": extension,
		},
	})
}

// BroadcastCall reports a call state change
func (h *WebSocketHub) BroadcastCall(call CallInfo) {
	h.Broadcast(Event{
		Type: "call_" + call.State,
		Data: map[string]interface{}{
			"call": call,
		},
	})
}
