package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	defaultSendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket connection of a user.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID int64
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// enqueue hands msg to the write pump without blocking. It reports false
// when the buffer is full.
func (c *client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub keeps the open websocket connections per user and pushes events to
// them. A client that cannot keep up loses messages; it never slows Emit.
type Hub struct {
	mu         sync.RWMutex
	clients    map[int64]map[*client]struct{}
	sendBuffer int
}

// NewHub creates a Hub whose clients buffer up to sendBuffer messages.
func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Hub{
		clients:    make(map[int64]map[*client]struct{}),
		sendBuffer: sendBuffer,
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			c.close()
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
}

// ClientCount returns the number of open connections of a user.
func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Emit implements Emitter.
func (h *Hub) Emit(_ context.Context, e Event) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[e.UserID] {
		if !c.enqueue(msg) {
			log.Warn().
				Int64("user_id", e.UserID).
				Str("type", string(e.Type)).
				Msg("Client send buffer full, dropping event")
		}
	}
}

// ServeWS upgrades the request and attaches the connection to the user named
// by the userId query parameter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "missing or invalid userId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.sendBuffer),
	}
	h.register(c)
	log.Debug().Int64("user_id", userID).Msg("Websocket client connected")

	go c.writePump()
	go c.readPump()
}

type inbound struct {
	Type string `json:"type"`
}

var pongMessage = []byte(`{"type":"pong"}`)

// readPump consumes client messages until the connection drops. Only ping
// is understood; anything else is logged and ignored.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		log.Debug().Int64("user_id", c.userID).Msg("Websocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Int64("user_id", c.userID).Msg("Websocket read error")
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn().Err(err).Int64("user_id", c.userID).Msg("Ignoring malformed websocket message")
			continue
		}
		switch msg.Type {
		case "ping":
			c.enqueue(pongMessage)
		default:
			log.Debug().Str("type", msg.Type).Int64("user_id", c.userID).Msg("Ignoring unknown websocket message")
		}
	}
}

// writePump drains the send buffer and keeps the connection alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
