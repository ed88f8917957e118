package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 32
)

// Hub fans live messages out to connected browsers. Clients that cannot keep
// up are dropped rather than blocking the broadcast path, and every
// connection is unsubscribed when it closes so no handler outlives its page.
type Hub struct {
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	clients    map[*wsClient]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*wsClient]struct{}),
	}
}

// Run owns the client set until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				close(c.send)
				delete(h.clients, c)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					close(c.send)
					delete(h.clients, c)
				}
			}
		}
	}
}

// Broadcast sends a typed message to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	if h == nil {
		return
	}
	b, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn().Str("event", event).Msg("broadcast queue full, dropping message")
	}
}

// ServeHTTP upgrades the request into a hub subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, clientSendSize)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump discards inbound frames; the socket is one-way. Its job is to
// notice the close and unsubscribe the client.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
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
